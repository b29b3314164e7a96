package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wolfman30/leen-storefront/internal/booking"
)

type partyDTO struct {
	ID         flexInt `json:"id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Phone      string  `json:"phone"`
	Location   string  `json:"location"`
	SellerLogo string  `json:"seller_logo"`
}

func (p partyDTO) party() booking.Party {
	return booking.Party{
		ID:        int64(p.ID),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Location:  p.Location,
	}
}

type serviceDTO struct {
	ID         flexInt       `json:"id"`
	Name       string        `json:"name"`
	Price      flexDecimal   `json:"price"`
	Discount   flexBool      `json:"discount"`
	Percentage flexDecimal   `json:"percentage"`
	SellerID   flexInt       `json:"seller_id"`
	Seller     *partyDTO     `json:"seller"`
	Employees  []employeeDTO `json:"employees"`
}

func (s serviceDTO) service(t booking.ServiceType, fallbackSeller int64) booking.Service {
	sellerID := int64(s.SellerID)
	if s.Seller != nil && s.Seller.ID != 0 {
		sellerID = int64(s.Seller.ID)
	}
	if sellerID == 0 {
		sellerID = fallbackSeller
	}
	employees := make([]booking.EmployeeRef, 0, len(s.Employees))
	for _, e := range s.Employees {
		employees = append(employees, e.ref())
	}
	return booking.Service{
		ID:                 int64(s.ID),
		Name:               s.Name,
		Type:               t,
		SellerID:           sellerID,
		Price:              s.Price.Decimal,
		HasDiscount:        bool(s.Discount),
		DiscountPercentage: s.Percentage.Decimal,
		Employees:          employees,
	}
}

// Services lists a seller's home or studio services.
func (c *Client) Services(ctx context.Context, sellerID int64, t booking.ServiceType) ([]booking.Service, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("storefront: services: unknown service type %q", t)
	}
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "services",
		method: http.MethodGet,
		path:   fmt.Sprintf("/customer/seller/%sServices/%d", t, sellerID),
	}, &raw)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[serviceDTO](raw, "data", "services")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode services: %w", err)
	}
	out := make([]booking.Service, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.service(t, sellerID))
	}
	return out, nil
}

// Service finds one service of a seller. A missing service is reported as a
// 404 so callers classify it as not found.
func (c *Client) Service(ctx context.Context, sellerID, serviceID int64, t booking.ServiceType) (booking.Service, error) {
	services, err := c.Services(ctx, sellerID, t)
	if err != nil {
		return booking.Service{}, err
	}
	for _, s := range services {
		if s.ID == serviceID {
			return s, nil
		}
	}
	return booking.Service{}, &APIError{
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("service %d not offered by seller %d", serviceID, sellerID),
		Path:    fmt.Sprintf("/customer/seller/%sServices/%d", t, sellerID),
	}
}
