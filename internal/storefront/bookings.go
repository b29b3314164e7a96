package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/leen-storefront/internal/booking"
)

// IdempotencyHeader carries the draft's idempotency key on reservation creates.
const IdempotencyHeader = "Idempotency-Key"

type bookRequest struct {
	StudioServiceID int64                 `json:"studio_service_id,omitempty"`
	HomeServiceID   int64                 `json:"home_service_id,omitempty"`
	SellerID        int64                 `json:"seller_id"`
	EmployeeID      int64                 `json:"employee_id"`
	Date            booking.CalendarDate  `json:"date"`
	StartTime       booking.TimeOfDay     `json:"start_time"`
	PaidAmount      decimal.Decimal       `json:"paid_amount"`
	CouponDiscount  decimal.Decimal       `json:"copoun_discount"`
	ServiceDiscount decimal.Decimal       `json:"service_discount"`
	PaymentStatus   booking.PaymentOption `json:"payment_status,omitempty"`
	Location        string                `json:"location,omitempty"`
}

func newBookRequest(req booking.ReservationRequest) bookRequest {
	out := bookRequest{
		SellerID:        req.SellerID,
		EmployeeID:      req.EmployeeID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		PaidAmount:      req.PaidAmount,
		CouponDiscount:  req.CouponDiscount,
		ServiceDiscount: req.ServiceDiscount,
		PaymentStatus:   req.PaymentOption,
		Location:        req.Location,
	}
	if req.ServiceType == booking.ServiceHome {
		out.HomeServiceID = req.ServiceID
	} else {
		out.StudioServiceID = req.ServiceID
	}
	return out
}

type bookResponse struct {
	BookingID flexInt     `json:"bookingId"`
	Message   string      `json:"message"`
	Data      *bookingDTO `json:"data"`
}

// Book creates a reservation. The backend echoes either the full booking
// under "data" or just its id; missing fields are filled from req.
func (c *Client) Book(ctx context.Context, req booking.ReservationRequest) (*booking.Reservation, error) {
	if !req.ServiceType.Valid() {
		return nil, fmt.Errorf("storefront: book: unknown service type %q", req.ServiceType)
	}
	var resp bookResponse
	err := c.doJSON(ctx, call{
		op:      "book",
		method:  http.MethodPost,
		path:    fmt.Sprintf("/customer/%sServices/book", req.ServiceType),
		body:    newBookRequest(req),
		auth:    true,
		headers: map[string]string{IdempotencyHeader: req.IdempotencyKey},
	}, &resp)
	if err != nil {
		return nil, err
	}

	res := &booking.Reservation{}
	if resp.Data != nil {
		r := resp.Data.reservation(req.ServiceType)
		res = &r
	}
	if res.ID == 0 {
		res.ID = int64(resp.BookingID)
	}
	if res.Date.IsZero() {
		res.Date = req.Date
	}
	if res.Time.IsZero() {
		res.Time = req.StartTime
	}
	if res.Service.ID == 0 {
		res.Service.ID = req.ServiceID
		res.Service.SellerID = req.SellerID
		res.Service.Type = req.ServiceType
	}
	if res.Employee.ID == 0 {
		res.Employee.ID = req.EmployeeID
	}
	if res.PaidAmount.IsZero() {
		res.PaidAmount = req.PaidAmount
	}
	if res.CouponDiscount.IsZero() {
		res.CouponDiscount = req.CouponDiscount
	}
	if res.ServiceDiscount.IsZero() {
		res.ServiceDiscount = req.ServiceDiscount
	}
	if res.Location == "" {
		res.Location = req.Location
	}
	res.ServiceType = req.ServiceType
	return res, nil
}

type lineItemDTO struct {
	Service struct {
		Name  string      `json:"name"`
		Price flexDecimal `json:"price"`
	} `json:"service"`
}

type bookingDTO struct {
	ID              flexInt       `json:"id"`
	BookingStatus   string        `json:"booking_status"`
	Date            string        `json:"date"`
	StartTime       string        `json:"start_time"`
	PaidAmount      flexDecimal   `json:"paid_amount"`
	CouponDiscount  flexDecimal   `json:"copoun_discount"`
	ServiceDiscount flexDecimal   `json:"service_discount"`
	Location        string        `json:"location"`
	RejectionReason string        `json:"request_rejection_reason"`
	Seller          *partyDTO     `json:"seller"`
	Customer        *partyDTO     `json:"customer"`
	Employee        *employeeDTO  `json:"employee"`
	StudioService   *serviceDTO   `json:"studio_service"`
	HomeService     *serviceDTO   `json:"home_service"`
	StudioItems     []lineItemDTO `json:"additionalStudioServiceBookingItems"`
	HomeItems       []lineItemDTO `json:"additionalHomeServiceBookingItems"`
}

func (b bookingDTO) reservation(t booking.ServiceType) booking.Reservation {
	r := booking.Reservation{
		ID:              int64(b.ID),
		Status:          booking.ReservationStatus(b.BookingStatus),
		ServiceType:     t,
		PaidAmount:      b.PaidAmount.Decimal,
		CouponDiscount:  b.CouponDiscount.Decimal,
		ServiceDiscount: b.ServiceDiscount.Decimal,
		RejectionReason: b.RejectionReason,
		Location:        b.Location,
	}
	var d booking.CalendarDate
	if err := d.UnmarshalText([]byte(b.Date)); err == nil {
		r.Date = d
	}
	r.Time, _ = booking.ParseTimeOfDay(b.StartTime)
	if b.Seller != nil {
		r.Seller = b.Seller.party()
	}
	if b.Customer != nil {
		r.Customer = b.Customer.party()
	}
	if b.Employee != nil {
		r.Employee = b.Employee.ref()
	}
	svc, items := b.StudioService, b.StudioItems
	if t == booking.ServiceHome {
		svc, items = b.HomeService, b.HomeItems
	}
	if svc != nil {
		r.Service = svc.service(t, r.Seller.ID)
	}
	for _, it := range items {
		r.AdditionalItems = append(r.AdditionalItems, booking.LineItem{Name: it.Service.Name, Price: it.Service.Price.Decimal})
	}
	return r
}

// Bookings lists the customer's reservations of one service type.
func (c *Client) Bookings(ctx context.Context, t booking.ServiceType) ([]booking.Reservation, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("storefront: bookings: unknown service type %q", t)
	}
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "bookings",
		method: http.MethodGet,
		path:   fmt.Sprintf("/customer/%sServices/bookings", t),
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[bookingDTO](raw, "data", "bookings")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode bookings: %w", err)
	}
	out := make([]booking.Reservation, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.reservation(t))
	}
	return out, nil
}

// Cancel asks the backend to cancel a reservation. Whether cancellation is
// allowed is the backend's decision.
func (c *Client) Cancel(ctx context.Context, t booking.ServiceType, bookingID int64) error {
	if !t.Valid() {
		return fmt.Errorf("storefront: cancel: unknown service type %q", t)
	}
	return c.doJSON(ctx, call{
		op:     "cancel",
		method: http.MethodPut,
		path:   fmt.Sprintf("/customer/cancel/%sBooking/%d", t, bookingID),
		auth:   true,
	}, nil)
}
