// Package booking builds a reservation draft for one marketplace service and
// submits it as a single reservation.
package booking

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ServiceType distinguishes services performed at the customer's home from
// services performed in the seller's studio.
type ServiceType string

const (
	ServiceHome   ServiceType = "home"
	ServiceStudio ServiceType = "studio"
)

func (t ServiceType) Valid() bool {
	return t == ServiceHome || t == ServiceStudio
}

func ParseServiceType(s string) (ServiceType, error) {
	t := ServiceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("booking: unknown service type %q", s)
	}
	return t, nil
}

// EmployeeRef identifies a staff member that can perform a service.
type EmployeeRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
}

// Service is reference data fetched from the marketplace; the client never mutates it.
type Service struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Type               ServiceType     `json:"type"`
	SellerID           int64           `json:"seller_id"`
	Price              decimal.Decimal `json:"price"`
	HasDiscount        bool            `json:"has_discount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Employees          []EmployeeRef   `json:"employees"`
}

// Employee finds a staff member offered for this service.
func (s Service) Employee(id int64) (EmployeeRef, bool) {
	for _, e := range s.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return EmployeeRef{}, false
}

func (s Service) validate() error {
	switch {
	case s.ID == 0:
		return fmt.Errorf("service id is required")
	case s.SellerID == 0:
		return fmt.Errorf("service seller id is required")
	case !s.Type.Valid():
		return fmt.Errorf("service type %q is not home or studio", s.Type)
	case s.Price.IsNegative():
		return fmt.Errorf("service price must not be negative")
	}
	return nil
}

// ActiveDay is one entry of a seller's recurring weekly template.
type ActiveDay struct {
	Weekday Weekday   `json:"weekday"`
	Start   TimeOfDay `json:"start_time"`
	End     TimeOfDay `json:"end_time"`
}

// PaymentOption is how much the customer pays up front.
type PaymentOption string

const (
	PaymentUnset   PaymentOption = ""
	PaymentFull    PaymentOption = "paid"
	PaymentHalf    PaymentOption = "partiallyPaid"
	PaymentAtSalon PaymentOption = "unpaid"
)

func (o PaymentOption) Valid() bool {
	switch o {
	case PaymentFull, PaymentHalf, PaymentAtSalon:
		return true
	}
	return false
}

// ReservationStatus is owned by the backend and only ever reflected here.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusDone      ReservationStatus = "done"
	StatusCancelled ReservationStatus = "cancelled"
)

// Party is a seller or customer as embedded in reservation payloads.
type Party struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
}

func (p Party) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// LineItem is an additional service attached to a reservation.
type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Reservation is the backend-confirmed booking record.
type Reservation struct {
	ID              int64             `json:"id"`
	Status          ReservationStatus `json:"status"`
	ServiceType     ServiceType       `json:"service_type"`
	Date            CalendarDate      `json:"date"`
	Time            TimeOfDay         `json:"time"`
	Service         Service           `json:"service"`
	Employee        EmployeeRef       `json:"employee"`
	Seller          Party             `json:"seller"`
	Customer        Party             `json:"customer"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	CouponDiscount  decimal.Decimal   `json:"coupon_discount"`
	ServiceDiscount decimal.Decimal   `json:"service_discount"`
	AdditionalItems []LineItem        `json:"additional_items,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	Location        string            `json:"location,omitempty"`
}

// ReservationRequest is a finished draft serialized for the create call.
type ReservationRequest struct {
	ServiceType     ServiceType
	ServiceID       int64
	SellerID        int64
	EmployeeID      int64
	Date            CalendarDate
	StartTime       TimeOfDay
	PaidAmount      decimal.Decimal
	CouponDiscount  decimal.Decimal
	ServiceDiscount decimal.Decimal
	PaymentOption   PaymentOption
	Location        string
	IdempotencyKey  string
}
