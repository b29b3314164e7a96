package booking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Draft accumulates one booking selection in strict order: service, date,
// time, employee, payment option, coupon. Changing an earlier step clears every
// later schedule selection. A Draft lives only in memory and does no I/O.
type Draft struct {
	service        Service
	date           CalendarDate
	time           TimeOfDay
	employee       *EmployeeRef
	payment        PaymentOption
	location       string
	coupon         CouponStatus
	idempotencyKey string
}

// NewDraft starts a draft for service.
func NewDraft(service Service) (*Draft, error) {
	if err := service.validate(); err != nil {
		return nil, validationError("new_draft", ErrContract, err.Error())
	}
	return &Draft{
		service:        service,
		coupon:         notApplied(),
		idempotencyKey: uuid.NewString(),
	}, nil
}

func (d *Draft) Service() Service             { return d.service }
func (d *Draft) Date() CalendarDate           { return d.date }
func (d *Draft) Time() TimeOfDay              { return d.time }
func (d *Draft) PaymentOption() PaymentOption { return d.payment }
func (d *Draft) Location() string             { return d.location }
func (d *Draft) Coupon() CouponStatus         { return d.coupon }
func (d *Draft) IdempotencyKey() string       { return d.idempotencyKey }

func (d *Draft) Employee() (EmployeeRef, bool) {
	if d.employee == nil {
		return EmployeeRef{}, false
	}
	return *d.employee, true
}

// SetDate picks the calendar date and clears time and employee.
func (d *Draft) SetDate(date CalendarDate) error {
	if date.IsZero() {
		return validationError("select_date", ErrMissingFields, "date is required")
	}
	d.date = date
	d.time = TimeOfDay{}
	d.employee = nil
	return nil
}

// SetTime picks the start time and clears the employee.
func (d *Draft) SetTime(t TimeOfDay) error {
	if d.date.IsZero() {
		return validationError("select_time", ErrOutOfOrder, "choose a date first")
	}
	if t.IsZero() {
		return validationError("select_time", ErrMissingFields, "time is required")
	}
	d.time = t
	d.employee = nil
	return nil
}

// SetEmployee picks a staff member offered for the service.
func (d *Draft) SetEmployee(id int64) error {
	if d.date.IsZero() || d.time.IsZero() {
		return validationError("select_employee", ErrOutOfOrder, "choose a date and time first")
	}
	e, ok := d.service.Employee(id)
	if !ok {
		return validationError("select_employee", ErrUnknownEmployee, fmt.Sprintf("employee %d does not offer this service", id))
	}
	d.employee = &e
	return nil
}

func (d *Draft) SetPaymentOption(o PaymentOption) error {
	if !o.Valid() {
		return validationError("select_payment", ErrInvalidPayment, fmt.Sprintf("unknown payment option %q", o))
	}
	d.payment = o
	return nil
}

func (d *Draft) SetLocation(location string) {
	d.location = strings.TrimSpace(location)
}

// ClearSchedule drops date, time and employee so the flow re-enters selection.
func (d *Draft) ClearSchedule() {
	d.date = CalendarDate{}
	d.time = TimeOfDay{}
	d.employee = nil
}

// RotateIdempotencyKey issues a fresh key once the previous attempt is known
// not to have created a reservation.
func (d *Draft) RotateIdempotencyKey() {
	d.idempotencyKey = uuid.NewString()
}

// CouponPercent is the coupon discount currently in effect, 0 without a valid coupon.
func (d *Draft) CouponPercent() decimal.Decimal {
	if d.coupon.State == CouponRejected || d.coupon.State == CouponNotApplied {
		return decimal.Zero
	}
	return d.coupon.Percent
}

func (d *Draft) setCoupon(c CouponStatus) { d.coupon = c }

// Missing lists the required selections that are still unset.
func (d *Draft) Missing() []string {
	var missing []string
	if d.date.IsZero() {
		missing = append(missing, "date")
	}
	if d.time.IsZero() {
		missing = append(missing, "time")
	}
	if d.employee == nil {
		missing = append(missing, "employee")
	}
	return missing
}

// Submittable reports whether service, date, time and employee are all set.
func (d *Draft) Submittable() bool {
	return len(d.Missing()) == 0
}

func (d *Draft) Quote() Price {
	return ComputePrice(d.service, d.CouponPercent())
}

// Request serializes the draft for the reservation-create call. It fails
// without side effects when a required selection is missing.
func (d *Draft) Request() (ReservationRequest, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return ReservationRequest{}, validationError(opSubmit, ErrMissingFields, "missing "+strings.Join(missing, ", "))
	}
	price := d.Quote()
	return ReservationRequest{
		ServiceType:     d.service.Type,
		ServiceID:       d.service.ID,
		SellerID:        d.service.SellerID,
		EmployeeID:      d.employee.ID,
		Date:            d.date,
		StartTime:       d.time,
		PaidAmount:      AmountDueNow(price, d.payment),
		CouponDiscount:  price.CouponDiscount,
		ServiceDiscount: price.ServiceDiscount,
		PaymentOption:   d.payment,
		Location:        d.location,
		IdempotencyKey:  d.idempotencyKey,
	}, nil
}
