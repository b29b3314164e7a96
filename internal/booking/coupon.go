package booking

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// CouponState is the coupon lifecycle: NotApplied → Pending → Applied | Rejected.
type CouponState string

const (
	CouponNotApplied CouponState = "not_applied"
	CouponPending    CouponState = "pending"
	CouponApplied    CouponState = "applied"
	CouponRejected   CouponState = "rejected"
)

// CouponStatus is the coupon part of a draft. Percent is the discount that is
// currently in effect; while a new code is pending, the previous verdict holds.
type CouponStatus struct {
	State   CouponState     `json:"state"`
	Code    string          `json:"code,omitempty"`
	Percent decimal.Decimal `json:"percent"`
	Reason  string          `json:"reason,omitempty"`
}

func notApplied() CouponStatus {
	return CouponStatus{State: CouponNotApplied, Percent: decimal.Zero}
}

func (c CouponStatus) pending(code string) CouponStatus {
	return CouponStatus{State: CouponPending, Code: code, Percent: c.Percent}
}

func applied(code string, percent decimal.Decimal) CouponStatus {
	return CouponStatus{State: CouponApplied, Code: code, Percent: clampPercent(percent)}
}

func rejected(code, reason string) CouponStatus {
	return CouponStatus{State: CouponRejected, Code: code, Percent: decimal.Zero, Reason: reason}
}

// CouponAPI validates a code with the backend and returns its percentage.
type CouponAPI interface {
	ApplyCoupon(ctx context.Context, code string) (decimal.Decimal, error)
}

// CouponValidator runs a fresh backend round trip for every code; verdicts are
// never cached.
type CouponValidator struct {
	api CouponAPI
}

func NewCouponValidator(api CouponAPI) *CouponValidator {
	if api == nil {
		panic("booking: coupon api required")
	}
	return &CouponValidator{api: api}
}

// Validate returns the discount percent for code, a KindCouponRejected error
// when the backend refuses it, or another classified error.
func (v *CouponValidator) Validate(ctx context.Context, code string) (decimal.Decimal, error) {
	code = normalizeCoupon(code)
	if code == "" {
		return decimal.Zero, validationError(opApplyCoupon, ErrEmptyCouponCode, "enter a coupon code")
	}
	percent, err := v.api.ApplyCoupon(ctx, code)
	if err != nil {
		return decimal.Zero, classify(opApplyCoupon, err)
	}
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return decimal.Zero, &Error{Kind: KindCouponRejected, Op: opApplyCoupon, Message: "coupon discount is out of range"}
	}
	return percent, nil
}

func normalizeCoupon(code string) string {
	return strings.TrimSpace(code)
}
