package booking

import "github.com/shopspring/decimal"

// Receipt is the price breakdown of a confirmed reservation.
type Receipt struct {
	ServicePrice    decimal.Decimal `json:"service_price"`
	Additional      []LineItem      `json:"additional,omitempty"`
	AdditionalTotal decimal.Decimal `json:"additional_total"`
	ServiceDiscount decimal.Decimal `json:"service_discount"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	Total           decimal.Decimal `json:"total"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Remaining       decimal.Decimal `json:"remaining"`
}

// ReceiptFor recomputes the totals from the amounts the backend recorded.
// The total never goes below zero.
func ReceiptFor(r Reservation) Receipt {
	additional := decimal.Zero
	for _, item := range r.AdditionalItems {
		additional = additional.Add(item.Price)
	}
	total := roundMoney(r.Service.Price.Add(additional).Sub(r.CouponDiscount).Sub(r.ServiceDiscount))
	if total.IsNegative() {
		total = decimal.Zero
	}
	remaining := roundMoney(total.Sub(r.PaidAmount))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Receipt{
		ServicePrice:    roundMoney(r.Service.Price),
		Additional:      r.AdditionalItems,
		AdditionalTotal: roundMoney(additional),
		ServiceDiscount: roundMoney(r.ServiceDiscount),
		CouponDiscount:  roundMoney(r.CouponDiscount),
		Total:           total,
		PaidAmount:      roundMoney(r.PaidAmount),
		Remaining:       remaining,
	}
}

// FilterByStatus keeps the reservations in status; an empty status keeps all.
func FilterByStatus(rs []Reservation, status ReservationStatus) []Reservation {
	out := make([]Reservation, 0, len(rs))
	for _, r := range rs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
