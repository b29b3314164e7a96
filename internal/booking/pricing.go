package booking

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// MoneyPlaces is the number of decimal places every computed amount is rounded to.
const MoneyPlaces = 2

// Price is the breakdown shown on the booking summary.
type Price struct {
	Original        decimal.Decimal `json:"original"`
	ServiceDiscount decimal.Decimal `json:"service_discount"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	Final           decimal.Decimal `json:"final"`
}

// ComputePrice applies the service discount and the coupon discount to the
// service price. Both discounts are taken off the original price and summed,
// never compounded.
//
// Percents are clamped to [0, 100]. The service discount is clamped to
// [0, price] and the coupon discount to what the service discount left, so the
// final price never drops below zero. Amounts are rounded to two places, half
// away from zero.
func ComputePrice(s Service, couponPercent decimal.Decimal) Price {
	price := s.Price
	if price.IsNegative() {
		price = decimal.Zero
	}

	servicePercent := decimal.Zero
	if s.HasDiscount {
		servicePercent = clampPercent(s.DiscountPercentage)
	}

	serviceAmount := clamp(roundMoney(percentOf(price, servicePercent)), decimal.Zero, price)
	couponAmount := clamp(roundMoney(percentOf(price, clampPercent(couponPercent))), decimal.Zero, price.Sub(serviceAmount))
	final := roundMoney(price.Sub(serviceAmount).Sub(couponAmount))
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Price{
		Original:        roundMoney(price),
		ServiceDiscount: serviceAmount,
		CouponDiscount:  couponAmount,
		Final:           final,
	}
}

// AmountDueNow is the part of the final price collected at booking time.
func AmountDueNow(p Price, option PaymentOption) decimal.Decimal {
	switch option {
	case PaymentHalf:
		return roundMoney(p.Final.Div(two))
	case PaymentAtSalon:
		return decimal.Zero
	default:
		return p.Final
	}
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	return clamp(p, decimal.Zero, hundred)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
