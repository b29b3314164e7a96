package booking

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: expected %s, got %s", msg, want, got)
	}
}

func TestComputePrice_NoServiceDiscount(t *testing.T) {
	for _, price := range []string{"0", "1", "99.99", "100", "2500.5"} {
		s := Service{Price: dec(price), HasDiscount: false, DiscountPercentage: dec("30")}
		p := ComputePrice(s, decimal.Zero)
		assertDec(t, "0", p.ServiceDiscount, price)
		assertDec(t, price, p.Final, price)
	}
}

func TestComputePrice_ServiceDiscountIndependentOfCoupon(t *testing.T) {
	s := Service{Price: dec("200"), HasDiscount: true, DiscountPercentage: dec("20")}
	for pct := int64(0); pct <= 100; pct += 5 {
		p := ComputePrice(s, decimal.NewFromInt(pct))
		assertDec(t, "40", p.ServiceDiscount, "service discount")
	}
}

func TestComputePrice_DiscountsAreAdditive(t *testing.T) {
	s := Service{Price: dec("100"), HasDiscount: true, DiscountPercentage: dec("10")}
	p := ComputePrice(s, dec("10"))
	assertDec(t, "10", p.ServiceDiscount, "service")
	assertDec(t, "10", p.CouponDiscount, "coupon")
	assertDec(t, "80", p.Final, "final")
	assertDec(t, "100", p.Original, "original")
}

func TestComputePrice_Save10(t *testing.T) {
	p := ComputePrice(Service{Price: dec("100")}, dec("10"))
	assertDec(t, "90", p.Final, "final")
}

func TestComputePrice_Clamping(t *testing.T) {
	tests := []struct {
		name        string
		service     Service
		coupon      string
		wantService string
		wantCoupon  string
		wantFinal   string
	}{
		{"combined over 100 percent", Service{Price: dec("100"), HasDiscount: true, DiscountPercentage: dec("70")}, "50", "70", "30", "0"},
		{"percent above 100", Service{Price: dec("80"), HasDiscount: true, DiscountPercentage: dec("150")}, "0", "80", "0", "0"},
		{"negative service percent", Service{Price: dec("80"), HasDiscount: true, DiscountPercentage: dec("-20")}, "0", "0", "0", "80"},
		{"negative coupon percent", Service{Price: dec("80")}, "-10", "0", "0", "80"},
		{"coupon above 100", Service{Price: dec("80")}, "120", "0", "80", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePrice(tt.service, dec(tt.coupon))
			assertDec(t, tt.wantService, p.ServiceDiscount, "service")
			assertDec(t, tt.wantCoupon, p.CouponDiscount, "coupon")
			assertDec(t, tt.wantFinal, p.Final, "final")
			assert.False(t, p.Final.IsNegative())
		})
	}
}

func TestComputePrice_RoundsHalfAwayFromZero(t *testing.T) {
	s := Service{Price: dec("99.99"), HasDiscount: true, DiscountPercentage: dec("15")}
	p := ComputePrice(s, dec("5"))
	// 15% of 99.99 = 14.9985, 5% = 4.9995
	assertDec(t, "15", p.ServiceDiscount, "service")
	assertDec(t, "5", p.CouponDiscount, "coupon")
	assertDec(t, "79.99", p.Final, "final")
}

func TestAmountDueNow(t *testing.T) {
	p := ComputePrice(Service{Price: dec("150.25")}, decimal.Zero)
	assertDec(t, "150.25", AmountDueNow(p, PaymentFull), "full")
	assertDec(t, "150.25", AmountDueNow(p, PaymentUnset), "unset")
	assertDec(t, "75.13", AmountDueNow(p, PaymentHalf), "half")
	assertDec(t, "0", AmountDueNow(p, PaymentAtSalon), "at salon")
}
