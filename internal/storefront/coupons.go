package storefront

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

type applyCouponResponse struct {
	DiscountValue *flexDecimal `json:"discount_value"`
	Message       string       `json:"message"`
	Data          *struct {
		DiscountValue *flexDecimal `json:"discount_value"`
	} `json:"data"`
}

// ApplyCoupon asks the backend for the percentage discount of code. A 2xx
// response without a discount value counts as a rejection.
func (c *Client) ApplyCoupon(ctx context.Context, code string) (decimal.Decimal, error) {
	var resp applyCouponResponse
	err := c.doJSON(ctx, call{
		op:     "apply_coupon",
		method: http.MethodPost,
		path:   "/customer/coupons/apply",
		body:   map[string]string{"code": code},
		auth:   true,
	}, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	switch {
	case resp.DiscountValue != nil:
		return resp.DiscountValue.Decimal, nil
	case resp.Data != nil && resp.Data.DiscountValue != nil:
		return resp.Data.DiscountValue.Decimal, nil
	}
	msg := resp.Message
	if msg == "" {
		msg = "coupon has no discount"
	}
	return decimal.Zero, &APIError{Status: http.StatusUnprocessableEntity, Message: msg, Path: "/customer/coupons/apply"}
}
