package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/leen-storefront/internal/booking"
)

// Rating is one customer review of a seller.
type Rating struct {
	ID        int64           `json:"id"`
	Rating    decimal.Decimal `json:"rating"`
	Review    string          `json:"review,omitempty"`
	Customer  booking.Party   `json:"customer"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// SellerRatings is a seller's review summary.
type SellerRatings struct {
	Average decimal.Decimal `json:"average_rating"`
	Count   int             `json:"ratings_count"`
	Ratings []Rating        `json:"ratings"`
}

// RatingRequest rates a finished reservation's service, 1 to 5 stars.
type RatingRequest struct {
	ServiceID   int64               `json:"service_id"`
	ServiceType booking.ServiceType `json:"service_type"`
	Rating      int                 `json:"rating"`
	Review      string              `json:"review,omitempty"`
}

type ratingDTO struct {
	ID        flexInt     `json:"id"`
	Rating    flexDecimal `json:"rating"`
	Review    string      `json:"review"`
	CreatedAt string      `json:"created_at"`
	Customer  *partyDTO   `json:"customer"`
}

var ratingTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func (d ratingDTO) rating() Rating {
	r := Rating{
		ID:     int64(d.ID),
		Rating: d.Rating.Decimal,
		Review: strings.TrimSpace(d.Review),
	}
	if d.Customer != nil {
		r.Customer = d.Customer.party()
	}
	for _, layout := range ratingTimeLayouts {
		if t, err := time.Parse(layout, d.CreatedAt); err == nil {
			r.CreatedAt = t.UTC()
			break
		}
	}
	return r
}

type sellerRatingsResponse struct {
	Average flexDecimal     `json:"average_rating"`
	Count   flexInt         `json:"ratings_count"`
	Data    json.RawMessage `json:"data"`
}

// SellerRatings fetches the reviews of a seller with their average.
func (c *Client) SellerRatings(ctx context.Context, sellerID int64) (*SellerRatings, error) {
	var resp sellerRatingsResponse
	err := c.doJSON(ctx, call{
		op:     "seller_ratings",
		method: http.MethodGet,
		path:   fmt.Sprintf("/customer/seller/rating/%d", sellerID),
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[ratingDTO](resp.Data, "data", "ratings")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode ratings: %w", err)
	}
	out := &SellerRatings{
		Average: resp.Average.Decimal,
		Count:   int(resp.Count),
		Ratings: make([]Rating, 0, len(dtos)),
	}
	for _, dto := range dtos {
		out.Ratings = append(out.Ratings, dto.rating())
	}
	if out.Count == 0 {
		out.Count = len(out.Ratings)
	}
	return out, nil
}

type rateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RateService posts a review. A 2xx answer whose status is not "success"
// counts as a rejection.
func (c *Client) RateService(ctx context.Context, req RatingRequest) error {
	const path = "/customer/rating"
	if !req.ServiceType.Valid() {
		return fmt.Errorf("storefront: rate: unknown service type %q", req.ServiceType)
	}
	var resp rateResponse
	err := c.doJSON(ctx, call{
		op:     "rate_service",
		method: http.MethodPost,
		path:   path,
		body:   req,
		auth:   true,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != "success" {
		msg := resp.Message
		if msg == "" {
			msg = "rating was not accepted"
		}
		return &APIError{Status: http.StatusUnprocessableEntity, Message: msg, Path: path}
	}
	return nil
}
