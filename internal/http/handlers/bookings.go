package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// BookingHistory is the customer's reservation history on the marketplace.
type BookingHistory interface {
	Bookings(ctx context.Context, t booking.ServiceType) ([]booking.Reservation, error)
	Cancel(ctx context.Context, t booking.ServiceType, bookingID int64) error
	RateService(ctx context.Context, req storefront.RatingRequest) error
}

type BookingsHandler struct {
	history BookingHistory
	logger  *logging.Logger
}

func NewBookingsHandler(history BookingHistory, logger *logging.Logger) *BookingsHandler {
	if history == nil {
		panic("handlers: booking history required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{history: history, logger: logger}
}

func (h *BookingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Put("/{serviceType}/{bookingID}/cancel", h.Cancel)
	r.Post("/{serviceType}/{bookingID}/rating", h.Rate)
	return r
}

// RateRequest is the body of a rating.
type RateRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=2000"`
}

// BookingEntry pairs a reservation with its recomputed receipt.
type BookingEntry struct {
	Reservation booking.Reservation `json:"reservation"`
	Receipt     booking.Receipt     `json:"receipt"`
}

type BookingsResponse struct {
	Bookings []BookingEntry `json:"bookings"`
}

// List returns reservations, newest first. Without a type both home and
// studio histories are merged.
// Route: GET /v1/bookings?type=home|studio&status=pending|done|cancelled
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	types := []booking.ServiceType{booking.ServiceHome, booking.ServiceStudio}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		t, err := booking.ParseServiceType(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		types = []booking.ServiceType{t}
	}
	status := booking.ReservationStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	switch status {
	case "", booking.StatusPending, booking.StatusDone, booking.StatusCancelled:
	default:
		jsonError(w, "status must be pending, done or cancelled", http.StatusUnprocessableEntity)
		return
	}

	var all []booking.Reservation
	for _, t := range types {
		rs, err := h.history.Bookings(r.Context(), t)
		if err != nil {
			writeError(w, h.logger, err, nil)
			return
		}
		all = append(all, rs...)
	}
	all = booking.FilterByStatus(all, status)
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Date != b.Date {
			return b.Date.Before(a.Date)
		}
		return b.Time.Before(a.Time)
	})

	resp := BookingsResponse{Bookings: make([]BookingEntry, 0, len(all))}
	for _, res := range all {
		resp.Bookings = append(resp.Bookings, BookingEntry{Reservation: res, Receipt: booking.ReceiptFor(res)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func bookingRef(w http.ResponseWriter, r *http.Request) (booking.ServiceType, int64, bool) {
	t, err := booking.ParseServiceType(chi.URLParam(r, "serviceType"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return "", 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid booking id", http.StatusBadRequest)
		return "", 0, false
	}
	return t, id, true
}

// Cancel asks the marketplace to cancel a reservation.
// Route: PUT /v1/bookings/{serviceType}/{bookingID}/cancel
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, id, ok := bookingRef(w, r)
	if !ok {
		return
	}
	if err := h.history.Cancel(r.Context(), t, id); err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	h.logger.Info("booking cancelled", "booking_id", id, "service_type", t)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": booking.StatusCancelled})
}

// Rate reviews the service of a finished reservation. Only reservations the
// marketplace reports as done can be rated.
// Route: POST /v1/bookings/{serviceType}/{bookingID}/rating
func (h *BookingsHandler) Rate(w http.ResponseWriter, r *http.Request) {
	t, id, ok := bookingRef(w, r)
	if !ok {
		return
	}
	var req RateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reservations, err := h.history.Bookings(r.Context(), t)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	var res *booking.Reservation
	for i := range reservations {
		if reservations[i].ID == id {
			res = &reservations[i]
			break
		}
	}
	switch {
	case res == nil:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "booking not found", Kind: "not_found"})
		return
	case res.Status != booking.StatusDone:
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "only completed bookings can be rated",
			Kind:  string(booking.KindValidation),
		})
		return
	case res.Service.ID == 0:
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "booking has no service", Kind: string(booking.KindTransport)})
		return
	}

	err = h.history.RateService(r.Context(), storefront.RatingRequest{
		ServiceID:   res.Service.ID,
		ServiceType: t,
		Rating:      req.Rating,
		Review:      strings.TrimSpace(req.Review),
	})
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	h.logger.Info("booking rated", "booking_id", id, "service_id", res.Service.ID, "rating", req.Rating)
	writeJSON(w, http.StatusCreated, map[string]any{"booking_id": id, "service_id": res.Service.ID, "rating": req.Rating})
}
