package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/drafts"
	httpmiddleware "github.com/wolfman30/leen-storefront/internal/http/middleware"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// ServiceCatalog looks up the service a draft is opened for, and the
// seller's staff when the service lists none.
type ServiceCatalog interface {
	Service(ctx context.Context, sellerID, serviceID int64, t booking.ServiceType) (booking.Service, error)
	SellerEmployees(ctx context.Context, sellerID int64) ([]booking.EmployeeRef, error)
}

// DraftsHandler exposes booking draft sessions over HTTP.
type DraftsHandler struct {
	registry *drafts.Registry
	catalog  ServiceCatalog
	logger   *logging.Logger
}

func NewDraftsHandler(registry *drafts.Registry, catalog ServiceCatalog, logger *logging.Logger) *DraftsHandler {
	if registry == nil || catalog == nil {
		panic("handlers: draft registry and service catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DraftsHandler{registry: registry, catalog: catalog, logger: logger}
}

// Routes mounts the draft endpoints under their parent route.
func (h *DraftsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Route("/{draftID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Put("/date", h.SelectDate)
		r.Put("/time", h.SelectTime)
		r.Put("/employee", h.SelectEmployee)
		r.Put("/payment", h.SetPayment)
		r.Put("/location", h.SetLocation)
		r.Post("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Post("/submit", h.Submit)
	})
	return r
}

type CreateDraftRequest struct {
	SellerID    int64  `json:"seller_id" validate:"required,gt=0"`
	ServiceID   int64  `json:"service_id" validate:"required,gt=0"`
	ServiceType string `json:"service_type" validate:"required,oneof=home studio"`
}

type SelectDateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type SelectTimeRequest struct {
	Time string `json:"time" validate:"required"`
}

type SelectEmployeeRequest struct {
	EmployeeID int64 `json:"employee_id" validate:"required,gt=0"`
}

type SetPaymentRequest struct {
	Option string `json:"option" validate:"required,oneof=paid partiallyPaid unpaid"`
}

type SetLocationRequest struct {
	Location string `json:"location" validate:"max=500"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// SubmitResponse carries the confirmed reservation and its price breakdown.
type SubmitResponse struct {
	Reservation *booking.Reservation `json:"reservation"`
	Receipt     booking.Receipt      `json:"receipt"`
}

func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httpmiddleware.CustomerFromContext(r.Context())
	if !ok {
		jsonError(w, "missing customer identity", http.StatusUnauthorized)
	}
	return id, ok
}

func (h *DraftsHandler) session(w http.ResponseWriter, r *http.Request) (*booking.Session, bool) {
	customer, ok := owner(w, r)
	if !ok {
		return nil, false
	}
	s, err := h.registry.Get(customer, chi.URLParam(r, "draftID"))
	if err != nil {
		writeError(w, h.logger, err, nil)
		return nil, false
	}
	return s, true
}

// respond writes the draft view, or the error together with the view so
// the client can re-render whatever the failure reset.
func (h *DraftsHandler) respond(w http.ResponseWriter, s *booking.Session, status int, err error) {
	view := s.View()
	if err != nil {
		writeError(w, h.logger, err, &view)
		return
	}
	writeJSON(w, status, view)
}

// Create opens a draft for one service of a seller.
// Route: POST /v1/drafts
func (h *DraftsHandler) Create(w http.ResponseWriter, r *http.Request) {
	customer, ok := owner(w, r)
	if !ok {
		return
	}
	var req CreateDraftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	serviceType, err := booking.ParseServiceType(req.ServiceType)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	service, err := h.catalog.Service(r.Context(), req.SellerID, req.ServiceID, serviceType)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	if len(service.Employees) == 0 {
		staff, err := h.catalog.SellerEmployees(r.Context(), service.SellerID)
		if err != nil {
			h.logger.Warn("seller employees fallback failed", "seller_id", service.SellerID, "error", err)
		} else {
			service.Employees = staff
		}
	}
	s, err := h.registry.Open(customer, service)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := s.LoadActiveDays(r.Context()); err != nil {
		_ = h.registry.Close(customer, s.ID())
		writeError(w, h.logger, err, nil)
		return
	}
	h.logger.Info("draft created", "draft_id", s.ID(), "seller_id", service.SellerID, "service_id", service.ID)
	writeJSON(w, http.StatusCreated, s.View())
}

// Get returns the draft view.
// Route: GET /v1/drafts/{draftID}
func (h *DraftsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// Delete abandons the draft.
// Route: DELETE /v1/drafts/{draftID}
func (h *DraftsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	customer, ok := owner(w, r)
	if !ok {
		return
	}
	if err := h.registry.Close(customer, chi.URLParam(r, "draftID")); err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectDate sets the date and loads its free slots.
// Route: PUT /v1/drafts/{draftID}/date
func (h *DraftsHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectDateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := booking.ParseDate(req.Date)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	_, err = s.SelectDate(r.Context(), date)
	h.respond(w, s, http.StatusOK, err)
}

// SelectTime sets the start time and loads which employees are busy.
// Route: PUT /v1/drafts/{draftID}/time
func (h *DraftsHandler) SelectTime(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectTimeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := booking.ParseTimeOfDay(req.Time)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	_, err = s.SelectTime(r.Context(), t)
	h.respond(w, s, http.StatusOK, err)
}

// Route: PUT /v1/drafts/{draftID}/employee
func (h *DraftsHandler) SelectEmployee(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, s, http.StatusOK, s.SelectEmployee(req.EmployeeID))
}

// Route: PUT /v1/drafts/{draftID}/payment
func (h *DraftsHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, s, http.StatusOK, s.SetPaymentOption(booking.PaymentOption(req.Option)))
}

// Route: PUT /v1/drafts/{draftID}/location
func (h *DraftsHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetLocationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, s, http.StatusOK, s.SetLocation(req.Location))
}

// ApplyCoupon validates a coupon code against the marketplace.
// Route: POST /v1/drafts/{draftID}/coupon
func (h *DraftsHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	_, err := s.ApplyCoupon(r.Context(), strings.TrimSpace(req.Code))
	h.respond(w, s, http.StatusOK, err)
}

// Route: DELETE /v1/drafts/{draftID}/coupon
func (h *DraftsHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, s, http.StatusOK, s.RemoveCoupon())
}

// Submit creates the reservation. Repeating the call after success returns
// the same reservation.
// Route: POST /v1/drafts/{draftID}/submit
func (h *DraftsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Submit(r.Context())
	if err != nil {
		h.respond(w, s, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{Reservation: res, Receipt: booking.ReceiptFor(*res)})
}
