package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// SellerDirectory is the public seller data shown next to a booking flow.
type SellerDirectory interface {
	SellerRatings(ctx context.Context, sellerID int64) (*storefront.SellerRatings, error)
	SellerEmployees(ctx context.Context, sellerID int64) ([]booking.EmployeeRef, error)
}

type SellersHandler struct {
	directory SellerDirectory
	logger    *logging.Logger
}

func NewSellersHandler(directory SellerDirectory, logger *logging.Logger) *SellersHandler {
	if directory == nil {
		panic("handlers: seller directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SellersHandler{directory: directory, logger: logger}
}

func (h *SellersHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{sellerID}/ratings", h.Ratings)
	r.Get("/{sellerID}/employees", h.Employees)
	return r
}

type EmployeesResponse struct {
	Employees []booking.EmployeeRef `json:"employees"`
}

func sellerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sellerID"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid seller id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// Ratings returns a seller's reviews and average.
// Route: GET /v1/sellers/{sellerID}/ratings
func (h *SellersHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	id, ok := sellerID(w, r)
	if !ok {
		return
	}
	ratings, err := h.directory.SellerRatings(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// Employees lists a seller's whole staff.
// Route: GET /v1/sellers/{sellerID}/employees
func (h *SellersHandler) Employees(w http.ResponseWriter, r *http.Request) {
	id, ok := sellerID(w, r)
	if !ok {
		return
	}
	staff, err := h.directory.SellerEmployees(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, EmployeesResponse{Employees: staff})
}
