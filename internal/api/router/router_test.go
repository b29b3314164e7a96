package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/leen-storefront/internal/http/middleware"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

type stubHistory struct{}

func (stubHistory) Bookings(context.Context, booking.ServiceType) ([]booking.Reservation, error) {
	return nil, nil
}

func (stubHistory) Cancel(context.Context, booking.ServiceType, int64) error { return nil }

func (stubHistory) RateService(context.Context, storefront.RatingRequest) error { return nil }

type stubSellers struct{}

func (stubSellers) SellerRatings(context.Context, int64) (*storefront.SellerRatings, error) {
	return &storefront.SellerRatings{Ratings: []storefront.Rating{}}, nil
}

func (stubSellers) SellerEmployees(context.Context, int64) ([]booking.EmployeeRef, error) {
	return []booking.EmployeeRef{{ID: 1, Name: "Noura"}}, nil
}

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter) http.Handler {
	t.Helper()

	logger := logging.Discard()
	cfg := &Config{
		Logger:             logger,
		BookingsHandler:    handlers.NewBookingsHandler(stubHistory{}, logger),
		SellersHandler:     handlers.NewSellersHandler(stubSellers{}, logger),
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		CORSAllowedOrigins: []string{"https://leen.example"},
		RateLimiter:        limiter,
		Now:                func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) },
	}

	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Errorf("expected a request id header")
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterRequiresCustomerToken(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/bookings", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer 7|token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with a token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRouterUnmountedHandlersAre404(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/drafts", nil)
	req.Header.Set("Authorization", "Bearer 7|token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unmounted drafts, got %d", rr.Code)
	}
}

func TestRouterRateLimitsCustomers(t *testing.T) {
	router := newTestRouter(t, httpmiddleware.NewRateLimiter(0, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
		req.Header.Set("Authorization", "Bearer 7|token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/bookings", nil)
	req.Header.Set("Origin", "https://leen.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://leen.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRouterMountsSellers(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sellers/42/employees", nil)
	req.Header.Set("Authorization", "Bearer 7|token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for seller employees, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sellers/42/ratings", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected sellers to sit behind customer auth, got %d", rr.Code)
	}
}
