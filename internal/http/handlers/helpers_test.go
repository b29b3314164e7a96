package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/drafts"
	httpmiddleware "github.com/wolfman30/leen-storefront/internal/http/middleware"
	"github.com/wolfman30/leen-storefront/internal/idempotency"
	"github.com/wolfman30/leen-storefront/internal/observability/metrics"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

const customerToken = "12|customer-token"

// fakeMarketplace answers the marketplace endpoints a booking flow touches.
type fakeMarketplace struct {
	mu           sync.Mutex
	bookConflict bool
	bookKeys     []string
	bookBodies   []map[string]any
	cancelled    []string
	ratings      []map[string]any
}

func (m *fakeMarketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authed := r.Header.Get("Authorization") == "Bearer "+customerToken
	reply := func(status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	requireAuth := func() bool {
		if !authed {
			reply(http.StatusUnauthorized, `{"message":"Unauthenticated."}`)
			return false
		}
		return true
	}

	switch {
	case r.URL.Path == "/customer/seller/studioServices/42":
		reply(http.StatusOK, `{"data":[{"id":7,"name":"Bridal makeup","price":"100.00","discount":0,"seller":{"id":42},
			"employees":[{"id":1,"name":"Noura"},{"id":2,"name":"Reem"}]},
			{"id":5,"name":"Blowout","price":"40","seller":{"id":42},"employees":[]}]}`)
	case r.URL.Path == "/seller/42/employees":
		reply(http.StatusOK, `{"data":[{"id":1,"name":"Noura","position":"Stylist"},{"id":3,"name":"Huda"}]}`)
	case r.URL.Path == "/customer/seller/rating/42":
		if requireAuth() {
			reply(http.StatusOK, `{"average_rating":4.5,"ratings_count":2,"data":[
				{"id":1,"rating":5,"review":"Lovely","created_at":"2026-10-01T10:05:00Z","customer":{"first_name":"Sara","last_name":"A"}},
				{"id":2,"rating":4,"created_at":"2026-10-02 08:00:00"}]}`)
		}
	case r.URL.Path == "/customer/rating":
		if !requireAuth() {
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.ratings = append(m.ratings, body)
		m.mu.Unlock()
		reply(http.StatusOK, `{"status":"success"}`)
	case r.URL.Path == "/seller/42/active-weekdays":
		reply(http.StatusOK, `{"data":[{"day":"Saturday","start_time":"09:00:00","end_time":"18:00:00"}]}`)
	case r.URL.Path == "/check-available-times":
		if requireAuth() {
			reply(http.StatusOK, `{"availableTimes":["10:00","11:30"]}`)
		}
	case r.URL.Path == "/check-employee-availability":
		if requireAuth() {
			reply(http.StatusOK, `{"busyEmployees at this time":[2]}`)
		}
	case r.URL.Path == "/customer/coupons/apply":
		if !requireAuth() {
			return
		}
		var body struct{ Code string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Code == "SAVE10" {
			reply(http.StatusOK, `{"discount_value":10}`)
			return
		}
		reply(http.StatusBadRequest, `{"message":"Coupon expired"}`)
	case r.URL.Path == "/customer/studioServices/book":
		if !requireAuth() {
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.bookKeys = append(m.bookKeys, r.Header.Get(storefront.IdempotencyHeader))
		m.bookBodies = append(m.bookBodies, body)
		conflict := m.bookConflict
		m.mu.Unlock()
		if conflict {
			reply(http.StatusConflict, `{"message":"Employee is not available at this time"}`)
			return
		}
		reply(http.StatusOK, `{"message":"Booked","bookingId":321}`)
	case r.URL.Path == "/customer/studioServices/bookings":
		if requireAuth() {
			reply(http.StatusOK, `{"data":[
				{"id":11,"booking_status":"done","date":"2026-10-10","start_time":"10:00:00","paid_amount":"90","copoun_discount":"10",
				 "studio_service":{"id":7,"name":"Bridal makeup","price":"100.00"}},
				{"id":12,"booking_status":"pending","date":"2026-10-24","start_time":"11:30:00","paid_amount":"0",
				 "studio_service":{"id":7,"name":"Bridal makeup","price":"100.00"},
				 "additionalStudioServiceBookingItems":[{"service":{"name":"Lashes","price":"25"}}]}
			]}`)
		}
	case r.URL.Path == "/customer/homeServices/bookings":
		if requireAuth() {
			reply(http.StatusOK, `{"data":[{"id":30,"booking_status":"cancelled","date":"2026-09-01","start_time":"09:00",
				"home_service":{"id":9,"name":"Henna","price":"60"}}]}`)
		}
	case strings.HasPrefix(r.URL.Path, "/customer/cancel/"):
		if !requireAuth() {
			return
		}
		m.mu.Lock()
		m.cancelled = append(m.cancelled, r.Method+" "+r.URL.Path)
		m.mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/99") {
			reply(http.StatusBadRequest, `{"message":"Booking can no longer be cancelled"}`)
			return
		}
		reply(http.StatusOK, `{"message":"Cancelled"}`)
	default:
		reply(http.StatusNotFound, `{"message":"Not Found"}`)
	}
}

func (m *fakeMarketplace) setConflict(v bool) {
	m.mu.Lock()
	m.bookConflict = v
	m.mu.Unlock()
}

type testAPI struct {
	handler  http.Handler
	market   *fakeMarketplace
	registry *drafts.Registry
}

// newTestAPI wires the real client, sessions and handlers against the fake
// marketplace. The clock is fixed on Sunday 2026-10-18 so the next bookable
// Saturday is 2026-10-24.
func newTestAPI(t *testing.T, chat ChatService) *testAPI {
	t.Helper()
	market := &fakeMarketplace{}
	ts := httptest.NewServer(market)
	t.Cleanup(ts.Close)

	logger := logging.Discard()
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	client := storefront.NewClient(storefront.Options{
		BaseURL: ts.URL,
		Tokens:  storefront.ContextToken{},
		Logger:  logger,
		Metrics: m,
	})
	clock := func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	deps := booking.Deps{
		Resolver:  booking.NewResolver(client),
		Employees: booking.NewEmployeeFilter(client),
		Coupons:   booking.NewCouponValidator(client),
		Submitter: booking.NewSubmitter(client, idempotency.NewMemoryLedger(time.Hour), logger, m),
		Clock:     clock,
		Logger:    logger,
		Metrics:   m,
	}
	registry := drafts.NewRegistry(func(id string, svc booking.Service) (*booking.Session, error) {
		return booking.NewSession(id, svc, deps)
	}, drafts.Options{Now: clock, Logger: logger})
	t.Cleanup(registry.CloseAll)

	r := chi.NewRouter()
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpmiddleware.CustomerAuth(clock))
		v1.Mount("/drafts", NewDraftsHandler(registry, client, logger).Routes())
		v1.Mount("/bookings", NewBookingsHandler(client, logger).Routes())
		v1.Mount("/sellers", NewSellersHandler(client, logger).Routes())
		if chat != nil {
			v1.Mount("/chat", NewChatHandler(chat, nil, logger).Routes())
		}
	})
	return &testAPI{handler: r, market: market, registry: registry}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return a.doAs(t, customerToken, method, path, body)
}

func (a *testAPI) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
