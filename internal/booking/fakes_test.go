package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// remoteErr stands in for the storefront client's HTTP error.
type remoteErr struct {
	status int
	msg    string
}

func (e *remoteErr) Error() string          { return fmt.Sprintf("status %d: %s", e.status, e.msg) }
func (e *remoteErr) StatusCode() int        { return e.status }
func (e *remoteErr) BackendMessage() string { return e.msg }

// fakeMarket implements every backend interface the booking package consumes.
type fakeMarket struct {
	mu sync.Mutex

	activeDays   []ActiveDay
	activeErr    error
	slotsFn      func(ctx context.Context, date CalendarDate) ([]TimeOfDay, error)
	busyFn       func(ctx context.Context, date CalendarDate, start TimeOfDay) ([]int64, error)
	couponFn     func(ctx context.Context, code string) (decimal.Decimal, error)
	bookFn       func(ctx context.Context, req ReservationRequest) (*Reservation, error)
	bookRequests []ReservationRequest
	calls        map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		activeDays: []ActiveDay{{Weekday: Saturday, Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("18:00")}},
		calls:      map[string]int{},
	}
}

func (f *fakeMarket) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeMarket) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeMarket) ActiveDays(_ context.Context, _ int64) ([]ActiveDay, error) {
	f.hit("active_days")
	return f.activeDays, f.activeErr
}

func (f *fakeMarket) AvailableTimes(ctx context.Context, _ int64, date CalendarDate) ([]TimeOfDay, error) {
	f.hit("available_times")
	if f.slotsFn != nil {
		return f.slotsFn(ctx, date)
	}
	return []TimeOfDay{MustTimeOfDay("10:00"), MustTimeOfDay("11:30")}, nil
}

func (f *fakeMarket) BusyEmployees(ctx context.Context, _ int64, date CalendarDate, start TimeOfDay) ([]int64, error) {
	f.hit("busy_employees")
	if f.busyFn != nil {
		return f.busyFn(ctx, date, start)
	}
	return []int64{2}, nil
}

func (f *fakeMarket) ApplyCoupon(ctx context.Context, code string) (decimal.Decimal, error) {
	f.hit("apply_coupon")
	if f.couponFn != nil {
		return f.couponFn(ctx, code)
	}
	if code == "SAVE10" {
		return decimal.NewFromInt(10), nil
	}
	return decimal.Zero, &remoteErr{status: 400, msg: "Invalid coupon code"}
}

func (f *fakeMarket) Book(ctx context.Context, req ReservationRequest) (*Reservation, error) {
	f.hit("book")
	f.mu.Lock()
	f.bookRequests = append(f.bookRequests, req)
	f.mu.Unlock()
	if f.bookFn != nil {
		return f.bookFn(ctx, req)
	}
	return &Reservation{ID: 501, Date: req.Date, Time: req.StartTime, PaidAmount: req.PaidAmount}, nil
}

// memLedger is a minimal in-process Ledger.
type memLedger struct {
	mu      sync.Mutex
	pending map[string]bool
	done    map[string]*Reservation
	held    map[string]time.Duration
}

func newMemLedger() *memLedger {
	return &memLedger{pending: map[string]bool{}, done: map[string]*Reservation{}}
}

func (l *memLedger) Claim(_ context.Context, key string) (bool, *Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.done[key]; ok {
		return false, r, nil
	}
	if l.pending[key] {
		return false, nil, nil
	}
	l.pending[key] = true
	return true, nil, nil
}

func (l *memLedger) Complete(_ context.Context, key string, r *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, key)
	l.done[key] = r
	return nil
}

func (l *memLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, key)
	return nil
}

func (l *memLedger) Hold(_ context.Context, key string, d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending[key] {
		if l.held == nil {
			l.held = map[string]time.Duration{}
		}
		l.held[key] = d
	}
	return nil
}

func testService() Service {
	return Service{
		ID:       7,
		Name:     "Bridal makeup",
		Type:     ServiceStudio,
		SellerID: 42,
		Price:    decimal.NewFromInt(100),
		Employees: []EmployeeRef{
			{ID: 1, Name: "Noura"},
			{ID: 2, Name: "Reem"},
		},
	}
}

// sunday is 2026-10-18; the next Saturday is 2026-10-24.
var (
	sunday   = CalendarDate{Year: 2026, Month: time.October, Day: 18}
	saturday = CalendarDate{Year: 2026, Month: time.October, Day: 24}
)

func newTestSession(t testing.TB, market *fakeMarket, ledger Ledger) *Session {
	deps := Deps{
		Resolver:  NewResolver(market),
		Employees: NewEmployeeFilter(market),
		Coupons:   NewCouponValidator(market),
		Submitter: NewSubmitter(market, ledger, logging.Discard(), nil),
		Clock: func() time.Time {
			return time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
		},
		Logger: logging.Discard(),
	}
	s, err := NewSession("sess-1", testService(), deps)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}
