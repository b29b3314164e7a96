package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/leen-storefront/internal/observability/metrics"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

var sessionTracer = otel.Tracer("leen.internal.booking")

// Deps are the collaborators a Session sequences.
type Deps struct {
	Resolver  *Resolver
	Employees *EmployeeFilter
	Coupons   *CouponValidator
	Submitter *Submitter

	Clock         func() time.Time
	Location      *time.Location
	QuickPickDays int
	CalendarDays  int

	Logger  *logging.Logger
	Metrics *metrics.BookingMetrics
	Tracer  trace.Tracer
}

// fetch tracks one network-backed field. gen increases on every new request;
// a response whose generation is no longer current is dropped.
type fetch struct {
	gen     uint64
	loading bool
	cancel  context.CancelFunc
	err     error
}

func (f *fetch) start(parent context.Context) (context.Context, uint64) {
	f.supersede()
	ctx, cancel := context.WithCancel(parent)
	f.cancel = cancel
	f.loading = true
	f.err = nil
	return ctx, f.gen
}

// supersede invalidates any in-flight request for the field.
func (f *fetch) supersede() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
	f.loading = false
	f.err = nil
}

func (f *fetch) finish(gen uint64, err error) bool {
	if gen != f.gen {
		return false
	}
	f.loading = false
	f.cancel = nil
	f.err = err
	return true
}

// Session drives one booking flow for one customer. It is safe for
// concurrent use; network calls run without holding the lock.
type Session struct {
	id       string
	deps     Deps
	logger   *logging.Logger
	lifetime context.Context
	stop     context.CancelFunc

	mu         sync.Mutex
	draft      *Draft
	activeDays []ActiveDay
	weekdays   WeekdaySet
	daysLoaded bool
	days       fetch
	slots      []TimeOfDay
	slotsFetch fetch
	busy       BusySet
	busyFetch  fetch
	couponPrev CouponStatus
	coupon     fetch
	submitting bool
	submitted  *Reservation
	closed     bool
	lastActive time.Time
}

// NewSession opens a flow for service.
func NewSession(id string, service Service, deps Deps) (*Session, error) {
	if deps.Resolver == nil || deps.Employees == nil || deps.Coupons == nil || deps.Submitter == nil {
		panic("booking: session dependencies required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.QuickPickDays <= 0 {
		deps.QuickPickDays = DefaultQuickPickDays
	}
	if deps.CalendarDays <= 0 {
		deps.CalendarDays = DefaultCalendarDays
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = sessionTracer
	}

	draft, err := NewDraft(service)
	if err != nil {
		return nil, err
	}
	lifetime, stop := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		deps:       deps,
		logger:     deps.Logger.With("session_id", id, "seller_id", service.SellerID, "service_id", service.ID),
		lifetime:   lifetime,
		stop:       stop,
		draft:      draft,
		lastActive: deps.Clock(),
	}
	deps.Metrics.SessionOpened()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// LastActive is the time of the last operation, used for idle expiry.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close abandons the flow: in-flight requests are cancelled and their results
// ignored, and every later call fails with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.deps.Metrics.SessionClosed()
	s.logger.Info("booking session closed")
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) today() CalendarDate {
	return DateOf(s.deps.Clock().In(s.deps.Location))
}

// usableLocked rejects operations on closed or already-submitted sessions,
// and every change while a submit is on the wire.
func (s *Session) usableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.submitted != nil {
		return ErrAlreadySubmitted
	}
	if s.submitting {
		return ErrSubmitInProgress
	}
	s.lastActive = s.deps.Clock()
	return nil
}

// bind ties ctx to the session lifetime so Close cancels the request.
func (s *Session) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) stale(op string) error {
	s.deps.Metrics.ObserveStale(op)
	s.logger.Debug("discarded superseded response", "operation", op)
	return ErrStale
}

// LoadActiveDays fetches the seller's weekly template.
func (s *Session) LoadActiveDays(ctx context.Context) error {
	ctx, span := s.deps.Tracer.Start(ctx, "booking.load_active_days")
	defer span.End()

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	sellerID := s.draft.service.SellerID
	opCtx, gen := s.days.start(ctx)
	s.mu.Unlock()

	opCtx, done := s.bind(opCtx)
	days, err := s.deps.Resolver.ActiveDays(opCtx, sellerID)
	done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.days.finish(gen, err) {
		return s.stale(opActiveDays)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.activeDays = days
	s.weekdays = WeekdaysOf(days)
	s.daysLoaded = true
	span.SetAttributes(attribute.Int("leen.active_days", len(days)))
	return nil
}

func (s *Session) ensureActiveDays(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.daysLoaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.LoadActiveDays(ctx)
}

// SelectDate sets the date and fetches its free slots. Time and employee are
// cleared. A response that arrives after another date was chosen returns
// ErrStale and leaves state untouched.
func (s *Session) SelectDate(ctx context.Context, date CalendarDate) ([]TimeOfDay, error) {
	ctx, span := s.deps.Tracer.Start(ctx, "booking.select_date")
	defer span.End()
	span.SetAttributes(attribute.String("leen.date", date.String()))

	if err := s.ensureActiveDays(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.checkDateLocked(date); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.draft.SetDate(date); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.busyFetch.supersede()
	s.busy = nil
	s.slots = nil
	sellerID := s.draft.service.SellerID
	opCtx, gen := s.slotsFetch.start(ctx)
	s.mu.Unlock()

	opCtx, done := s.bind(opCtx)
	slots, err := s.deps.Resolver.AvailableSlots(opCtx, sellerID, date)
	done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.slotsFetch.finish(gen, err) {
		return nil, s.stale(opAvailableTime)
	}
	if err != nil {
		span.RecordError(err)
		s.slots = []TimeOfDay{}
		s.logger.Warn("available slots fetch failed", "date", date.String(), "error", err)
		return nil, err
	}
	s.slots = slots
	span.SetAttributes(attribute.Int("leen.slots", len(slots)))
	return append([]TimeOfDay(nil), slots...), nil
}

func (s *Session) checkDateLocked(date CalendarDate) error {
	today := s.today()
	last := today.AddDays(s.deps.CalendarDays - 1)
	switch {
	case date.IsZero():
		return validationError("select_date", ErrMissingFields, "date is required")
	case date.Before(today) || last.Before(date):
		return validationError("select_date", ErrDateNotBookable, fmt.Sprintf("%s is outside the booking window", date))
	case !IsBookable(s.weekdays, date):
		return validationError("select_date", ErrDateNotBookable, fmt.Sprintf("seller does not work on %s", date.Weekday()))
	}
	return nil
}

// SelectTime sets the start time and fetches which employees are busy then.
func (s *Session) SelectTime(ctx context.Context, t TimeOfDay) ([]EmployeeOption, error) {
	ctx, span := s.deps.Tracer.Start(ctx, "booking.select_time")
	defer span.End()
	span.SetAttributes(attribute.String("leen.time", t.String()))

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.draft.date.IsZero() {
		s.mu.Unlock()
		return nil, validationError("select_time", ErrOutOfOrder, "choose a date first")
	}
	if s.slotsFetch.loading {
		s.mu.Unlock()
		return nil, validationError("select_time", ErrAvailabilityStale, "available times are still loading")
	}
	if !containsTime(s.slots, t) {
		s.mu.Unlock()
		return nil, validationError("select_time", ErrSlotNotOffered, fmt.Sprintf("%s is not available on %s", t, s.draft.date))
	}
	if err := s.draft.SetTime(t); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.busy = nil
	date := s.draft.date
	sellerID := s.draft.service.SellerID
	employees := s.draft.service.Employees
	opCtx, gen := s.busyFetch.start(ctx)
	s.mu.Unlock()

	opCtx, done := s.bind(opCtx)
	busy, err := s.deps.Employees.BusyEmployees(opCtx, sellerID, date, t)
	done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.busyFetch.finish(gen, err) {
		return nil, s.stale(opBusyEmployees)
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("busy employees fetch failed", "date", date.String(), "time", t.String(), "error", err)
		return nil, err
	}
	s.busy = busy
	return Selectable(employees, busy), nil
}

func containsTime(slots []TimeOfDay, t TimeOfDay) bool {
	for _, slot := range slots {
		if slot == t {
			return true
		}
	}
	return false
}

// SelectEmployee picks a staff member. A busy employee is refused and the
// draft keeps its previous selection.
func (s *Session) SelectEmployee(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.draft.time.IsZero() {
		return validationError("select_employee", ErrOutOfOrder, "choose a time first")
	}
	if s.busy == nil {
		return validationError("select_employee", ErrAvailabilityStale, "employee availability is not loaded")
	}
	if s.busy.Has(id) {
		return validationError("select_employee", ErrEmployeeBusy, fmt.Sprintf("employee %d is busy at %s", id, s.draft.time))
	}
	return s.draft.SetEmployee(id)
}

func (s *Session) SetPaymentOption(o PaymentOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	return s.draft.SetPaymentOption(o)
}

func (s *Session) SetLocation(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.draft.SetLocation(location)
	return nil
}

// ApplyCoupon validates code and makes it the draft's only coupon. A rejection
// clears any previously applied coupon; a transport failure keeps it.
func (s *Session) ApplyCoupon(ctx context.Context, code string) (CouponStatus, error) {
	ctx, span := s.deps.Tracer.Start(ctx, "booking.apply_coupon")
	defer span.End()

	code = normalizeCoupon(code)
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return CouponStatus{}, err
	}
	if code == "" {
		status := s.draft.coupon
		s.mu.Unlock()
		return status, validationError(opApplyCoupon, ErrEmptyCouponCode, "enter a coupon code")
	}
	if !s.coupon.loading {
		s.couponPrev = s.draft.coupon
	}
	s.draft.setCoupon(s.couponPrev.pending(code))
	opCtx, gen := s.coupon.start(ctx)
	s.mu.Unlock()

	opCtx, done := s.bind(opCtx)
	percent, err := s.deps.Coupons.Validate(opCtx, code)
	done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CouponStatus{}, ErrSessionClosed
	}
	if !s.coupon.finish(gen, err) {
		return s.draft.coupon, s.stale(opApplyCoupon)
	}
	switch {
	case err == nil:
		s.draft.setCoupon(applied(code, percent))
		s.deps.Metrics.ObserveCoupon("applied")
		s.logger.Info("coupon applied", "code", code, "percent", percent.String())
		return s.draft.coupon, nil
	case IsKind(err, KindCouponRejected) || IsKind(err, KindValidation) || IsKind(err, KindNotFoundOrEmpty):
		s.draft.setCoupon(rejected(code, rejectionReason(err)))
		s.deps.Metrics.ObserveCoupon("rejected")
		s.logger.Info("coupon rejected", "code", code, "reason", s.draft.coupon.Reason)
		return s.draft.coupon, err
	default:
		span.RecordError(err)
		s.draft.setCoupon(s.couponPrev)
		s.deps.Metrics.ObserveCoupon("error")
		return s.draft.coupon, err
	}
}

func rejectionReason(err error) string {
	if be, ok := err.(*Error); ok && be.Message != "" {
		return be.Message
	}
	return "coupon is not valid"
}

// RemoveCoupon drops the applied or pending coupon.
func (s *Session) RemoveCoupon() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.coupon.supersede()
	s.draft.setCoupon(notApplied())
	return nil
}

// Submit sends the draft. Only one submission runs at a time and a session
// creates at most one reservation; repeated calls after success return it.
// On a conflict the schedule selections are cleared so the customer picks
// again.
func (s *Session) Submit(ctx context.Context) (*Reservation, error) {
	ctx, span := s.deps.Tracer.Start(ctx, "booking.submit")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.submitted != nil {
		res := s.submitted
		s.mu.Unlock()
		return res, nil
	}
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	s.lastActive = s.deps.Clock()
	if s.coupon.loading {
		s.mu.Unlock()
		return nil, validationError(opSubmit, ErrCouponPending, "wait for the coupon check to finish")
	}
	req, err := s.draft.Request()
	if err != nil {
		s.mu.Unlock()
		s.deps.Metrics.ObserveSubmit("invalid")
		return nil, err
	}
	s.submitting = true
	s.mu.Unlock()

	opCtx, done := s.bind(ctx)
	res, err := s.deps.Submitter.Submit(opCtx, req)
	done()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err != nil {
		span.RecordError(err)
		if IsKind(err, KindConflict) {
			s.draft.ClearSchedule()
			s.draft.RotateIdempotencyKey()
			s.slotsFetch.supersede()
			s.busyFetch.supersede()
			s.slots = nil
			s.busy = nil
		}
		return nil, err
	}
	if res.Service.Name == "" {
		res.Service = s.draft.service
	}
	if e, ok := s.draft.Employee(); ok && (res.Employee.ID == 0 || res.Employee.ID == e.ID) && res.Employee.Name == "" {
		res.Employee = e
	}
	s.submitted = res
	span.SetAttributes(attribute.Int64("leen.reservation_id", res.ID))
	return res, nil
}

// View is a consistent snapshot of the session for presentation.
type View struct {
	ID             string           `json:"id"`
	Service        Service          `json:"service"`
	ActiveWeekdays []Weekday        `json:"active_weekdays"`
	QuickPick      []CalendarDate   `json:"quick_pick"`
	Calendar       []MonthGroup     `json:"calendar"`
	Date           *CalendarDate    `json:"date,omitempty"`
	Slots          []TimeOfDay      `json:"slots"`
	SlotsLoading   bool             `json:"slots_loading"`
	SlotsError     string           `json:"slots_error,omitempty"`
	Time           *TimeOfDay       `json:"time,omitempty"`
	Employees      []EmployeeOption `json:"employees"`
	BusyLoading    bool             `json:"busy_loading"`
	Employee       *EmployeeRef     `json:"employee,omitempty"`
	PaymentOption  PaymentOption    `json:"payment_option,omitempty"`
	Location       string           `json:"location,omitempty"`
	Coupon         CouponStatus     `json:"coupon"`
	Price          Price            `json:"price"`
	AmountDueNow   decimal.Decimal  `json:"amount_due_now"`
	Submittable    bool             `json:"submittable"`
	Missing        []string         `json:"missing,omitempty"`
	Submitting     bool             `json:"submitting"`
	Reservation    *Reservation     `json:"reservation,omitempty"`
	Closed         bool             `json:"closed"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	d := s.draft
	price := d.Quote()
	v := View{
		ID:             s.id,
		Service:        d.service,
		ActiveWeekdays: s.weekdays.Days(),
		QuickPick:      QuickPick(s.weekdays, today, s.deps.QuickPickDays),
		Calendar:       Calendar(s.weekdays, today, s.deps.CalendarDays),
		Slots:          append([]TimeOfDay{}, s.slots...),
		SlotsLoading:   s.slotsFetch.loading,
		BusyLoading:    s.busyFetch.loading,
		PaymentOption:  d.payment,
		Location:       d.location,
		Coupon:         d.coupon,
		Price:          price,
		AmountDueNow:   AmountDueNow(price, d.payment),
		Submittable:    d.Submittable(),
		Missing:        d.Missing(),
		Submitting:     s.submitting,
		Reservation:    s.submitted,
		Closed:         s.closed,
	}
	if s.slotsFetch.err != nil {
		v.SlotsError = s.slotsFetch.err.Error()
	}
	if !d.date.IsZero() {
		date := d.date
		v.Date = &date
	}
	if !d.time.IsZero() {
		t := d.time
		v.Time = &t
		if s.busy != nil {
			v.Employees = Selectable(d.service.Employees, s.busy)
		}
	}
	if v.Employees == nil {
		v.Employees = Selectable(d.service.Employees, nil)
	}
	if e, ok := d.Employee(); ok {
		v.Employee = &e
	}
	return v
}
