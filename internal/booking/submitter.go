package booking

import (
	"context"
	"time"

	"github.com/wolfman30/leen-storefront/internal/observability/metrics"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// ReservationAPI creates reservations on the marketplace.
type ReservationAPI interface {
	Book(ctx context.Context, req ReservationRequest) (*Reservation, error)
}

// Ledger records submit attempts by idempotency key so a draft creates at
// most one reservation even across gateway instances.
type Ledger interface {
	// Claim reserves key. When the key was already completed it returns the
	// stored reservation; when it is held by another attempt claimed is false
	// and existing is nil.
	Claim(ctx context.Context, key string) (claimed bool, existing *Reservation, err error)
	Complete(ctx context.Context, key string, r *Reservation) error
	Release(ctx context.Context, key string) error
	// Hold keeps a pending claim for d from now instead of its full TTL.
	Hold(ctx context.Context, key string, d time.Duration) error
}

// DefaultSettleWindow is how long a key stays claimed after a submit whose
// outcome is unknown.
const DefaultSettleWindow = 2 * time.Minute

// Submitter sends finished drafts to the backend.
type Submitter struct {
	api     ReservationAPI
	ledger  Ledger
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	settle  time.Duration
}

// NewSubmitter builds a submitter. ledger may be nil; the backend still
// receives the idempotency key.
func NewSubmitter(api ReservationAPI, ledger Ledger, logger *logging.Logger, m *metrics.BookingMetrics) *Submitter {
	if api == nil {
		panic("booking: reservation api required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{api: api, ledger: ledger, logger: logger, metrics: m, settle: DefaultSettleWindow}
}

// WithSettleWindow sets how long a key stays claimed after a transport
// failure. Non-positive values keep the default.
func (s *Submitter) WithSettleWindow(d time.Duration) *Submitter {
	if d > 0 {
		s.settle = d
	}
	return s
}

// SubmitDraft validates d and submits it. A draft with a missing selection
// never reaches the network.
func (s *Submitter) SubmitDraft(ctx context.Context, d *Draft) (*Reservation, error) {
	req, err := d.Request()
	if err != nil {
		s.metrics.ObserveSubmit("invalid")
		return nil, err
	}
	return s.Submit(ctx, req)
}

// Submit creates the reservation for req. Failures are classified; conflicts
// are surfaced, never retried.
//
// A rejected attempt frees its key. A transport failure does not: the
// request may have reached the backend, so the key stays claimed for the
// settle window and a retry inside it gets ErrSubmitInProgress. A retry
// after the window resends the same Idempotency-Key, which the marketplace
// deduplicates.
func (s *Submitter) Submit(ctx context.Context, req ReservationRequest) (*Reservation, error) {
	if req.IdempotencyKey == "" {
		return nil, validationError(opSubmit, ErrContract, "idempotency key is required")
	}

	if s.ledger != nil {
		claimed, existing, err := s.ledger.Claim(ctx, req.IdempotencyKey)
		switch {
		case err != nil:
			s.logger.Warn("submit ledger unavailable", "error", err, "idempotency_key", req.IdempotencyKey)
		case existing != nil:
			s.metrics.ObserveSubmit("replayed")
			return existing, nil
		case !claimed:
			s.metrics.ObserveSubmit("in_progress")
			return nil, ErrSubmitInProgress
		}
	}

	res, err := s.api.Book(ctx, req)
	if err != nil {
		classified := classify(opSubmit, err)
		if IsKind(classified, KindTransport) {
			s.hold(req.IdempotencyKey)
		} else {
			s.release(req.IdempotencyKey)
		}
		s.metrics.ObserveSubmit(string(KindOf(classified)))
		s.logger.Warn("reservation rejected",
			"error", classified,
			"service_id", req.ServiceID,
			"date", req.Date.String(),
			"start_time", req.StartTime.String(),
		)
		return nil, classified
	}
	if res.Status == "" {
		res.Status = StatusPending
	}
	if res.ServiceType == "" {
		res.ServiceType = req.ServiceType
	}

	if s.ledger != nil {
		if err := s.ledger.Complete(ctx, req.IdempotencyKey, res); err != nil {
			s.logger.Warn("submit ledger complete failed", "error", err, "idempotency_key", req.IdempotencyKey)
		}
	}
	s.metrics.ObserveSubmit("created")
	s.logger.Info("reservation created", "reservation_id", res.ID, "seller_id", req.SellerID, "service_id", req.ServiceID)
	return res, nil
}

func (s *Submitter) release(key string) {
	if s.ledger == nil {
		return
	}
	// The caller's context may already be done; the release must still land.
	if err := s.ledger.Release(context.Background(), key); err != nil {
		s.logger.Warn("submit ledger release failed", "error", err, "idempotency_key", key)
	}
}

func (s *Submitter) hold(key string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Hold(context.Background(), key, s.settle); err != nil {
		s.logger.Warn("submit ledger hold failed", "error", err, "idempotency_key", key)
	}
}
