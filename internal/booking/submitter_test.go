package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leen-storefront/pkg/logging"
)

func TestSubmitter_DefaultsStatusPending(t *testing.T) {
	market := newFakeMarket()
	sub := NewSubmitter(market, nil, logging.Discard(), nil)

	res, err := sub.SubmitDraft(context.Background(), filledDraft(t))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, ServiceStudio, res.ServiceType)
	assert.Equal(t, 1, market.count("book"))
}

func TestSubmitter_LedgerReplaysCompletedKey(t *testing.T) {
	market := newFakeMarket()
	sub := NewSubmitter(market, newMemLedger(), logging.Discard(), nil)
	d := filledDraft(t)

	first, err := sub.SubmitDraft(context.Background(), d)
	require.NoError(t, err)
	second, err := sub.SubmitDraft(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, market.count("book"))
}

func TestSubmitter_LedgerBlocksConcurrentAttempt(t *testing.T) {
	ledger := newMemLedger()
	d := filledDraft(t)
	claimed, _, err := ledger.Claim(context.Background(), d.IdempotencyKey())
	require.NoError(t, err)
	require.True(t, claimed)

	market := newFakeMarket()
	sub := NewSubmitter(market, ledger, logging.Discard(), nil)
	_, err = sub.SubmitDraft(context.Background(), d)
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assert.Zero(t, market.count("book"))
}

func TestSubmitter_FailureReleasesKey(t *testing.T) {
	ledger := newMemLedger()
	market := newFakeMarket()
	market.bookFn = func(context.Context, ReservationRequest) (*Reservation, error) {
		return nil, &remoteErr{status: 409, msg: "slot already booked"}
	}
	sub := NewSubmitter(market, ledger, logging.Discard(), nil)
	d := filledDraft(t)

	_, err := sub.SubmitDraft(context.Background(), d)
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindConflict, be.Kind)
	assert.Equal(t, ReasonSlotTaken, be.Reason)

	claimed, _, err := ledger.Claim(context.Background(), d.IdempotencyKey())
	require.NoError(t, err)
	assert.True(t, claimed, "key must be free again after a failed attempt")
}

type brokenLedger struct{}

func (brokenLedger) Claim(context.Context, string) (bool, *Reservation, error) {
	return false, nil, errors.New("redis: connection refused")
}
func (brokenLedger) Complete(context.Context, string, *Reservation) error { return nil }
func (brokenLedger) Release(context.Context, string) error                { return nil }
func (brokenLedger) Hold(context.Context, string, time.Duration) error    { return nil }

func TestSubmitter_UnavailableLedgerStillSubmits(t *testing.T) {
	market := newFakeMarket()
	sub := NewSubmitter(market, brokenLedger{}, logging.Discard(), nil)
	res, err := sub.SubmitDraft(context.Background(), filledDraft(t))
	require.NoError(t, err)
	assert.Equal(t, int64(501), res.ID)
	require.Len(t, market.bookRequests, 1)
	assert.NotEmpty(t, market.bookRequests[0].IdempotencyKey)
}

func TestSubmitter_RequiresIdempotencyKey(t *testing.T) {
	sub := NewSubmitter(newFakeMarket(), nil, logging.Discard(), nil)
	_, err := sub.Submit(context.Background(), ReservationRequest{ServiceID: 7})
	assert.ErrorIs(t, err, ErrContract)
}

func TestSubmitter_TransportFailureHoldsKey(t *testing.T) {
	ledger := newMemLedger()
	market := newFakeMarket()
	market.bookFn = func(context.Context, ReservationRequest) (*Reservation, error) {
		return nil, context.DeadlineExceeded
	}
	sub := NewSubmitter(market, ledger, logging.Discard(), nil).WithSettleWindow(90 * time.Second)
	d := filledDraft(t)

	_, err := sub.SubmitDraft(context.Background(), d)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, 90*time.Second, ledger.held[d.IdempotencyKey()])

	_, err = sub.SubmitDraft(context.Background(), d)
	assert.ErrorIs(t, err, ErrSubmitInProgress, "the first attempt may still land")
	assert.Equal(t, 1, market.count("book"))

	// Settle window elapsed.
	require.NoError(t, ledger.Release(context.Background(), d.IdempotencyKey()))
	market.bookFn = nil
	res, err := sub.SubmitDraft(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(501), res.ID)
	require.Len(t, market.bookRequests, 2)
	assert.Equal(t, market.bookRequests[0].IdempotencyKey, market.bookRequests[1].IdempotencyKey)
}
