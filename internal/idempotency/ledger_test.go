package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leen-storefront/internal/booking"
)

func newRedisLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client, time.Hour), mr
}

func reservation() *booking.Reservation {
	return &booking.Reservation{
		ID:         77,
		Status:     booking.StatusPending,
		Date:       booking.CalendarDate{Year: 2026, Month: time.October, Day: 24},
		Time:       booking.MustTimeOfDay("10:00"),
		PaidAmount: decimal.RequireFromString("90"),
	}
}

func TestRedisLedger_ClaimCompleteReplay(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()

	claimed, existing, err := ledger.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)
	assert.True(t, mr.TTL(keyPrefix+"k1") > 0)

	claimed, existing, err = ledger.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Nil(t, existing, "pending claim blocks without a reservation")

	require.NoError(t, ledger.Complete(ctx, "k1", reservation()))
	claimed, existing, err = ledger.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.Equal(t, int64(77), existing.ID)
	assert.Equal(t, "10:00", existing.Time.String())
	assert.True(t, existing.PaidAmount.Equal(decimal.NewFromInt(90)))
}

func TestRedisLedger_ReleaseOnlyPending(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Claim(ctx, "k2")
	require.NoError(t, err)
	require.NoError(t, ledger.Release(ctx, "k2"))
	assert.False(t, mr.Exists(keyPrefix+"k2"))

	claimed, _, err := ledger.Claim(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, ledger.Complete(ctx, "k2", reservation()))
	require.NoError(t, ledger.Release(ctx, "k2"))
	assert.True(t, mr.Exists(keyPrefix+"k2"), "completed entries survive release")
}

func TestRedisLedger_Expiry(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()
	_, _, err := ledger.Claim(ctx, "k3")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	claimed, _, err := ledger.Claim(ctx, "k3")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisLedger_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	ledger := NewRedisLedger(client, time.Hour)
	_, _, err = ledger.Claim(context.Background(), "k4")
	assert.Error(t, err)
}

func TestRedisLedger_WithSubmitter(t *testing.T) {
	ledger, _ := newRedisLedger(t)
	api := &countingAPI{}
	sub := booking.NewSubmitter(api, ledger, nil, nil)
	req := booking.ReservationRequest{
		ServiceType:    booking.ServiceStudio,
		ServiceID:      7,
		IdempotencyKey: "draft-key",
	}
	first, err := sub.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := sub.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, api.calls)
}

type countingAPI struct{ calls int }

func (a *countingAPI) Book(context.Context, booking.ReservationRequest) (*booking.Reservation, error) {
	a.calls++
	return reservation(), nil
}

func TestMemoryLedger(t *testing.T) {
	ledger := NewMemoryLedger(time.Minute)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }
	ctx := context.Background()

	claimed, _, _ := ledger.Claim(ctx, "a")
	assert.True(t, claimed)
	claimed, existing, _ := ledger.Claim(ctx, "a")
	assert.False(t, claimed)
	assert.Nil(t, existing)

	require.NoError(t, ledger.Release(ctx, "a"))
	claimed, _, _ = ledger.Claim(ctx, "a")
	assert.True(t, claimed)

	require.NoError(t, ledger.Complete(ctx, "a", reservation()))
	require.NoError(t, ledger.Release(ctx, "a"))
	_, existing, _ = ledger.Claim(ctx, "a")
	require.NotNil(t, existing)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, ledger.Sweep())
	claimed, _, _ = ledger.Claim(ctx, "a")
	assert.True(t, claimed)
}

func TestRedisLedger_HoldShortensPendingOnly(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Claim(ctx, "h1")
	require.NoError(t, err)
	require.NoError(t, ledger.Hold(ctx, "h1", 2*time.Minute))
	assert.Equal(t, 2*time.Minute, mr.TTL(keyPrefix+"h1"))

	claimed, _, err := ledger.Claim(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, claimed)

	mr.FastForward(3 * time.Minute)
	claimed, _, err = ledger.Claim(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, ledger.Complete(ctx, "h1", reservation()))
	require.NoError(t, ledger.Hold(ctx, "h1", time.Second))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"h1"), "completed entries keep their TTL")
}

type flakyAPI struct{ calls int }

func (a *flakyAPI) Book(context.Context, booking.ReservationRequest) (*booking.Reservation, error) {
	a.calls++
	if a.calls == 1 {
		return nil, context.DeadlineExceeded
	}
	return reservation(), nil
}

func TestRedisLedger_TransportFailureKeepsClaim(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	api := &flakyAPI{}
	sub := booking.NewSubmitter(api, ledger, nil, nil).WithSettleWindow(time.Minute)
	req := booking.ReservationRequest{ServiceType: booking.ServiceStudio, ServiceID: 7, IdempotencyKey: "draft-key"}

	_, err := sub.Submit(context.Background(), req)
	assert.Equal(t, booking.KindTransport, booking.KindOf(err))
	assert.True(t, mr.Exists(keyPrefix+"draft-key"))

	_, err = sub.Submit(context.Background(), req)
	assert.ErrorIs(t, err, booking.ErrSubmitInProgress)
	assert.Equal(t, 1, api.calls)

	mr.FastForward(2 * time.Minute)
	res, err := sub.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.ID)
	assert.Equal(t, 2, api.calls)
}

func TestMemoryLedger_Hold(t *testing.T) {
	ledger := NewMemoryLedger(time.Hour)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, _ = ledger.Claim(ctx, "b")
	require.NoError(t, ledger.Hold(ctx, "b", time.Minute))
	now = now.Add(30 * time.Second)
	claimed, _, _ := ledger.Claim(ctx, "b")
	assert.False(t, claimed)
	now = now.Add(time.Minute)
	claimed, _, _ = ledger.Claim(ctx, "b")
	assert.True(t, claimed)
}
