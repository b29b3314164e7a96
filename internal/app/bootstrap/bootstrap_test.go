package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/leen-storefront/internal/booking"
	appconfig "github.com/wolfman30/leen-storefront/internal/config"
	"github.com/wolfman30/leen-storefront/internal/idempotency"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifiesConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client once redis is gone")
	}
}

func TestBuildSubmitLedger(t *testing.T) {
	cfg := &appconfig.Config{SubmitLedgerTTL: time.Hour}

	ledger, mem := BuildSubmitLedger(nil, cfg, logging.Discard())
	if mem == nil || ledger != booking.Ledger(mem) {
		t.Fatalf("expected memory ledger without redis, got %T", ledger)
	}

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), false)
	defer client.Close()
	ledger, mem = BuildSubmitLedger(client, cfg, logging.Discard())
	if mem != nil {
		t.Fatalf("expected no memory ledger with redis")
	}
	if _, ok := ledger.(*idempotency.RedisLedger); !ok {
		t.Fatalf("expected redis ledger, got %T", ledger)
	}
}

func TestBuildStorefrontRequiresConfig(t *testing.T) {
	if _, err := BuildStorefront(nil, idempotency.NewMemoryLedger(time.Hour), prometheus.NewRegistry(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := BuildStorefront(&appconfig.Config{}, nil, prometheus.NewRegistry(), nil, nil); err == nil {
		t.Fatalf("expected error for nil ledger")
	}
}

func TestBuildStorefrontWithoutRealtime(t *testing.T) {
	cfg := &appconfig.Config{
		StorefrontBaseURL: "http://127.0.0.1:0",
		SellerTimezone:    "Asia/Riyadh",
		DraftTTL:          time.Minute,
	}
	sf, err := BuildStorefront(cfg, idempotency.NewMemoryLedger(time.Hour), prometheus.NewRegistry(), logging.Discard(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sf.Drafts.CloseAll()
	if sf.Client.BaseURL() != "http://127.0.0.1:0" {
		t.Fatalf("unexpected base url %s", sf.Client.BaseURL())
	}
	if sf.Messenger.Live() {
		t.Fatalf("expected chat without realtime when no app key is set")
	}

	session, err := sf.Drafts.Open("tok:a1", booking.Service{ID: 7, SellerID: 42, Type: booking.ServiceStudio})
	if err != nil {
		t.Fatalf("open draft: %v", err)
	}
	if sf.Drafts.Len() != 1 || session.ID() == "" {
		t.Fatalf("expected one open draft")
	}
}

func TestBuildMessengerWithAppKeyIsLive(t *testing.T) {
	cfg := &appconfig.Config{PusherAppKey: "key", PusherCluster: "eu"}
	client := storefront.NewClient(storefront.Options{BaseURL: "http://127.0.0.1:0"})
	if m := BuildMessenger(cfg, client, logging.Discard()); !m.Live() {
		t.Fatalf("expected live messenger")
	}
}
