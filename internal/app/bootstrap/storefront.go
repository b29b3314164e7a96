package bootstrap

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/chat"
	appconfig "github.com/wolfman30/leen-storefront/internal/config"
	"github.com/wolfman30/leen-storefront/internal/drafts"
	"github.com/wolfman30/leen-storefront/internal/observability/metrics"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// Storefront is the booking runtime shared by every request.
type Storefront struct {
	Client    *storefront.Client
	Metrics   *metrics.BookingMetrics
	Drafts    *drafts.Registry
	Messenger *chat.Messenger
}

// BuildStorefront wires the marketplace client, the draft session registry
// and chat. The customer token is taken from each request's context.
func BuildStorefront(cfg *appconfig.Config, ledger booking.Ledger, reg prometheus.Registerer, logger *logging.Logger, clock func() time.Time) (*Storefront, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("bootstrap: submit ledger is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clock == nil {
		clock = time.Now
	}

	m := metrics.NewBookingMetrics(reg)
	client := storefront.NewClient(storefront.Options{
		BaseURL: cfg.StorefrontBaseURL,
		Timeout: cfg.StorefrontTimeout,
		Tokens:  storefront.ContextToken{},
		Logger:  logger.With("component", "storefront"),
		Metrics: m,
	})

	deps := booking.Deps{
		Resolver:      booking.NewResolver(client),
		Employees:     booking.NewEmployeeFilter(client),
		Coupons:       booking.NewCouponValidator(client),
		Submitter:     booking.NewSubmitter(client, ledger, logger, m).WithSettleWindow(cfg.SubmitSettleWindow),
		Clock:         clock,
		Location:      cfg.SellerLocation(),
		QuickPickDays: cfg.QuickPickDays,
		CalendarDays:  cfg.CalendarDays,
		Logger:        logger,
		Metrics:       m,
	}
	registry := drafts.NewRegistry(func(id string, svc booking.Service) (*booking.Session, error) {
		return booking.NewSession(id, svc, deps)
	}, drafts.Options{TTL: cfg.DraftTTL, Now: clock, Logger: logger})

	return &Storefront{
		Client:    client,
		Metrics:   m,
		Drafts:    registry,
		Messenger: BuildMessenger(cfg, client, logger),
	}, nil
}

// BuildMessenger wires chat. Without a Pusher app key chat still works over
// REST but the stream endpoint reports realtime as unavailable.
func BuildMessenger(cfg *appconfig.Config, client *storefront.Client, logger *logging.Logger) *chat.Messenger {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PusherAppKey == "" {
		logger.Info("realtime chat disabled; PUSHER_APP_KEY not set")
		return chat.NewMessenger(client, nil, logger)
	}
	sub := chat.NewSubscriber(chat.PusherConfig{
		AppKey:       cfg.PusherAppKey,
		Cluster:      cfg.PusherCluster,
		Host:         cfg.PusherHost,
		AuthEndpoint: cfg.ChatAuthEndpoint,
	}, storefront.ContextToken{}, logger.With("component", "pusher"))
	logger.Info("realtime chat enabled", "cluster", cfg.PusherCluster)
	return chat.NewMessenger(client, sub, logger)
}
