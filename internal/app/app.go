// Package app wires configuration into the stores and services shared by the
// API, the worker and pharmactl.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/auth"
	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
	"github.com/imrishuroy/pharmacy-orderflow/internal/cache"
	"github.com/imrishuroy/pharmacy-orderflow/internal/catalog"
	"github.com/imrishuroy/pharmacy-orderflow/internal/config"
	"github.com/imrishuroy/pharmacy-orderflow/internal/idempotency"
	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/metrics"
	"github.com/imrishuroy/pharmacy-orderflow/internal/notify"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
	"github.com/imrishuroy/pharmacy-orderflow/internal/recommend"
	"github.com/imrishuroy/pharmacy-orderflow/internal/users"
)

// PrometheusNamespace prefixes every Prometheus metric.
const PrometheusNamespace = "pharmacy"

// App holds the long-lived services of one process.
type App struct {
	Config      *config.Config
	Clients     *aws.AWSClients
	Catalog     *catalog.Store
	Users       *users.Store
	Tracker     *orders.Tracker
	Recommender *recommend.Service
	Issuer      *auth.Issuer
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry

	cache *cache.Cache
}

// New builds every store and service from cfg. A Redis cache that cannot be
// reached is logged and skipped; the catalog is then read straight from
// DynamoDB.
func New(ctx context.Context, cfg *config.Config, clients *aws.AWSClients) (*App, error) {
	log := logger.GetLogger()

	a := &App{
		Config:   cfg,
		Clients:  clients,
		Catalog:  catalog.NewStore(clients.DynamoDB, cfg.Tables.Catalog),
		Users:    users.NewStore(clients.DynamoDB, cfg.Tables.Users),
		Issuer:   auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Registry: prometheus.NewRegistry(),
	}
	a.Metrics = metrics.New(PrometheusNamespace, a.Registry)

	var pool catalog.Lister = a.Catalog
	var invalidator orders.StockInvalidator
	if cfg.Cache.Addr != "" {
		c, err := cache.Connect(ctx, cfg.Cache.Addr, cfg.Cache.Password)
		if err != nil {
			log.Warn("catalog cache disabled", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		} else {
			a.cache = c
			cached := catalog.NewCachedLister(a.Catalog, c, cfg.Cache.TTL)
			pool = cached
			invalidator = cached
		}
	}

	recorders := metrics.Multi{a.Metrics}
	if cfg.Metrics.CloudWatchEnabled {
		recorders = append(recorders, aws.NewCloudWatchRecorder(clients.CloudWatch, cfg.Metrics.Namespace))
	}

	notifier, err := newNotifier(cfg, clients)
	if err != nil {
		return nil, err
	}

	a.Tracker = orders.NewTracker(orders.TrackerConfig{
		Orders:        orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.DeliveryIndex),
		History:       orders.NewHistoryStore(clients.DynamoDB, cfg.Tables.UserOrders),
		Catalog:       a.Catalog,
		Users:         a.Users,
		Idempotency:   idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.IdempotencyTTL),
		Notifier:      notifier,
		Metrics:       recorders,
		Invalidator:   invalidator,
		NotifyTimeout: cfg.Notify.Timeout,
	})
	a.Recommender = recommend.NewService(pool, a.Catalog, a.Tracker, a.Metrics)
	return a, nil
}

// newNotifier prefers the SQS outbox, then direct HTTP delivery.
func newNotifier(cfg *config.Config, clients *aws.AWSClients) (notify.Notifier, error) {
	switch {
	case cfg.Notify.QueueURL != "":
		return notify.NewQueueNotifier(aws.NewPublisher(clients.SQS, cfg.Notify.QueueURL)), nil
	case cfg.Notify.Endpoint != "":
		return notify.NewHTTPNotifier(cfg.Notify.Endpoint, cfg.Notify.PushEndpoint, cfg.Notify.Timeout), nil
	case cfg.Notify.PushEndpoint != "":
		return nil, fmt.Errorf("PUSH_ENDPOINT requires NOTIFY_ENDPOINT")
	default:
		logger.GetLogger().Info("notifications disabled")
		return notify.Nop{}, nil
	}
}

// Close releases the cache connection.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}
