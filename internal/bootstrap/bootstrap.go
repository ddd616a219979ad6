// Package bootstrap assembles the control services from configuration. Both
// binaries build the same Components; the API serves HTTP on top of them and
// the worker runs the job consumers.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	contactApp "github.com/mamang/control_services/internal/contact_service/app"
	contactDomain "github.com/mamang/control_services/internal/contact_service/domain"
	contactMemory "github.com/mamang/control_services/internal/contact_service/repository/memory"
	contactPostgres "github.com/mamang/control_services/internal/contact_service/repository/postgres"
	contactHTTP "github.com/mamang/control_services/internal/contact_service/transport/http"
	messageApp "github.com/mamang/control_services/internal/message_service/app"
	messageDomain "github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/message_service/provider"
	messageMemory "github.com/mamang/control_services/internal/message_service/repository/memory"
	messagePostgres "github.com/mamang/control_services/internal/message_service/repository/postgres"
	messageHTTP "github.com/mamang/control_services/internal/message_service/transport/http"
	"github.com/mamang/control_services/internal/platform/config"
	"github.com/mamang/control_services/internal/platform/database"
	"github.com/mamang/control_services/internal/platform/httpserver"
	"github.com/mamang/control_services/internal/platform/idempotency"
	"github.com/mamang/control_services/internal/platform/messagebroker"
	"github.com/mamang/control_services/internal/platform/retry"
	"github.com/mamang/control_services/internal/platform/tasks"
	"github.com/mamang/control_services/internal/platform/transport"
	"github.com/mamang/control_services/internal/subscription_service/adapters/contentstore"
	"github.com/mamang/control_services/internal/subscription_service/adapters/scheduler"
	subscriptionApp "github.com/mamang/control_services/internal/subscription_service/app"
	subscriptionDomain "github.com/mamang/control_services/internal/subscription_service/domain"
	subscriptionMemory "github.com/mamang/control_services/internal/subscription_service/repository/memory"
	subscriptionPostgres "github.com/mamang/control_services/internal/subscription_service/repository/postgres"
	subscriptionHTTP "github.com/mamang/control_services/internal/subscription_service/transport/http"
)

const (
	eventKeyPrefix = "control:event:"
	requestTimeout = 60 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// Stores groups the repositories of one store driver.
type Stores struct {
	Contacts      contactDomain.ContactRepository
	Outbound      messageDomain.OutboundRepository
	Inbound       messageDomain.InboundRepository
	Subscriptions subscriptionDomain.SubscriptionRepository
}

// Components is the wired application.
type Components struct {
	Config *config.Config

	Stores     Stores
	Queue      *tasks.Queue
	Gateway    provider.Gateway
	Directory  *contactApp.Directory
	Outbound   *messageApp.OutboundService
	Events     *messageApp.EventProcessor
	Dispatcher *messageApp.Dispatcher
	Lifecycle  *subscriptionApp.Lifecycle
	Registrar  *subscriptionApp.Registrar

	MessageJobs      *messageApp.JobConsumer
	SubscriptionJobs *subscriptionApp.JobConsumer

	logger  *slog.Logger
	closers []func()
}

// Build wires every component on top of broker. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, broker messagebroker.Broker, logger *slog.Logger) (*Components, error) {
	c := &Components{Config: cfg, logger: logger}

	stores, err := c.openStores(ctx)
	if err != nil {
		return nil, err
	}
	c.Stores = stores
	c.Queue = tasks.NewQueue(broker)

	breaker := transport.BreakerSettings{
		ConsecutiveFailures: cfg.BreakerConsecutiveFailures,
		OpenTimeout:         cfg.BreakerOpenTimeout,
		Interval:            cfg.BreakerInterval,
	}
	c.Gateway = newGateway(cfg, breaker, logger)

	contentClient := contentstore.NewClient(
		transport.NewClient("contentstore", cfg.ContentStoreAPIURL, cfg.HTTPClientTimeout, breaker, logger,
			transport.WithTokenAuth(cfg.ContentStoreAuthToken)),
		logger)
	schedulerClient := scheduler.NewClient(
		transport.NewClient("scheduler", cfg.SchedulerURL, cfg.HTTPClientTimeout, breaker, logger,
			transport.WithBasicAuth(cfg.SchedulerUsername, cfg.SchedulerPassword)),
		logger)

	c.Directory = contactApp.NewDirectory(stores.Contacts, logger)
	c.Outbound = messageApp.NewOutboundService(stores.Outbound, stores.Inbound, c.Queue, logger)
	c.Events = messageApp.NewEventProcessor(stores.Outbound, c.Queue, c.openIdempotency(ctx), cfg.MaxRetries, logger)
	c.Dispatcher = messageApp.NewDispatcher(
		stores.Outbound,
		c.Directory,
		subscriptionApp.NewContentResolver(stores.Subscriptions, contentClient, logger),
		c.Gateway,
		c.Queue,
		cfg.MaxRetries,
		logger,
	)
	c.Lifecycle = subscriptionApp.NewLifecycle(stores.Subscriptions, c.Queue, c.Outbound, logger)
	c.Registrar = subscriptionApp.NewRegistrar(stores.Subscriptions, contentClient, schedulerClient, cfg.ControlURL, logger)

	policy := retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay, MaxDelay: retryMaxDelay}
	c.MessageJobs = messageApp.NewJobConsumer(broker, c.Dispatcher, c.Gateway, policy, cfg.JobTimeout, logger)
	c.SubscriptionJobs = subscriptionApp.NewJobConsumer(broker, c.Registrar, policy, cfg.JobTimeout, logger)

	return c, nil
}

// Router returns the control API: every endpoint under /api/v1 plus /health.
func (c *Components) Router() http.Handler {
	r := httpserver.NewRouter(requestTimeout)
	validate := validator.New()
	r.Route("/api/v1", func(api chi.Router) {
		contactHTTP.NewContactHandler(c.Directory, c.logger, validate).Routes(api)
		messageHTTP.NewMessageHandler(c.Outbound, c.Events, c.logger).Routes(api)
		subscriptionHTTP.NewSubscriptionHandler(c.Lifecycle, c.logger).Routes(api)
	})
	return r
}

// Close releases the database pool and redis client, newest first.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func (c *Components) openStores(ctx context.Context) (Stores, error) {
	if c.Config.StoreDriver == config.StoreDriverMemory {
		c.logger.Warn("Using in-memory store, data is lost on exit")
		return Stores{
			Contacts:      contactMemory.NewContactRepository(),
			Outbound:      messageMemory.NewOutboundRepository(),
			Inbound:       messageMemory.NewInboundRepository(),
			Subscriptions: subscriptionMemory.NewSubscriptionRepository(),
		}, nil
	}

	pool, err := database.NewDBPool(ctx, c.Config.PostgresDSN)
	if err != nil {
		return Stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	c.logger.Info("Successfully connected to database")

	return Stores{
		Contacts:      contactPostgres.NewPgContactRepository(pool, c.logger),
		Outbound:      messagePostgres.NewPgOutboundRepository(pool, c.logger),
		Inbound:       messagePostgres.NewPgInboundRepository(pool, c.logger),
		Subscriptions: subscriptionPostgres.NewPgSubscriptionRepository(pool, c.logger),
	}, nil
}

// openIdempotency returns the redis-backed event de-duplication store, or a
// NopStore when REDIS_ADDR is empty. An unreachable redis is only logged; the
// event processor carries on without de-duplication while it is down.
func (c *Components) openIdempotency(ctx context.Context) idempotency.Store {
	if c.Config.RedisAddr == "" {
		c.logger.Info("REDIS_ADDR not set, delivery events are not de-duplicated")
		return idempotency.NopStore{}
	}
	client := redis.NewClient(&redis.Options{Addr: c.Config.RedisAddr})
	c.closers = append(c.closers, func() {
		if err := client.Close(); err != nil {
			c.logger.Warn("Failed to close redis client", "error", err)
		}
	})
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis not reachable", "addr", c.Config.RedisAddr, "error", err)
	}
	return idempotency.NewRedisStore(client, eventKeyPrefix, c.Config.EventDedupTTL)
}

// newGateway returns the Vumi gateway, or a LoggingGateway when no
// conversation is configured.
func newGateway(cfg *config.Config, breaker transport.BreakerSettings, logger *slog.Logger) provider.Gateway {
	if cfg.VumiAccountKey == "" || cfg.VumiConversationKey == "" {
		logger.Warn("Vumi credentials not set, messages are logged instead of sent")
		return provider.NewLoggingGateway(logger)
	}
	client := transport.NewClient("vumi",
		provider.VumiBaseURL(cfg.VumiAPIURL, cfg.VumiConversationKey),
		cfg.HTTPClientTimeout, breaker, logger,
		transport.WithBasicAuth(cfg.VumiAccountKey, cfg.VumiAccountToken))
	return provider.NewVumiGateway(client, logger)
}

// ConsumerSubjects lists the subjects MessageJobs and SubscriptionJobs serve.
// An in-process API must not accept requests before all of them have a
// subscriber.
func ConsumerSubjects() []string {
	return []string{
		tasks.SubjectOutboundDispatch,
		tasks.SubjectGatewayMetric,
		tasks.SubjectScheduleCreate,
		tasks.SubjectScheduleAck,
	}
}
