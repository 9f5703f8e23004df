package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"staybook/internal/app/commands"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/handlers/base"
	bookingapp "staybook/internal/app/handlers/booking"
	paymentsapp "staybook/internal/app/handlers/payments"
	supportapp "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/schedule"
	"staybook/internal/app/uow"
	amqpbroker "staybook/internal/infra/broker/amqp"
	kafkabroker "staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	mongostore "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/inbox"
	redislock "staybook/internal/infra/lock/redis"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/payments/omise"
	"staybook/internal/infra/payments/sandbox"
	asynqsched "staybook/internal/infra/schedule/asynq"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	shutdownTracer, err := obs.InitTracer(ctx, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	fixturesPath := cfg.ListingsFixtures
	if fixturesPath == "" {
		fixturesPath = memory.DefaultFixturesPath()
	}
	if _, err := memory.LoadListingFixtures(ctx, app.factory, fixturesPath, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", fixturesPath)
	}

	var wg sync.WaitGroup
	for name, run := range app.background {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "worker", name, "error", err)
			}
		}(name, run)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks:  app.checks,
		Timeout: 2 * time.Second,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.Store, "payment_events", cfg.PaymentEvents)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}

	wg.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, closer := range app.closers {
		if err := closer(closeCtx); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}
	if err := shutdownTracer(closeCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped")
}

// outboxQueue is an outbox the relay worker can also drain.
type outboxQueue interface {
	appoutbox.Outbox
	infraoutbox.Queue
}

type application struct {
	handlers   ginserver.Handlers
	factory    uow.UoWFactory
	checks     map[string]obs.Check
	background map[string]func(context.Context) error
	closers    []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		checks:     map[string]obs.Check{},
		background: map[string]func(context.Context) error{},
	}

	var (
		idem  middleware.IdempotencyStore
		box   outboxQueue
		inbx  paymentsapp.Inbox
		fail  error
		store *memory.Store
	)
	switch cfg.Store {
	case config.StoreMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.checks["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		app.factory = mongostore.NewFactory(client.DB)
		if idem, fail = mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); fail != nil {
			return nil, fail
		}
		if box, fail = infraoutbox.NewStore(ctx, client.DB); fail != nil {
			return nil, fail
		}
		if inbx, fail = inbox.NewStore(ctx, client.DB, "payments"); fail != nil {
			return nil, fail
		}
	default:
		store = memory.NewStore()
		app.factory = store
		idem = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		box = store.Outbox()
		inbx = memory.NewInbox()
	}

	var locker policies.Locker = memory.NewLocker()
	var scheduler schedule.Scheduler
	var registerTask func(name string, h schedule.TaskHandler)
	if cfg.RedisEnabled() {
		client := redislock.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		app.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		locker = redislock.NewLocker(client, redislock.Options{}, logger)

		opt := asynqsched.RedisOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		sched := asynqsched.NewScheduler(opt)
		app.closers = append(app.closers, func(context.Context) error { return sched.Close() })
		worker := asynqsched.NewWorker(opt, 0, logger)
		app.background["tasks"] = worker.Run
		scheduler, registerTask = sched, worker.Handle
	} else {
		sched := memory.NewScheduler(ctx, logger)
		app.closers = append(app.closers, func(context.Context) error { sched.Stop(); return nil })
		scheduler, registerTask = sched, sched.Handle
	}

	provider, verifier, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	var receipts policies.ReceiptStore
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		app.checks["s3"] = client.Ping
		receipts = s3.ReceiptArchive{Uploader: client}
	}

	deps := base.Deps{
		UoWFactory: app.factory,
		Outbox:     box,
		Encoder:    appoutbox.JSONEventEncoder{},
		Logger:     logger,
	}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(commandBus, queryBus, deps, bookingapp.Options{
		Scheduler: scheduler,
		HoldTTL:   cfg.PaymentHoldTTL,
		NewID:     uuid.NewString,
	})
	paymentsapp.Register(commandBus, queryBus, deps, provider)
	availabilityapp.Register(queryBus, deps)
	supportapp.Register(queryBus, deps)

	validator := middleware.NewStructValidator()
	cmds := middleware.ChainCommands(commandBus, middleware.Standard(idem, locker, app.factory, box, validator, logger)...)
	qs := middleware.ChainQueries(queryBus, middleware.QueryTracing(), middleware.QueryValidation(validator))

	registerTask(schedule.TaskExpireBooking, bookingapp.ExpiryTask(cmds))

	reconciler := &paymentsapp.Reconciler{
		Commands: cmds,
		Queries:  qs,
		Inbox:    inbx,
		Receipts: receipts,
		Logger:   logger,
	}
	if err := wirePaymentEvents(app, cfg, reconciler, logger); err != nil {
		return nil, err
	}

	producer, err := buildProducer(app, cfg, logger)
	if err != nil {
		return nil, err
	}
	relay := &infraoutbox.Worker{
		Queue:       box,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}
	app.background["outbox"] = relay.Run

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: cmds,
			Queries:  qs,
			Cancellations: &bookingapp.CancellationFlow{
				Commands: cmds, Queries: qs, Provider: provider, Logger: logger,
			},
		},
		Availability: ginserver.AvailabilityHandler{Queries: qs},
		Payment: ginserver.PaymentHandler{
			Payments: &paymentsapp.PaymentFlow{
				Commands: cmds, Queries: qs, Provider: provider, Logger: logger,
			},
			Queries:    qs,
			Verifier:   verifier,
			Reconciler: reconciler,
			Logger:     logger,
		},
		Support: ginserver.SupportHandler{Queries: qs},
	}
	return app, nil
}

// buildProvider returns Omise when keys are configured and the in-process
// sandbox otherwise.
func buildProvider(cfg config.Config, logger *slog.Logger) (policies.PaymentProvider, ginserver.EventVerifier, error) {
	if !cfg.PaymentsEnabled() {
		logger.Warn("payment provider keys missing, using sandbox provider")
		p := sandbox.New()
		return p, p, nil
	}
	p, err := omise.New(omise.Config{
		PublicKey:        cfg.OmisePublicKey,
		SecretKey:        cfg.OmiseSecretKey,
		BreakerThreshold: cfg.BreakerThreshold,
		Timeout:          cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("omise provider: %w", err)
	}
	return p, p, nil
}

func buildProducer(app *application, cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, error) {
	switch {
	case cfg.KafkaEnabled():
		p, err := kafkabroker.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		return p, nil
	case cfg.RabbitURL != "":
		p, err := amqpbroker.NewPublisher(cfg.RabbitURL, "staybook.events")
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		return p, nil
	default:
		return infraoutbox.LogProducer{Logger: logger}, nil
	}
}

func wirePaymentEvents(app *application, cfg config.Config, rec *paymentsapp.Reconciler, logger *slog.Logger) error {
	switch cfg.PaymentEvents {
	case config.EventsKafka:
		handler := kafkabroker.PaymentEventHandler{Reconciler: rec, Logger: logger, Backoff: cfg.RetryBackoff}
		consumer, err := kafkabroker.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, sarama.NewConfig(), handler, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		app.background["payment-events"] = func(ctx context.Context) error {
			return consumer.Run(ctx, []string{cfg.KafkaPaymentTopic})
		}
	case config.EventsAMQP:
		consumer, err := amqpbroker.NewConsumer(cfg.RabbitURL, cfg.PaymentExchange, cfg.PaymentQueue, amqpbroker.PaymentRoutingKeys, logger)
		if err != nil {
			return fmt.Errorf("amqp consumer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		app.background["payment-events"] = func(ctx context.Context) error {
			return consumer.RunPayments(ctx, rec)
		}
	}
	return nil
}
