package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/shopsync/libs/db"
	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/libs/httpx"
	"github.com/md-rashed-zaman/shopsync/libs/kafkax"
	otelx "github.com/md-rashed-zaman/shopsync/libs/otel"
	"github.com/md-rashed-zaman/shopsync/libs/producer"
	"github.com/md-rashed-zaman/shopsync/libs/runtime"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/config"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/consumer"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/notify"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/projection"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("store ready", "driver", store.Dialect())

	reg := registry.New()
	if err := projection.RegisterAll(reg, store, logger); err != nil {
		logger.Error("handler registration failed", "err", err)
		os.Exit(1)
	}
	if err := reg.Validate(events.AllTypes()); err != nil {
		logger.Error("handler coverage incomplete", "err", err)
		os.Exit(1)
	}
	reg.Seal()

	topics := cfg.Kafka.Topics
	if len(topics) == 0 {
		topics = reg.Topics()
	}
	reader := consumer.NewReader(consumer.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		ClientID:       cfg.Kafka.ClientID,
		GroupID:        cfg.Kafka.GroupID,
		Topics:         topics,
		StartOffset:    cfg.Kafka.AutoOffsetReset,
		CommitInterval: cfg.Kafka.CommitInterval(),
	})

	var opts []consumer.Option
	var dlq *producer.Producer
	if cfg.Kafka.DLQTopic != "" {
		dlq = producer.New(logger.With("component", "dlq"), producer.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID + "-dlq",
		})
		opts = append(opts, consumer.WithDeadLetter(dlq))
	}

	checks := []runtime.ReadyCheck{
		{Name: "store", Check: store.Ping},
		{Name: "kafka", Check: kafkax.ReadyCheck(cfg.Kafka.Brokers)},
	}
	if cfg.RedisAddr != "" {
		pub, err := notify.Dial(ctx, cfg.RedisAddr, cfg.RedisChannelPrefix)
		if err != nil {
			// Notifications are optional; projections still apply without them.
			logger.Warn("redis unavailable, change notifications disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer pub.Close()
			opts = append(opts, consumer.WithNotifier(pub))
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: pub.Ping})
		}
	}

	c := consumer.New(logger.With("component", "consumer"), reader, reg, consumer.Config{
		PollTimeout:  cfg.Kafka.PollTimeout,
		MaxAttempts:  cfg.Handler.MaxAttempts,
		RetryBackoff: cfg.Handler.RetryBackoff,
		DLQTopic:     cfg.Kafka.DLQTopic,
	}, opts...)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/statz", c.StatsHandler())
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "projector")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	logger.Info("consuming", "topics", topics, "group_id", cfg.Kafka.GroupID)
	if err := c.Run(ctx); err != nil {
		logger.Error("consumer exited", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	if dlq != nil {
		if err := dlq.Close(5 * time.Second); err != nil {
			logger.Error("dlq producer close", "err", err)
		}
	}
	logger.Info("projector stopped", "stats", c.Stats())
}

func openStore(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		return storage.OpenSQLite(cfg.SQLitePath)
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, err
	}
	return storage.NewPostgres(pool), nil
}
