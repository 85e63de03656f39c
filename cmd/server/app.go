package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	jwttoken "orgapi/internal/jwt_token"
	"orgapi/internal/membership/handler"
	membershipmetrics "orgapi/internal/membership/metrics"
	"orgapi/internal/membership/notify"
	"orgapi/internal/membership/retention"
	"orgapi/internal/membership/service"
	"orgapi/internal/membership/store"
	"orgapi/internal/platform/config"
	platformkafka "orgapi/internal/platform/kafka"
	httpmetrics "orgapi/internal/platform/metrics"
	platformpostgres "orgapi/internal/platform/postgres"
	platformredis "orgapi/internal/platform/redis"
	"orgapi/pkg/platform/circuit"
	"orgapi/pkg/platform/httputil"
	"orgapi/pkg/platform/middleware/auth"
	"orgapi/pkg/platform/middleware/metadata"
	"orgapi/pkg/platform/middleware/request"
	"orgapi/pkg/platform/middleware/requesttime"
)

type app struct {
	Router     http.Handler
	Dispatcher *notify.Dispatcher
	Sweeper    *retention.Sweeper
	StoreKind  string

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

type healthCheck func(ctx context.Context) error

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	membershipMetrics := membershipmetrics.New(reg)
	checks := map[string]healthCheck{}

	var (
		applicants service.Store
		sweepStore retention.Store
		storeTx    service.StoreTx
	)
	if cfg.Database.URL != "" {
		db, err := platformpostgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := store.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate membership schema: %w", err)
		}
		pg := store.NewPostgres(db)
		applicants, sweepStore, storeTx = pg, pg, store.NewPostgresTx(db)
		checks["postgres"] = dbCheck(db)
		a.StoreKind = "postgres"
	} else {
		if cfg.IsProduction() {
			return nil, errors.New("database URL is required in production")
		}
		mem := store.NewInMemory()
		applicants, sweepStore = mem, mem
		a.StoreKind = "memory"
		log.Warn("no database configured, membership records are kept in memory")
	}

	notifier, kafkaClient, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if kafkaClient != nil {
		a.closers = append(a.closers, func() error { kafkaClient.Close(); return nil })
		checks["kafka"] = func(ctx context.Context) error { return platformkafka.Health(ctx, kafkaClient) }
	}

	dispatcher, err := notify.NewDispatcher(notifier,
		notify.WithLogger(log),
		notify.WithMetrics(membershipMetrics),
		notify.WithQueue(cfg.Notify.QueueSize),
		notify.WithSendTimeout(cfg.Notify.SendTimeout),
	)
	if err != nil {
		return nil, err
	}
	a.Dispatcher = dispatcher

	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(membershipMetrics),
		service.WithEventSink(dispatcher),
	}
	if storeTx != nil {
		serviceOpts = append(serviceOpts, service.WithStoreTx(storeTx))
	}
	svc, err := service.New(applicants, service.Config{
		MembershipFee:        cfg.Membership.Fee,
		DefaultRetentionDays: cfg.Membership.DefaultRetentionDays,
	}, serviceOpts...)
	if err != nil {
		return nil, err
	}

	sweeperOpts := []retention.Option{
		retention.WithLogger(log),
		retention.WithMetrics(membershipMetrics),
	}
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
		checks["redis"] = redisClient.Health
		lockKey := cfg.Retention.LockKey
		if lockKey == "" {
			lockKey = retention.DefaultLockKey
		}
		locker, err := retention.NewRedisLocker(redisClient.Client, lockKey, cfg.Retention.LockTTL)
		if err != nil {
			return nil, err
		}
		sweeperOpts = append(sweeperOpts, retention.WithLocker(locker))
	}
	sweeper, err := retention.New(sweepStore, sweeperOpts...)
	if err != nil {
		return nil, err
	}
	a.Sweeper = sweeper

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	requireAdmin := auth.RequireAdmin(jwttoken.NewMiddlewareValidator(jwtService), log)

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(httpmetrics.New(reg).Middleware)
	r.Use(request.Logger(log))

	r.Get("/health", healthHandler(checks))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handler.New(svc, sweeper, log).Register(r, requireAdmin)

	a.Router = r
	ok = true
	return a, nil
}

// buildNotifier composes the configured delivery channels. Email goes
// through a circuit breaker that falls back to the log notifier while the
// provider is failing. Kafka, when configured, receives every event too.
func buildNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger) (notify.Notifier, *kgo.Client, error) {
	logNotifier := notify.NewLogNotifier(log)
	var channels notify.Multi

	if cfg.Email.ResendAPIKey != "" {
		email, err := notify.NewResendNotifier(cfg.Email.ResendAPIKey, notify.EmailConfig{
			From:         cfg.Email.From,
			Organization: cfg.Email.Organization,
			ReplyTo:      cfg.Email.ReplyTo,
			Bcc:          cfg.Email.Bcc,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("configure email notifier: %w", err)
		}
		breaker := circuit.New("resend",
			circuit.WithFailureThreshold(cfg.Notify.BreakerFailures),
			circuit.WithSuccessThreshold(cfg.Notify.BreakerSuccesses),
		)
		channels = append(channels, notify.NewGuarded(email, logNotifier, breaker, log))
	} else {
		channels = append(channels, logNotifier)
	}

	client, err := platformkafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		if err := platformkafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
			log.Warn("could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		kafkaNotifier, err := notify.NewKafkaNotifier(client, cfg.Kafka.Topic)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		channels = append(channels, kafkaNotifier)
	}

	if len(channels) == 1 {
		return channels[0], client, nil
	}
	return channels, client, nil
}

func dbCheck(db *sql.DB) healthCheck {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
