package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	accountHandler "etatcivil/internal/account/handler"
	accountService "etatcivil/internal/account/service"
	accountStore "etatcivil/internal/account/store"
	"etatcivil/internal/attachment"
	"etatcivil/internal/attachment/filehost"
	attachmentHandler "etatcivil/internal/attachment/handler"
	"etatcivil/internal/audit"
	certHandler "etatcivil/internal/certificate/handler"
	certService "etatcivil/internal/certificate/service"
	certStore "etatcivil/internal/certificate/store"
	declHandler "etatcivil/internal/declaration/handler"
	declService "etatcivil/internal/declaration/service"
	declStore "etatcivil/internal/declaration/store"
	"etatcivil/internal/events"
	httpapi "etatcivil/internal/http"
	notifHandler "etatcivil/internal/notification/handler"
	notifService "etatcivil/internal/notification/service"
	notifStore "etatcivil/internal/notification/store"
	"etatcivil/internal/payment/gateway"
	paymentHandler "etatcivil/internal/payment/handler"
	paymentService "etatcivil/internal/payment/service"
	paymentStore "etatcivil/internal/payment/store"
	"etatcivil/internal/platform/config"
	"etatcivil/internal/platform/database"
	"etatcivil/internal/platform/httpserver"
	"etatcivil/internal/platform/logger"
	"etatcivil/internal/platform/metrics"
	redisclient "etatcivil/internal/platform/redis"
	ratelimitMW "etatcivil/internal/ratelimit/middleware"
	ratelimitModels "etatcivil/internal/ratelimit/models"
	"etatcivil/internal/ratelimit/store/bucket"
	"etatcivil/internal/session"
	"etatcivil/internal/stats/cache"
	statsHandler "etatcivil/internal/stats/handler"
	statsService "etatcivil/internal/stats/service"
	"etatcivil/internal/workflow"
)

const (
	statsCachePrefix = "etatcivil:stats:"
	auditInboxSize   = 256
)

// Each store type is viewed both by its owning service and by the stats
// read model.
type (
	citizenStore interface {
		accountService.CitizenStore
		statsService.CitizenCounter
	}
	userStore interface {
		accountService.UserStore
		statsService.StaffCounter
	}
	declarationStore interface {
		declService.Store
		statsService.StatusCounter
	}
	certificateStore interface {
		certService.Store
		statsService.StatusCounter
	}
	paymentStores interface {
		paymentService.Store
		declService.PaymentStore
		statsService.Payments
	}
)

type stores struct {
	citizens      citizenStore
	users         userStore
	declarations  declarationStore
	certificates  certificateStore
	payments      paymentStores
	notifications notifService.Store
	audit         audit.Store
	tx            database.TxRunner
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()
	health := map[string]httpapi.HealthCheck{}

	st, db, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		health["database"] = db.PingContext
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var cacheClient goredis.UniversalClient
	var buckets ratelimitMW.BucketStore = bucket.NewInMemoryBucketStore()
	if rc != nil {
		defer rc.Close()
		cacheClient = rc.Client
		buckets = bucket.NewRedisBucketStore(rc.Client)
		health["redis"] = rc.Health
	} else {
		log.Info("REDIS_URL not set, statistics are computed on every request")
	}

	notifications := notifService.New(st.notifications, notifService.WithLogger(log))
	statsCache := cache.New(cacheClient, statsCachePrefix, cfg.Stats.CacheTTL, cfg.Stats.CacheStale,
		cache.WithLogger(log), cache.WithMetrics(m))

	history := audit.NewPublisher(st.audit)
	auditInbox := make(chan audit.Entry, auditInboxSize)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		_ = audit.NewWorker(history, auditInbox, log).Run(workerCtx)
	}()

	publisher := events.NewMulti([]events.Subscriber{
		notifService.NewSubscriber(notifications),
		cache.NewInvalidator(statsCache),
		audit.NewSubscriber(auditInbox),
	}, events.WithLogger(log), events.WithMetrics(m))
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		publisher.Subscribe(sink)
		health["kafka"] = sink.Ping
	}

	machine := workflow.NewMachine(cfg.StrictTransitions)
	jwt := session.NewJWTService(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.TTL)

	accounts := accountService.New(st.citizens, st.users, jwt,
		accountService.WithLogger(log), accountService.WithMetrics(m))
	declarations := declService.New(st.declarations, st.payments, st.tx,
		declService.Fee{Amount: cfg.Payment.DeclarationFee, Currency: cfg.Payment.Currency},
		declService.WithLogger(log), declService.WithMetrics(m),
		declService.WithPublisher(publisher), declService.WithMachine(machine))
	certificates := certService.New(st.certificates, st.payments,
		certService.WithLogger(log), certService.WithMetrics(m),
		certService.WithPublisher(publisher), certService.WithMachine(machine))
	payments := paymentService.New(st.payments,
		gateway.New(gateway.Config{
			BaseURL:    cfg.Payment.BaseURL,
			SecretKey:  cfg.Payment.SecretKey,
			SuccessURL: cfg.Payment.SuccessURL,
			CancelURL:  cfg.Payment.CancelURL,
		}),
		paymentService.Config{Currency: cfg.Payment.Currency, DefaultAmount: cfg.Payment.DeclarationFee},
		paymentService.WithLogger(log), paymentService.WithMetrics(m),
		paymentService.WithPublisher(publisher), paymentService.WithRequests(declarations, certificates))
	uploads := attachment.New(
		filehost.New(cfg.FileHost.BaseURL, cfg.FileHost.CloudName, cfg.FileHost.APIKey, cfg.FileHost.UploadPreset),
		attachment.WithLogger(log), attachment.WithMetrics(m))
	stats := statsService.New(statsService.Sources{
		Citizens:          st.citizens,
		Staff:             st.users,
		DeclarationCounts: st.declarations,
		CertificateCounts: st.certificates,
		Payments:          st.payments,
		Declarations:      st.declarations,
		Certificates:      st.certificates,
	}, statsCache, statsService.WithLogger(log))

	limiter := ratelimitMW.New(buckets, map[ratelimitModels.EndpointClass]ratelimitModels.Rule{
		ratelimitModels.ClassAuth: {Limit: cfg.RateLimit.AuthLimit, Window: cfg.RateLimit.AuthWindow},
	}, log, ratelimitMW.WithDisabled(!cfg.RateLimit.Enabled), ratelimitMW.WithMetrics(m))

	router := httpapi.NewRouter(httpapi.Config{
		Logger:   log,
		Metrics:  m,
		Tokens:   session.NewJWTServiceAdapter(jwt),
		Accounts: accounts,
		Health:   health,
		Handlers: []httpapi.Registrar{
			accountHandler.New(accounts, log, accountHandler.WithThrottle(limiter.RateLimit(ratelimitModels.ClassAuth))),
			declHandler.New(declarations, log),
			certHandler.New(certificates, log),
			attachmentHandler.New(uploads, declarations, certificates, attachmentHandler.Limits{
				Citizen: cfg.Uploads.CitizenMaxBytes,
				Agent:   cfg.Uploads.AgentMaxBytes,
			}, log),
			paymentHandler.New(payments, cfg.Payment.WebhookSecret, log),
			notifHandler.New(notifications, log),
			statsHandler.New(stats, log),
			audit.NewHandler(history, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting etatcivil", "addr", cfg.Addr, "strict_transitions", cfg.StrictTransitions)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores returns Postgres-backed stores when DATABASE_URL is set and
// in-memory stores otherwise.
func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*stores, *sqlx.DB, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			citizens:      accountStore.NewInMemoryCitizens(),
			users:         accountStore.NewInMemoryUsers(),
			declarations:  declStore.NewInMemoryDeclarations(),
			certificates:  certStore.NewInMemoryCertificates(),
			payments:      paymentStore.NewInMemoryPayments(),
			notifications: notifStore.NewInMemoryNotifications(),
			audit:         audit.NewInMemoryStore(),
			tx:            database.NewMemoryTx(),
		}, nil, nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.MigrationsEnabled {
		if err := database.Migrate(db, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return &stores{
		citizens:      accountStore.NewPostgresCitizens(db),
		users:         accountStore.NewPostgresUsers(db),
		declarations:  declStore.NewPostgresDeclarations(db),
		certificates:  certStore.NewPostgresCertificates(db),
		payments:      paymentStore.NewPostgresPayments(db),
		notifications: notifStore.NewPostgresNotifications(db),
		tx:            database.NewPostgresTx(db),
	}, db, nil
}
