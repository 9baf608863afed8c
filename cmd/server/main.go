package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/conference-hub/internal/api"
	"github.com/ignite/conference-hub/internal/audit"
	"github.com/ignite/conference-hub/internal/cache"
	"github.com/ignite/conference-hub/internal/config"
	"github.com/ignite/conference-hub/internal/metrics"
	"github.com/ignite/conference-hub/internal/notify"
	"github.com/ignite/conference-hub/internal/pkg/distlock"
	"github.com/ignite/conference-hub/internal/pkg/logger"
	"github.com/ignite/conference-hub/internal/repository/postgres"
	"github.com/ignite/conference-hub/internal/service/importer"
	"github.com/ignite/conference-hub/internal/service/regform"
	"github.com/ignite/conference-hub/internal/service/reminder"
	"github.com/ignite/conference-hub/internal/storage"
)

func main() {
	path := "config/config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.RedactPII)

	if err := run(cfg); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			// Locks fall back to Postgres advisory locks and forms are read uncached.
			logger.Warn("redis unavailable, continuing without it", "error", err)
			client.Close()
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var sender notify.Sender = notify.LogSender{}
	if cfg.SES.FromAddress != "" {
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.SES.FromAddress, cfg.SES.FromName, cfg.SES.ConfigurationSet)
	}
	renderer := notify.NewRenderer(cfg.Notify.Templates)
	dispatcher := notify.NewDispatcher(cfg.Notify.Dispatcher, renderer, sender, m)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	forms := cache.NewFormCache(rdb, postgres.NewFormRepo(db), cfg.Redis.FormCacheTTL())
	registrations := postgres.NewRegistrationRepo(db)
	users := postgres.NewUserRepo(db)

	regOpts := []regform.Option{regform.WithNotifier(dispatcher), regform.WithMetrics(m)}
	var auditSink *audit.Sink
	if cfg.Audit.DynamoDBTable != "" {
		auditSink = audit.NewSink(dynamodb.NewFromConfig(awsCfg), cfg.Audit.DynamoDBTable,
			time.Duration(cfg.Audit.RetentionDays)*24*time.Hour)
		regOpts = append(regOpts, regform.WithAudit(auditSink))
	}
	regSvc := regform.NewService(cfg.Registration, forms, registrations, users, regOpts...)

	locks := distlock.NewProvider(rdb, db, "import:", cfg.Import.LockTTL())
	importSvc := importer.NewService(forms, postgres.NewInvitationRepo(db), regSvc, locks, dispatcher, m)
	reminderSvc := reminder.NewService(postgres.NewReminderRepo(db), renderer, dispatcher)

	deps := api.Deps{
		Registrations: regSvc,
		Imports:       importSvc,
		Reminders:     reminderSvc,
		Forms:         forms,
		Gatherer:      reg,
		Health:        api.NewHealthChecker(healthProbes(db, rdb)...),
	}
	if cfg.Import.S3Bucket != "" {
		deps.Objects = storage.NewS3Source(s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWS.Endpoint != ""
		}), cfg.Import.S3Bucket, "")
	}
	if auditSink != nil {
		deps.Audit = auditSink
	}

	server := api.NewServer(cfg.Server, deps)
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func healthProbes(db *sql.DB, rdb *redis.Client) []api.Probe {
	probes := []api.Probe{{
		Name: "database", Critical: true, Timeout: 3 * time.Second, Slow: time.Second,
		Ping: db.PingContext,
	}}
	redisProbe := api.Probe{Name: "redis", Timeout: 2 * time.Second, Slow: 500 * time.Millisecond}
	if rdb != nil {
		redisProbe.Ping = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return append(probes, redisProbe)
}
