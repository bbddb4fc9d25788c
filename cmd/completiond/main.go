package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-completion/internal/api/http"
	authmw "github.com/mind-engage/mindengage-completion/internal/auth/middleware"
	"github.com/mind-engage/mindengage-completion/internal/config"
	"github.com/mind-engage/mindengage-completion/internal/course"
	"github.com/mind-engage/mindengage-completion/internal/db"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
	"github.com/mind-engage/mindengage-completion/internal/events"
	"github.com/mind-engage/mindengage-completion/internal/logging"
	"github.com/mind-engage/mindengage-completion/internal/metrics"
	"github.com/mind-engage/mindengage-completion/internal/passback"
	"github.com/mind-engage/mindengage-completion/internal/profile"
	syncx "github.com/mind-engage/mindengage-completion/internal/sync"
)

func main() {
	configDir := flag.String("config", "", "directory holding config.yaml")
	flag.Parse()

	// .env is a dev convenience; real deployments set COMPLETION_* directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Dev: cfg.Log.Dev})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("completiond stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DB.Driver), cfg.DB.DSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	courses := course.NewSQLStore(dbh)
	signatures := profile.NewSQLStore(dbh)
	audit := syncx.NewEventRepo(dbh, cfg.SiteID, nil)
	m := metrics.New(nil)

	opts := []enrollment.Option{
		enrollment.WithLogger(log),
		enrollment.WithMetrics(m),
		enrollment.WithAuditLog(audit),
		enrollment.WithRetry(cfg.Retry.Attempts, cfg.Retry.Backoff),
	}

	// --- Locking: redis when several replicas share the store ---
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, enrollment.WithLocker(enrollment.NewRedisLocker(rdb, cfg.Redis.LockTTL)))
		log.Info("using redis locks", zap.String("addr", cfg.Redis.Addr))
	}

	// --- Gradebook passback ---
	if cfg.Gradebook.BaseURL != "" {
		opts = append(opts, enrollment.WithNotifiers(passback.New(passback.Config{
			BaseURL:      cfg.Gradebook.BaseURL,
			TokenURL:     cfg.Gradebook.TokenURL,
			ClientID:     cfg.Gradebook.ClientID,
			ClientSecret: cfg.Gradebook.ClientSecret,
			Scopes:       cfg.Gradebook.Scopes,
			Timeout:      cfg.Gradebook.Timeout,
		})))
	}

	// --- AMQP: publish changes, consume activity ---
	var consumerCh chan error
	var startConsumer func(*enrollment.Service)
	if cfg.AMQP.URL != "" {
		conn, ch, err := events.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("amqp dial: %w", err)
		}
		defer conn.Close()
		opts = append(opts, enrollment.WithNotifiers(events.NewPublisher(ch, cfg.AMQP.Exchange)))

		// a separate channel keeps consumer flow control off the publish path
		cch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("amqp channel: %w", err)
		}
		consumerCh = make(chan error, 1)
		startConsumer = func(svc *enrollment.Service) {
			c := events.NewConsumer(cch, cfg.AMQP.Exchange, cfg.AMQP.Queue, cfg.AMQP.Prefetch, events.NewHandler(svc, log), log)
			go func() { consumerCh <- c.Run(ctx) }()
		}
	}

	svc := enrollment.NewService(enrollment.NewSQLStore(dbh), courses, signatures, opts...)
	if startConsumer != nil {
		startConsumer(svc)
	}

	// --- HTTP ---
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(api.Deps{
			Courses:     courses,
			Enrollments: svc,
			Verifier:    authmw.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
			Audit:       audit,
			Signatures:  signatures,
			Metrics:     m,
			Log:         log,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr), zap.String("db", cfg.DB.Driver), zap.String("site", cfg.SiteID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		return err
	case err := <-consumerCh:
		// losing the consumer silently would stall async reporting
		stop()
		if err == nil {
			err = errors.New("amqp consumer stopped")
		}
		log.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
