package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	auth "github.com/fenixedu/fenix-auth"
	"github.com/fenixedu/fenix-auth/activitymap"
	"github.com/fenixedu/fenix-auth/adapters/redisdenylist"
	"github.com/fenixedu/fenix-auth/config"
	"github.com/fenixedu/fenix-auth/logging"
	"github.com/fenixedu/fenix-auth/metrics"
	"github.com/fenixedu/fenix-auth/observability"
	"github.com/fenixedu/fenix-auth/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fenix-auth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Closer()
	logger := log.Named("fenix-auth")

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		logger.Warn("sentry disabled: %v", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database.DSN, repository.WithMaxOpenConns(cfg.Database.MaxOpenConns))
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := repository.Migrate(ctx, db)
		if err != nil {
			return err
		}
		logger.Info("applied %d migrations", len(applied))
	}

	denylist, closeDenylist, err := openDenylist(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeDenylist()

	m := metrics.New()
	app, service := buildApp(cfg, db, denylist, m, log)

	if cfg.Admin.Enabled {
		admin, created, err := service.EnsureFirstAdmin(ctx, auth.FirstAdmin{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
			FullName: cfg.Admin.FullName,
		})
		if err != nil {
			return fmt.Errorf("seed first admin: %w", err)
		}
		if created {
			logger.Info("created first admin %s", admin.Email)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on %s", cfg.HTTP.Addr)
		return app.Listen(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(cfg.HTTP.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildApp(cfg config.Config, db *bun.DB, denylist auth.Denylist, m *metrics.Metrics, log *logging.Log) (*fiber.App, *auth.AccountService) {
	sink := auth.MultiActivitySink{
		m,
		activitymap.NewLogSink(log.Base),
	}

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	tokens := auth.NewTokenServiceFromConfig(cfg.Auth, log.Named("tokens"))

	service := auth.NewAccountService(repo, tokens, denylist,
		auth.WithAccountLogger(log.Named("accounts")),
		auth.WithAccountActivitySink(sink),
	)

	gate := auth.NewGate(tokens, denylist, repo.Users(),
		auth.WithGateLogger(log.Named("gate")),
		auth.WithGateActivitySink(sink),
		auth.WithGateAuthScheme(cfg.Auth.GetAuthScheme()),
	)

	auther := auth.NewHTTPAuthenticator(gate, cfg.Auth, log.Named("http"), observability.CaptureErr)

	app := fiber.New(fiber.Config{
		AppName:      "fenix-auth",
		ErrorHandler: auther.ErrorHandler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	})
	allowOrigins := "*"
	if len(cfg.HTTP.CORSOrigins) > 0 {
		allowOrigins = strings.Join(cfg.HTTP.CORSOrigins, ",")
	}

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowCredentials: allowOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(m.Middleware())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "FENIX.EDU API", "version": cfg.Release})
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	controller := auth.NewAuthController(
		auth.WithControllerService(service),
		auth.WithControllerAuthenticator(auther),
		auth.WithControllerLogger(log.Named("controller")),
		auth.WithControllerDebug(cfg.Debug),
	)
	controller.RegisterRoutes(app)

	return app, service
}

func openDenylist(ctx context.Context, cfg config.RedisConfig, logger auth.Logger) (auth.Denylist, func(), error) {
	if cfg.Addr == "" {
		logger.Info("using in-memory token denylist")
		return auth.NewMemoryDenylist(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	denylist := redisdenylist.NewWithPrefix(client, cfg.Prefix)
	if err := denylist.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	logger.Info("using redis token denylist at %s", cfg.Addr)
	return denylist, func() { _ = client.Close() }, nil
}
