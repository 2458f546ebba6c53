package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/talenthub/go-identity"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("identity"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := Config{}
	ctx := context.Background()

	if cfg.GetSigningKey() == "" {
		lgr.Error("JWT_SIGNING_KEY is required")
		os.Exit(1)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		lgr.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	repo := identity.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		lgr.Error("invalid repository manager", "error", err)
		os.Exit(1)
	}

	provider := identity.NewAccountProvider(repo.Accounts()).
		WithLogger(lgr.GetLogger("identity:prv"))

	activityLog := lgr.GetLogger("identity:activity")
	activity := identity.ActivitySinkFunc(func(ctx context.Context, event identity.ActivityEvent) error {
		activityLog.Info("activity", "event", string(event.EventType), "account", event.AccountID)
		return nil
	})

	auther := identity.NewSessionIssuer(provider, cfg).
		WithLogger(lgr.GetLogger("identity:session")).
		WithBlacklist(identity.NewInMemoryRevokedTokenCache()).
		WithActivitySink(activity)

	tokens := identity.NewSignedTokenService(
		[]byte(cfg.GetSigningKey()),
		identity.WithTokenLogger(lgr.GetLogger("identity:tokens")),
	)

	sink := identity.NewLogNotificationSink(lgr.GetLogger("identity:mail"))

	var federation *identity.FederationAdapter
	if clientID := cfg.GetGoogleClientID(); clientID != "" {
		verifier, err := identity.NewGoogleVerifier(ctx, clientID)
		if err != nil {
			lgr.Error("failed to initialize google verifier", "error", err)
			os.Exit(1)
		}
		federation = identity.NewFederationAdapter(verifier, repo).
			WithLogger(lgr.GetLogger("identity:google")).
			WithActivitySink(activity)
	} else {
		lgr.Info("GOOGLE_CLIENT_ID not set, federated login disabled")
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           cfg.GetAppName(),
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(lgr.GetLogger("router"))

	mw := identity.NewAuthMiddleware(auther, identity.NewAccessPolicy(), cfg)

	authCtrl := identity.NewAuthController(
		identity.WithControllerLogger(lgr.GetLogger("identity:auth")),
		identity.WithControllerRepo(repo),
		identity.WithControllerAuthenticator(auther),
		identity.WithControllerTokens(tokens),
		identity.WithControllerFederation(federation),
		identity.WithControllerNotifications(sink),
		identity.WithControllerActivity(activity),
		identity.WithControllerBranding(cfg.GetAppName(), cfg.GetBaseURL()),
	)
	authCtrl.RegisterRoutes(srv.Router().Group("/auth"), mw)

	hrCtrl := identity.NewHRController(
		identity.WithHRLogger(lgr.GetLogger("identity:hr")),
		identity.WithHRRepo(repo),
		identity.WithHRTokens(tokens),
		identity.WithHRPolicy(identity.NewAccessPolicy()),
		identity.WithHRNotifications(sink),
		identity.WithHRBranding(cfg.GetAppName(), cfg.GetBaseURL()),
	)
	hrCtrl.RegisterRoutes(srv.Router().Group("/hr"), mw)

	lgr.Info("starting server", "port", cfg.GetPort())
	srv.Serve(cfg.GetPort())

	WaitExitSignal()
}

func openDatabase(ctx context.Context, cfg Config) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to open database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := identity.CreateSchema(ctx, db); err != nil {
		return nil, err
	}

	return db, nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
