package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/auth"
	"github.com/gaseumlabs/uhcdb/internal/config"
	"github.com/gaseumlabs/uhcdb/internal/link"
	"github.com/gaseumlabs/uhcdb/internal/notify"
	"github.com/gaseumlabs/uhcdb/internal/render"
	"github.com/gaseumlabs/uhcdb/internal/router"
	"github.com/gaseumlabs/uhcdb/internal/season"
	"github.com/gaseumlabs/uhcdb/internal/summary"
	"github.com/gaseumlabs/uhcdb/internal/user"
	"github.com/gaseumlabs/uhcdb/pkg/database"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting uhcdb")

	app, err := config.Load()
	if err != nil {
		sugar.Fatalf("load config: %v", err)
	}

	db, err := database.ConnectX(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, err := build(ctx, app, db, sugar)
	if err != nil {
		sugar.Fatalf("setup: %v", err)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + app.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("listening", "addr", srv.Addr, "host", app.Host)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// build creates the tables and wires every service into the route table.
func build(ctx context.Context, app config.App, db *sqlx.DB, logger *zap.SugaredLogger) (http.Handler, error) {
	var notifier summary.Notifier = notify.Nop{}
	if app.Webhook != nil {
		n, err := notify.NewDiscordNotifier(*app.Webhook, logger)
		if err != nil {
			return nil, err
		}
		notifier = n
	} else {
		logger.Warn("no webhook configured; publishes will not be announced")
	}

	seasons := season.NewService(db)
	users := user.NewUserService(db)
	links := link.NewService(db, app.Host, logger)
	summaries := summary.NewService(db, seasons, notifier, utilities.NewIDGeneratorFromEnv(), logger)
	summaries.StrictEntryDiff = app.StrictEntryDiff

	for name, ensure := range map[string]func(context.Context) error{
		"seasons":   seasons.EnsureTable,
		"users":     users.EnsureTable,
		"links":     links.EnsureTable,
		"summaries": summaries.EnsureTable,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure %s: %w", name, err)
		}
	}

	acfg := auth.ConfigFromEnv()
	priv, pub, err := auth.LoadKeys(acfg.KeysDir)
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}
	client, err := auth.LoadClientFile(acfg.KeysDir)
	if err != nil {
		return nil, err
	}
	provider, err := auth.NewProvider(acfg, client)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenService(priv, pub, acfg.SessionTTL)
	mw := auth.NewMiddleware(tokens, users, provider, logger)

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return router.RegisterRoutes(router.Deps{
		Logger:      logger,
		Auth:        mw,
		Login:       auth.NewHandler(mw, app.Deployed, logger),
		Users:       user.NewHandler(users, logger),
		Links:       link.NewHandler(links, renderer, logger),
		Summaries:   summary.NewHandler(summaries, logger),
		Seasons:     season.NewHandler(seasons, logger),
		Pages:       router.NewPages(renderer, summaries),
		StaticDir:   app.StaticDir,
		CORSOrigins: app.CORSOrigins,
	}), nil
}
