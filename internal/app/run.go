package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"app-clima/internal/config"
	"app-clima/internal/db"
	"app-clima/internal/httpapi"
	"app-clima/internal/migrate"
	climate "app-clima/internal/modules/climate"
	"app-clima/internal/modules/climate/power"
	"app-clima/internal/modules/climate/session"
	climateviews "app-clima/internal/modules/climate/views"
	"app-clima/internal/mqtt"
)

const sweepInterval = 10 * time.Minute

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"powerBaseURL", cfg.PowerBaseURL,
		"sessionStore", cfg.SessionStore,
		"sessionTTL", cfg.SessionTTL,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	health := httpapi.Health{SessionStore: cfg.SessionStore}
	var store session.Store
	switch cfg.SessionStore {
	case config.SessionStoreSQLite:
		dbConn, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(dbConn); closeErr != nil {
				slog.Error("db close", "error", closeErr)
			}
		}()

		n, err := migrate.Run(dbConn)
		if err != nil {
			return err
		}
		slog.Info("session database ready", "migrationsApplied", n)

		sqliteStore := session.NewSQLiteStore(dbConn, cfg.SessionTTL)
		store = sqliteStore
		health.Store = sqliteStore
	default:
		store = session.NewMemoryStore(cfg.SessionTTL)
	}

	if err := climateviews.LoadTemplates(); err != nil {
		return err
	}

	publisher := mqtt.NewPublisher(cfg, slog.Default())
	health.Broker = publisher

	// Use a short timeout for the initial MQTT connect so startup does not block when the broker is down.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err := publisher.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing without acquisition events)", "error", err)
	}

	powerClient := power.NewClient()
	powerClient.SetBaseURL(cfg.PowerBaseURL)

	sessions := session.NewManager(store, cfg.SessionCookie, cfg.AppEnv == "prod")
	mux := httpapi.NewMux(health, cfg.StaticDir)
	climate.RegisterFeature(mux, powerClient, publisher, sessions, slog.Default())

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sessions.RunSweeper(sweepCtx, sweepInterval)

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		publisher.Disconnect()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("mqtt disconnecting")
	publisher.Disconnect()

	return ctx.Err()
}
