package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"secvault/internal/alarm"
	"secvault/internal/config"
	"secvault/internal/coordinator"
	"secvault/internal/credcheck"
	"secvault/internal/devicebind"
	"secvault/internal/events"
	"secvault/internal/ratelimit"
	"secvault/internal/revocation"
	"secvault/internal/sessioncache"
	"secvault/internal/sessionsettings"
	"secvault/internal/store/memstore"
	"secvault/internal/store/sqlitestore"
	"secvault/internal/telemetry"
	"secvault/internal/vault"
)

// app bundles every wired component a subcommand might need.
type app struct {
	cfg         *config.Config
	coordinator *coordinator.Coordinator
	revocation  *revocation.Detector
	telemetry   *telemetry.Service
	durable     *sqlitestore.Store
}

func newApp(ctx context.Context, configPath string, verbose bool) (*app, error) {
	v := viper.New()
	v.Set("verbose", verbose)

	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}

	telemetrySvc, err := telemetry.New(ctx, telemetry.Settings{ServiceName: "secvault", Verbose: cfg.Verbose})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	durable, err := sqlitestore.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault store at %s: %w", cfg.StorePath, err)
	}

	ephemeral := memstore.New()
	installationID := config.StaticInstallationID(cfg.InstallationID)

	binder := devicebind.New(durable, installationID)
	v1 := vault.New(durable, binder)
	limiter := ratelimit.New(ephemeral)
	settingsStore := sessionsettings.NewStore(durable)
	scheduler := alarm.NewTimerScheduler()
	bus := events.New()
	cache := sessioncache.New(ephemeral, settingsStore, scheduler, bus, installationID)

	coord := coordinator.New(limiter, v1, cache)
	if err := coord.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session cache: %w", err)
	}

	return &app{
		cfg:         cfg,
		coordinator: coord,
		revocation:  revocation.New(durable),
		telemetry:   telemetrySvc,
		durable:     durable,
	}, nil
}

func (a *app) close(ctx context.Context) {
	a.telemetry.Shutdown(ctx)
	_ = a.durable.Close()
}

func maskedAPIKey(key string) string {
	return credcheck.Mask(key)
}
