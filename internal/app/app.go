package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"localhaven-cms/internal/client"
	"localhaven-cms/internal/config"
	"localhaven-cms/internal/logger"
	"localhaven-cms/internal/repository"
	"localhaven-cms/internal/service"
	"localhaven-cms/internal/storage"
)

// App is the shared client state handed to the UI: one auth store and one
// asset store, built at startup and released by Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Auth   *service.AuthService
	Assets *service.AssetService

	AuthStore  storage.Store
	AssetStore storage.Store

	cleanupFuncs []func() error
}

// New wires the application from cfg. A nil log builds one from cfg.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if log == nil {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		log = logger.New(cfg.LogFormat, level, os.Stderr)
	}

	a := &App{Config: cfg, Logger: log}

	authStore, err := openStore(ctx, cfg, cfg.AuthStorageKey, log)
	if err != nil {
		return nil, err
	}
	a.AuthStore = authStore
	a.cleanupFuncs = append(a.cleanupFuncs, authStore.Close)

	assetStore, err := openStore(ctx, cfg, cfg.AssetStorageKey, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.AssetStore = assetStore
	a.cleanupFuncs = append(a.cleanupFuncs, assetStore.Close)

	// The transport needs the current token, which the auth service owns.
	var auth *service.AuthService
	transport := client.New(client.Options{
		BaseURL:      cfg.PublicAPIURL,
		Timeout:      cfg.RequestTimeout,
		RateLimitRPM: cfg.AuthRateLimitRPM,
		Logger:       log,
		TokenSource: func() string {
			if auth == nil {
				return ""
			}
			return auth.Token()
		},
	})

	auth, err = service.NewAuthService(ctx, authStore, repository.NewSessionRepository(authStore), transport, log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	a.Auth = auth
	a.cleanupFuncs = append(a.cleanupFuncs, func() error {
		auth.Close()
		return nil
	})

	assets, err := service.NewAssetService(ctx, assetStore, repository.NewAssetRepository(assetStore), log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize asset service: %w", err)
	}
	a.Assets = assets
	a.cleanupFuncs = append(a.cleanupFuncs, func() error {
		assets.Close()
		return nil
	})

	log.Info("application ready", "api", cfg.PublicAPIURL, "store_driver", cfg.StoreDriver)
	return a, nil
}

// Close releases everything New acquired, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		if err := a.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanupFuncs = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.Config, name string, log *slog.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if err := os.MkdirAll(cfg.StoreDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		store, err := storage.OpenSQLite(ctx, name, filepath.Join(cfg.StoreDir, name+".db"), storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", name, err)
		}
		return store, nil
	default:
		return storage.NewMemoryStore(name, storage.WithLogger(log)), nil
	}
}
