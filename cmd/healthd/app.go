package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mac_health/internal/collector"
	"mac_health/internal/commands"
	"mac_health/internal/config"
	"mac_health/internal/procctl"
	"mac_health/internal/runner"
	"mac_health/internal/storage"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// app собранное ядро: сборщик, кеш хранилища и диспетчер команд
type app struct {
	collector  *collector.Collector
	cache      *storage.Cache
	dispatcher *commands.Dispatcher
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	cachePath, err := storageCachePath(cfg)
	if err != nil {
		return nil, err
	}

	r := runner.New(cfg.CommandTimeout, logger.Named("runner"))

	coll := collector.New(logger.Named("collector"), r, collector.NewGopsutilSource(), collector.Options{
		PerCoreMode:     collector.PerCoreMode(cfg.PerCoreMode),
		PerCoreInterval: cfg.PerCoreInterval,
		PurgeSettle:     cfg.PurgeSettle,
	})

	fs := afero.NewOsFs()
	scanner := storage.NewDuScanner(fs, r, storage.DefaultCategoryDirs(home), logger.Named("scanner"))
	cache := storage.NewCache(fs, cachePath, cfg.CacheFreshness, scanner, logger.Named("storage"))

	dispatcher := commands.New(commands.Deps{
		Metrics:      coll,
		Storage:      cache,
		Process:      procctl.New(nil, cfg.TerminateSettle, logger.Named("procctl")),
		Launcher:     commands.NewLauncher(r, logger.Named("launcher")),
		DefaultCount: cfg.ProcessCount,
	}, logger.Named("commands"))

	logger.Debug("Core assembled",
		zap.String("cache_path", cachePath),
		zap.String("per_core_mode", cfg.PerCoreMode),
		zap.Duration("command_timeout", cfg.CommandTimeout))

	return &app{
		collector:  coll,
		cache:      cache,
		dispatcher: dispatcher,
	}, nil
}

// Close отменяет фоновое пересканирование и дожидается его завершения
func (a *app) Close() {
	a.cache.Close()
}

// storageCachePath явный cache_dir или системный каталог кеша пользователя
func storageCachePath(cfg *config.Config) (string, error) {
	if cfg.CacheDir != "" {
		return filepath.Join(cfg.CacheDir, cfg.AppID, storage.CacheFileName), nil
	}

	path, err := storage.DefaultPath(cfg.AppID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return path, nil
}
