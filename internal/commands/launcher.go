package commands

import (
	"context"
	"strings"

	"mac_health/internal/errs"
	"mac_health/internal/runner"

	"go.uber.org/zap"
)

const (
	ActivityMonitorPath = "/System/Applications/Utilities/Activity Monitor.app"
	EnergySettingsURL   = "x-apple.systempreferences:com.apple.preference.battery"
	StorageSettingsURL  = "x-apple.systempreferences:com.apple.settings.Storage"
)

var settingsPanels = map[string]string{
	"storage":          StorageSettingsURL,
	"privacy":          "x-apple.systempreferences:com.apple.preference.security?Privacy",
	"accessibility":    "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility",
	"full-disk-access": "x-apple.systempreferences:com.apple.preference.security?Privacy_AllFiles",
}

// SettingsURL возвращает адрес панели системных настроек
func SettingsURL(panel string) (string, bool) {
	url, ok := settingsPanels[panel]
	return url, ok
}

// Launcher открывает приложения и панели настроек через open(1)
type Launcher struct {
	runner runner.Runner
	logger *zap.Logger
}

// NewLauncher создает Launcher
func NewLauncher(r runner.Runner, logger *zap.Logger) *Launcher {
	return &Launcher{
		runner: r,
		logger: logger,
	}
}

// Open передает target в open(1) без разбора
func (l *Launcher) Open(ctx context.Context, target string) error {
	res, err := l.runner.Run(ctx, "open", target)
	if err != nil {
		return err
	}
	if !res.Success() {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = "open exited with an error"
		}
		return errs.New(errs.Failed, "open", "Failed to open "+target+": "+msg)
	}

	l.logger.Debug("Opened target", zap.String("target", target))
	return nil
}

// OpenActivityMonitor запускает Activity Monitor
func (l *Launcher) OpenActivityMonitor(ctx context.Context) error {
	return l.Open(ctx, ActivityMonitorPath)
}

// OpenEnergySettings открывает настройки аккумулятора
func (l *Launcher) OpenEnergySettings(ctx context.Context) error {
	return l.Open(ctx, EnergySettingsURL)
}

// OpenStorageSettings открывает настройки хранилища
func (l *Launcher) OpenStorageSettings(ctx context.Context) error {
	return l.Open(ctx, StorageSettingsURL)
}

// OpenSettingsPanel открывает панель по имени: storage, privacy, accessibility, full-disk-access
func (l *Launcher) OpenSettingsPanel(ctx context.Context, panel string) error {
	url, ok := SettingsURL(panel)
	if !ok {
		return errs.New(errs.NotFound, "open_system_settings", "Unknown panel: "+panel)
	}
	return l.Open(ctx, url)
}
