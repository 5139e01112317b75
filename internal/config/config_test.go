package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	AddFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.CacheFreshness != 5*time.Minute || cfg.TerminateSettle != 500*time.Millisecond || cfg.ProcessCount != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PurgeSettle != 500*time.Millisecond {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, `
log_level: warn
listen_addr: 127.0.0.1:9000
cache_freshness: 10m
process_count: 20
per_core_mode: measured
`)

	t.Run("file", func(t *testing.T) {
		cfg := NewConfig()
		if err := cfg.Load(newCommand(t, "--config", path)); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.LogLevel != "warn" || cfg.ListenAddr != "127.0.0.1:9000" || cfg.CacheFreshness != 10*time.Minute {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if cfg.PerCoreMode != "measured" || cfg.ProcessCount != 20 {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if cfg.TerminateSettle != 500*time.Millisecond {
			t.Errorf("missing key changed default: %v", cfg.TerminateSettle)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("MACHEALTH_LOG_LEVEL", "debug")
		t.Setenv("MACHEALTH_CACHE_FRESHNESS", "1m")

		cfg := NewConfig()
		if err := cfg.Load(newCommand(t, "--config", path)); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.LogLevel != "debug" || cfg.CacheFreshness != time.Minute {
			t.Errorf("env not applied: %+v", cfg)
		}
		if cfg.ListenAddr != "127.0.0.1:9000" {
			t.Errorf("file value lost: %s", cfg.ListenAddr)
		}
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Setenv("MACHEALTH_LOG_LEVEL", "debug")
		t.Setenv("MACHEALTH_CONFIG", path)

		cfg := NewConfig()
		if err := cfg.Load(newCommand(t, "--log-level", "error", "--cache-freshness", "30s")); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.LogLevel != "error" || cfg.CacheFreshness != 30*time.Second {
			t.Errorf("flags not applied: %+v", cfg)
		}
		if cfg.ProcessCount != 20 {
			t.Errorf("config from MACHEALTH_CONFIG not loaded: %+v", cfg)
		}
	})

	t.Run("unchanged flags keep lower layers", func(t *testing.T) {
		cfg := NewConfig()
		if err := cfg.Load(newCommand(t, "--config", path)); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("flag default overrode file value: %s", cfg.LogLevel)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		args    []string
		wantErr string
	}{
		{name: "missing file", args: []string{"--config", "/nonexistent/config.yaml"}, wantErr: "failed to read config file"},
		{name: "bad yaml", file: "log_level: [", wantErr: "failed to parse config file"},
		{name: "bad env duration", env: map[string]string{"MACHEALTH_COMMAND_TIMEOUT": "soon"}, wantErr: "MACHEALTH_COMMAND_TIMEOUT"},
		{name: "bad env int", env: map[string]string{"MACHEALTH_PROCESS_COUNT": "ten"}, wantErr: "MACHEALTH_PROCESS_COUNT"},
		{name: "bad log level", args: []string{"--log-level", "verbose"}, wantErr: "LogLevel"},
		{name: "bad per-core mode", args: []string{"--per-core", "random"}, wantErr: "PerCoreMode"},
		{name: "zero process count", args: []string{"--process-count", "0"}, wantErr: "ProcessCount"},
		{name: "zero freshness", args: []string{"--cache-freshness", "0s"}, wantErr: "CacheFreshness"},
		{name: "bad listen", args: []string{"--listen", "nowhere"}, wantErr: "ListenAddr"},
		{name: "bad schedule", args: []string{"--status-schedule", "whenever"}, wantErr: "invalid status schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := tt.args
			if tt.file != "" {
				args = append(args, "--config", writeFile(t, tt.file))
			}

			err := NewConfig().Load(newCommand(t, args...))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
