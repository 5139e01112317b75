package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MACHEALTH_"

// Config содержит всю конфигурацию приложения
type Config struct {
	// Логирование
	LogLevel      string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" validate:"gte=1"`
	LogMaxBackups int    `yaml:"log_max_backups" validate:"gte=0"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" validate:"gte=0"`
	LogCompress   bool   `yaml:"log_compress"`

	// HTTP сервер
	ListenAddr string `yaml:"listen_addr" validate:"required,hostname_port"`
	AuthToken  string `yaml:"auth_token"`

	// Сбор метрик
	CommandTimeout  time.Duration `yaml:"command_timeout" validate:"gte=0"`
	ProcessCount    int           `yaml:"process_count" validate:"gte=1,lte=1000"`
	PerCoreMode     string        `yaml:"per_core_mode" validate:"oneof=synthetic measured"`
	PerCoreInterval time.Duration `yaml:"per_core_interval" validate:"gt=0"`
	PurgeSettle     time.Duration `yaml:"purge_settle" validate:"gte=0"`
	TerminateSettle time.Duration `yaml:"terminate_settle" validate:"gt=0"`
	StatusSchedule  string        `yaml:"status_schedule" validate:"required"`

	// Кеш категорий хранилища
	AppID          string        `yaml:"app_id" validate:"required,excludesall=/"`
	CacheDir       string        `yaml:"cache_dir"`
	CacheFreshness time.Duration `yaml:"cache_freshness" validate:"gt=0"`

	// Профилирование
	ProfileEnable  bool          `yaml:"profile"`
	ProfileCPUFile string        `yaml:"profile_cpu_file"`
	ProfileMemFile string        `yaml:"profile_mem_file"`
	ProfileTime    time.Duration `yaml:"profile_time" validate:"gte=0"`
}

// NewConfig создает новую конфигурацию с значениями по умолчанию
func NewConfig() *Config {
	return &Config{
		LogLevel:        "info",
		LogFile:         "",
		LogMaxSizeMB:    50,
		LogMaxBackups:   3,
		LogMaxAgeDays:   14,
		LogCompress:     true,
		ListenAddr:      "127.0.0.1:7766",
		AuthToken:       "",
		CommandTimeout:  30 * time.Second,
		ProcessCount:    10,
		PerCoreMode:     "synthetic",
		PerCoreInterval: 200 * time.Millisecond,
		PurgeSettle:     500 * time.Millisecond,
		TerminateSettle: 500 * time.Millisecond,
		StatusSchedule:  "@every 3s",
		AppID:           "com.machealth.app",
		CacheDir:        "",
		CacheFreshness:  5 * time.Minute,
		ProfileEnable:   false,
		ProfileCPUFile:  "",
		ProfileMemFile:  "",
		ProfileTime:     30 * time.Second,
	}
}

// Load загружает конфигурацию из файла, переменных окружения и флагов.
// Каждый следующий источник перекрывает предыдущий.
func (c *Config) Load(cmd *cobra.Command) error {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	if !flags.Changed("config") {
		if envPath := os.Getenv(envPrefix + "CONFIG"); envPath != "" {
			path = envPath
		}
	}
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return err
		}
	}

	if err := c.loadFromEnv(); err != nil {
		return err
	}

	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-file") {
		c.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("listen") {
		c.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("token") {
		c.AuthToken, _ = flags.GetString("token")
	}
	if flags.Changed("command-timeout") {
		c.CommandTimeout, _ = flags.GetDuration("command-timeout")
	}
	if flags.Changed("process-count") {
		c.ProcessCount, _ = flags.GetInt("process-count")
	}
	if flags.Changed("per-core") {
		c.PerCoreMode, _ = flags.GetString("per-core")
	}
	if flags.Changed("status-schedule") {
		c.StatusSchedule, _ = flags.GetString("status-schedule")
	}
	if flags.Changed("cache-dir") {
		c.CacheDir, _ = flags.GetString("cache-dir")
	}
	if flags.Changed("cache-freshness") {
		c.CacheFreshness, _ = flags.GetDuration("cache-freshness")
	}
	if flags.Changed("profile") {
		c.ProfileEnable, _ = flags.GetBool("profile")
	}
	if flags.Changed("profile-cpu") {
		c.ProfileCPUFile, _ = flags.GetString("profile-cpu")
	}
	if flags.Changed("profile-mem") {
		c.ProfileMemFile, _ = flags.GetString("profile-mem")
	}
	if flags.Changed("profile-time") {
		c.ProfileTime, _ = flags.GetDuration("profile-time")
	}

	return c.Validate()
}

// LoadFile накладывает значения из YAML файла; отсутствующие ключи не меняются
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv загружает конфигурацию из переменных окружения MACHEALTH_*
func (c *Config) loadFromEnv() error {
	var err error

	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FILE", &c.LogFile)
	err = multierr.Append(err, envInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB))
	err = multierr.Append(err, envInt("LOG_MAX_BACKUPS", &c.LogMaxBackups))
	err = multierr.Append(err, envInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays))
	err = multierr.Append(err, envBool("LOG_COMPRESS", &c.LogCompress))
	envString("LISTEN_ADDR", &c.ListenAddr)
	envString("AUTH_TOKEN", &c.AuthToken)
	err = multierr.Append(err, envDuration("COMMAND_TIMEOUT", &c.CommandTimeout))
	err = multierr.Append(err, envInt("PROCESS_COUNT", &c.ProcessCount))
	envString("PER_CORE_MODE", &c.PerCoreMode)
	err = multierr.Append(err, envDuration("PER_CORE_INTERVAL", &c.PerCoreInterval))
	err = multierr.Append(err, envDuration("PURGE_SETTLE", &c.PurgeSettle))
	err = multierr.Append(err, envDuration("TERMINATE_SETTLE", &c.TerminateSettle))
	envString("STATUS_SCHEDULE", &c.StatusSchedule)
	envString("APP_ID", &c.AppID)
	envString("CACHE_DIR", &c.CacheDir)
	err = multierr.Append(err, envDuration("CACHE_FRESHNESS", &c.CacheFreshness))
	err = multierr.Append(err, envBool("PROFILE_ENABLE", &c.ProfileEnable))
	envString("PROFILE_CPU_FILE", &c.ProfileCPUFile)
	envString("PROFILE_MEM_FILE", &c.ProfileMemFile)
	err = multierr.Append(err, envDuration("PROFILE_TIME", &c.ProfileTime))

	return err
}

func envString(key string, dst *string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q check (value %v)", fe.Field(), fe.ActualTag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := cron.ParseStandard(c.StatusSchedule); err != nil {
		return fmt.Errorf("invalid status schedule %q: %w", c.StatusSchedule, err)
	}

	// Валидация профилирования
	if c.ProfileEnable && c.ProfileCPUFile != "" && c.ProfileTime <= 0 {
		return fmt.Errorf("profile time must be positive")
	}

	return nil
}

// AddFlags добавляет флаги в cobra команду
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.String("config", "", "Path to YAML config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
	flags.String("listen", "127.0.0.1:7766", "HTTP listen address")
	flags.String("token", "", "Bearer token required by the HTTP API")
	flags.Duration("command-timeout", 30*time.Second, "Timeout for external utilities (0 disables)")
	flags.Int("process-count", 10, "Default number of top processes")
	flags.String("per-core", "synthetic", "Per-core CPU usage mode (synthetic, measured)")
	flags.String("status-schedule", "@every 3s", "Cron schedule for status evaluation")
	flags.String("cache-dir", "", "Directory for the storage categories cache")
	flags.Duration("cache-freshness", 5*time.Minute, "Age after which cached storage categories are revalidated")

	// Флаги профилирования
	flags.Bool("profile", false, "Enable profiling")
	flags.String("profile-cpu", "", "CPU profile output file")
	flags.String("profile-mem", "", "Memory profile output file")
	flags.Duration("profile-time", 30*time.Second, "CPU profile duration")
}
