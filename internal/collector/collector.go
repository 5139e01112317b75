package collector

import (
	"context"
	"fmt"
	"time"

	"mac_health/internal/errs"
	"mac_health/internal/runner"

	"github.com/go-orz/cache"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PerCoreMode способ получения загрузки по ядрам
type PerCoreMode string

const (
	// PerCoreSynthetic детерминированная модель от общей загрузки
	PerCoreSynthetic PerCoreMode = "synthetic"
	// PerCoreMeasured реальные счетчики по ядрам из gopsutil
	PerCoreMeasured PerCoreMode = "measured"
)

const (
	hostFactsKey = "host"
	hostFactsTTL = time.Hour

	// DefaultProcessCount размер топа процессов по умолчанию
	DefaultProcessCount = 10
)

// Options настройки сборщика
type Options struct {
	PerCoreMode     PerCoreMode
	PerCoreInterval time.Duration
	PurgeSettle     time.Duration
}

// hostFacts статичные сведения о процессоре
type hostFacts struct {
	model string
	cores int
}

// Collector отвечает за сбор системных метрик
type Collector struct {
	logger  *zap.Logger
	runner  runner.Runner
	system  SystemSource
	options Options

	hostCache cache.Cache[string, hostFacts]
}

// New создает новый экземпляр сборщика метрик
func New(logger *zap.Logger, r runner.Runner, system SystemSource, options Options) *Collector {
	if options.PerCoreMode == "" {
		options.PerCoreMode = PerCoreSynthetic
	}
	if options.PerCoreInterval <= 0 {
		options.PerCoreInterval = 200 * time.Millisecond
	}

	return &Collector{
		logger:    logger,
		runner:    r,
		system:    system,
		options:   options,
		hostCache: cache.New[string, hostFacts](hostFactsTTL),
	}
}

// Collect собирает все метрики параллельно и вычисляет сводный статус.
// Отсутствие батареи не считается ошибкой.
func (c *Collector) Collect(ctx context.Context) (*HealthSnapshot, error) {
	c.logger.Debug("Starting metrics collection")

	snapshot := &HealthSnapshot{
		Timestamp: time.Now(),
	}

	type result struct {
		name string
		err  error
	}

	results := make(chan result, 4)

	go func() {
		cpuSnapshot, err := c.CPU(ctx)
		if err == nil {
			snapshot.CPU = cpuSnapshot
		}
		results <- result{name: "CPU", err: err}
	}()

	go func() {
		ramSnapshot, err := c.Memory(ctx)
		if err == nil {
			snapshot.RAM = ramSnapshot
		}
		results <- result{name: "Memory", err: err}
	}()

	go func() {
		disks, err := c.Disks(ctx)
		if err == nil {
			snapshot.Disk = disks
		}
		results <- result{name: "Disk", err: err}
	}()

	go func() {
		battery, err := c.Battery(ctx)
		if errs.IsKind(err, errs.EmptyOutput) {
			err = nil
		}
		if err == nil {
			snapshot.Battery = battery
		}
		results <- result{name: "Battery", err: err}
	}()

	// Ждем завершения всех горутин
	var combined error
	failed := 0
	for i := 0; i < 4; i++ {
		select {
		case res := <-results:
			if res.err != nil {
				failed++
				combined = multierr.Append(combined, fmt.Errorf("%s: %w", res.name, res.err))
				c.logger.Warn("Failed to collect metrics",
					zap.String("component", res.name),
					zap.Error(res.err))
			}
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Cancelled, "collect", ctx.Err(), "metrics collection cancelled")
		}
	}

	if failed == 4 {
		return nil, fmt.Errorf("failed to collect all metrics: %w", combined)
	}

	snapshot.Status = EvaluateStatus(snapshot)

	c.logger.Debug("Metrics collection completed",
		zap.Int("errors", failed),
		zap.String("status", string(snapshot.Status)),
		zap.Time("timestamp", snapshot.Timestamp))

	return snapshot, nil
}

// Uptime возвращает время работы системы в секундах
func (c *Collector) Uptime(ctx context.Context) (uint64, error) {
	uptime, err := c.system.Uptime(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get system uptime: %w", err)
	}
	return uptime, nil
}

// percentOf вычисляет num/den*100, 0 при den == 0
func percentOf(num, den float64) float64 {
	if den > 0 {
		return num / den * 100
	}
	return 0
}

// sleepContext ждет d или отмены контекста
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
