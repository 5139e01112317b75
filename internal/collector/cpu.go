package collector

import (
	"context"
	"sort"

	"mac_health/internal/errs"
	"mac_health/internal/parser"

	"go.uber.org/zap"
)

const (
	unknownModel     = "Unknown"
	fallbackCoreSize = 10
)

// CPU собирает метрики процессора.
// Общая загрузка берется из `top -l 1 -n 0`; если строка "CPU usage:" не
// найдена, загрузка оценивается как load1*10 и помечается UsageEstimated.
func (c *Collector) CPU(ctx context.Context) (*CpuSnapshot, error) {
	facts := c.loadHostFacts(ctx)

	var loadAvg LoadAverage
	if avg, err := c.system.LoadAvg(ctx); err != nil {
		// Load average не критично, продолжаем без него
		c.logger.Warn("Failed to get load average", zap.Error(err))
	} else if avg != nil {
		loadAvg = LoadAverage{
			OneMinute:      avg.Load1,
			FiveMinutes:    avg.Load5,
			FifteenMinutes: avg.Load15,
		}
	}

	var topOutput string
	if res, err := c.runner.Run(ctx, "top", "-l", "1", "-n", "0"); err != nil {
		c.logger.Debug("top unavailable, estimating CPU usage from load average", zap.Error(err))
	} else {
		topOutput = res.Stdout
	}

	usage, estimated := parser.CPUUsageOrEstimate(topOutput, loadAvg.OneMinute)

	snapshot := &CpuSnapshot{
		ModelName:            facts.model,
		TotalCores:           facts.cores,
		TotalUsagePercentage: usage,
		UsageEstimated:       estimated,
		LoadAverage:          loadAvg,
	}

	if c.options.PerCoreMode == PerCoreMeasured {
		if perCore, ok := c.measurePerCore(ctx, facts.cores); ok {
			snapshot.PerCoreUsage = perCore
			snapshot.PerCoreMeasured = true
			return snapshot, nil
		}
	}

	snapshot.PerCoreUsage = parser.SynthesizePerCore(usage, facts.cores)
	return snapshot, nil
}

// measurePerCore читает счетчики по ядрам; false, если их число не совпадает
func (c *Collector) measurePerCore(ctx context.Context, cores int) ([]float64, bool) {
	values, err := c.system.PerCPUPercent(ctx, c.options.PerCoreInterval)
	if err != nil {
		c.logger.Warn("Failed to measure per-core usage", zap.Error(err))
		return nil, false
	}
	if len(values) != cores {
		c.logger.Debug("Per-core sample size mismatch",
			zap.Int("expected", cores),
			zap.Int("actual", len(values)))
		return nil, false
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = parser.ClampPercent(v)
	}
	return out, true
}

// loadHostFacts возвращает модель и число ядер, кешируя их на час
func (c *Collector) loadHostFacts(ctx context.Context) hostFacts {
	if facts, ok := c.hostCache.Get(hostFactsKey); ok {
		return facts
	}

	facts := hostFacts{model: unknownModel, cores: fallbackCoreSize}

	if model, err := c.system.CPUModel(ctx); err != nil {
		c.logger.Warn("Failed to get CPU model", zap.Error(err))
	} else if model != "" {
		facts.model = model
	}

	if cores, err := c.system.CPUCount(ctx); err != nil {
		c.logger.Warn("Failed to get CPU count", zap.Error(err))
	} else if cores > 0 {
		facts.cores = cores
	}

	c.hostCache.Set(hostFactsKey, facts, hostFactsTTL)
	return facts
}

// TopCPUProcesses возвращает count процессов с наибольшей долей CPU;
// count <= 0 дает пустой список без запуска ps
func (c *Collector) TopCPUProcesses(ctx context.Context, count int) ([]ProcessCPU, error) {
	if count <= 0 {
		return []ProcessCPU{}, nil
	}

	res, err := c.runner.Run(ctx, "ps", "-arcwwwxo", "pid,%cpu,comm")
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, errs.New(errs.Failed, "ps", "ps command failed")
	}

	rows := parser.ParseCPURows(res.Stdout)
	processes := make([]ProcessCPU, 0, len(rows))
	for _, row := range rows {
		processes = append(processes, ProcessCPU{
			PID:           row.PID,
			Name:          row.Name,
			CPUPercentage: row.Percent,
		})
	}

	// Стабильная сортировка: при равенстве сохраняется порядок листинга
	sort.SliceStable(processes, func(i, j int) bool {
		return processes[i].CPUPercentage > processes[j].CPUPercentage
	})
	if len(processes) > count {
		processes = processes[:count]
	}

	c.logger.Debug("Top CPU processes collected", zap.Int("count", len(processes)))
	return processes, nil
}

// TopMemoryProcesses возвращает count процессов с наибольшим RSS
func (c *Collector) TopMemoryProcesses(ctx context.Context, count int) ([]ProcessMemory, error) {
	if count <= 0 {
		return []ProcessMemory{}, nil
	}

	res, err := c.runner.Run(ctx, "ps", "-axm", "-o", "pid,rss,command")
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, errs.New(errs.Failed, "ps", "ps command failed")
	}

	var totalMemory uint64
	if vm, err := c.system.VirtualMemory(ctx); err != nil {
		c.logger.Warn("Failed to get total memory", zap.Error(err))
	} else {
		totalMemory = vm.Total
	}

	rows := parser.ParseMemoryRows(res.Stdout)
	processes := make([]ProcessMemory, 0, len(rows))
	for _, row := range rows {
		processes = append(processes, ProcessMemory{
			PID:              row.PID,
			Name:             parser.ExecutableName(row.Path),
			Path:             row.Path,
			MemoryBytes:      row.Bytes,
			MemoryPercentage: percentOf(float64(row.Bytes), float64(totalMemory)),
		})
	}

	sort.SliceStable(processes, func(i, j int) bool {
		return processes[i].MemoryBytes > processes[j].MemoryBytes
	})
	if len(processes) > count {
		processes = processes[:count]
	}

	return processes, nil
}
