package collector

import (
	"context"
	"fmt"
	"strings"

	"mac_health/internal/errs"

	"go.uber.org/zap"
)

const purgeScript = `do shell script "purge" with administrator privileges`

// Memory собирает метрики памяти
func (c *Collector) Memory(ctx context.Context) (*RamSnapshot, error) {
	vmStat, err := c.system.VirtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory statistics: %w", err)
	}

	return BuildRam(vmStat.Total, vmStat.Used, vmStat.Available), nil
}

// BuildRam собирает RamSnapshot из сырых значений.
// Available == 0 на некоторых платформах, тогда используется total - used.
func BuildRam(total, used, available uint64) *RamSnapshot {
	if available == 0 {
		available = saturatingSub(total, used)
	}

	pct := percentOf(float64(used), float64(total))

	return &RamSnapshot{
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: available,
		UsedPercentage: pct,
		PressureLevel:  PressureFor(pct),
	}
}

// PressureFor классифицирует процент занятой памяти
func PressureFor(usedPercentage float64) PressureLevel {
	switch {
	case usedPercentage < 60:
		return PressureNormal
	case usedPercentage < 85:
		return PressureWarn
	default:
		return PressureCritical
	}
}

// PurgeMemory сбрасывает неактивную память через `purge` с правами
// администратора. Отмена запроса пароля пользователем возвращается как
// неуспешный результат, а не как ошибка.
func (c *Collector) PurgeMemory(ctx context.Context) (*MemoryCleanResult, error) {
	before := c.usedMemory(ctx)

	res, err := c.runner.Run(ctx, "osascript", "-e", purgeScript)
	if err != nil {
		if errs.IsKind(err, errs.SpawnFailed) {
			return nil, errs.Wrap(errs.SpawnFailed, "purge", err, "Failed to execute osascript")
		}
		return nil, err
	}

	if !res.Success() {
		if strings.Contains(res.Stderr, "canceled") || strings.Contains(res.Stderr, "User canceled") {
			c.logger.Info("Memory purge cancelled by user")
			return &MemoryCleanResult{
				Success:    false,
				FreedBytes: 0,
				Message:    "Authentication cancelled",
			}, nil
		}
		return nil, errs.New(errs.Failed, "purge", fmt.Sprintf("Purge failed: %s", strings.TrimSpace(res.Stderr)))
	}

	// Ждем, пока память стабилизируется
	if err := sleepContext(ctx, c.options.PurgeSettle); err != nil {
		return nil, errs.Wrap(errs.Cancelled, "purge", err, "memory purge cancelled")
	}

	after := c.usedMemory(ctx)
	freed := saturatingSub(before, after)

	c.logger.Info("Memory purged",
		zap.Uint64("before_bytes", before),
		zap.Uint64("after_bytes", after),
		zap.Uint64("freed_bytes", freed))

	return &MemoryCleanResult{
		Success:    true,
		FreedBytes: freed,
		Message:    fmt.Sprintf("Freed %d bytes of memory", freed),
	}, nil
}

// usedMemory возвращает занятую память или 0 при ошибке
func (c *Collector) usedMemory(ctx context.Context) uint64 {
	vmStat, err := c.system.VirtualMemory(ctx)
	if err != nil {
		c.logger.Warn("Failed to get used memory", zap.Error(err))
		return 0
	}
	return vmStat.Used
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
