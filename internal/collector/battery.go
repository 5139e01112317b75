package collector

import (
	"context"
	"strings"

	"mac_health/internal/errs"
	"mac_health/internal/parser"
)

// invalidTimeRemaining значения >= этого считаются "неизвестно"
const invalidTimeRemaining = 65535

// Battery собирает метрики батареи из `ioreg -rc AppleSmartBattery`.
// На хостах без батареи возвращает ошибку вида errs.EmptyOutput.
func (c *Collector) Battery(ctx context.Context) (*BatterySnapshot, error) {
	res, err := c.runner.Run(ctx, "ioreg", "-rc", "AppleSmartBattery")
	if err != nil {
		if errs.IsKind(err, errs.SpawnFailed) {
			return nil, errs.Wrap(errs.SpawnFailed, "battery", err, "Failed to run ioreg")
		}
		return nil, err
	}
	if !res.Success() {
		return nil, errs.New(errs.Failed, "battery", "ioreg command failed")
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil, errs.New(errs.EmptyOutput, "battery", "No battery found (desktop Mac?)")
	}

	return BuildBattery(res.Stdout), nil
}

// BuildBattery собирает BatterySnapshot из дампа реестра.
// Используются AppleRaw* значения: не-raw емкости уже выражены в процентах.
// Здоровье не ограничивается сверху: max > design бывает после калибровки.
func BuildBattery(text string) *BatterySnapshot {
	current := floatOr(text, "AppleRawCurrentCapacity", 0)
	maxCapacity := floatOr(text, "AppleRawMaxCapacity", 100)
	design := floatOr(text, "DesignCapacity", 100)

	charging := parser.RegistryBool(text, "IsCharging")
	external := parser.RegistryBool(text, "ExternalConnected")

	health := 100.0
	if design > 0 {
		health = maxCapacity / design * 100
	}

	snapshot := &BatterySnapshot{
		Percentage:            parser.ClampPercent(percentOf(current, maxCapacity)),
		IsCharging:            charging,
		IsPluggedIn:           external,
		PowerSource:           PowerSourceFor(external),
		Condition:             ConditionFor(health),
		MaxCapacityPercentage: health,
	}

	if v, ok := parser.RegistryUint(text, "CycleCount"); ok && v <= uint64(^uint32(0)) {
		cycles := uint32(v)
		snapshot.CycleCount = &cycles
	}

	if v, ok := parser.RegistryFloat(text, "Temperature"); ok {
		celsius := v / 100
		snapshot.TemperatureCelsius = &celsius
	}

	if v, ok := parser.RegistryFloat(text, "Voltage"); ok {
		volts := v / 1000
		snapshot.VoltageVolts = &volts
	}

	if v, ok := parser.RegistryUint(text, "TimeRemaining"); ok && v < invalidTimeRemaining {
		minutes := uint32(v)
		if charging {
			snapshot.TimeToFullMinutes = &minutes
		} else {
			snapshot.TimeToEmptyMinutes = &minutes
		}
	}

	return snapshot
}

// ConditionFor классифицирует здоровье батареи в процентах
func ConditionFor(health float64) BatteryCondition {
	switch {
	case health >= 80:
		return ConditionNormal
	case health >= 50:
		return ConditionServiceRecommended
	default:
		return ConditionReplaceSoon
	}
}

// PowerSourceFor возвращает источник питания
func PowerSourceFor(externalConnected bool) PowerSource {
	if externalConnected {
		return PowerSourceAC
	}
	return PowerSourceBattery
}

func floatOr(text, key string, fallback float64) float64 {
	if v, ok := parser.RegistryFloat(text, key); ok {
		return v
	}
	return fallback
}
