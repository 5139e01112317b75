package parser

import (
	"math"
	"strconv"
	"strings"
)

const (
	cpuUsageMarker = "CPU usage:"
	idleMarker     = "idle"

	loadEstimateFactor = 10.0

	perCoreBaseFactor     = 0.7
	perCoreAmplitude      = 25.0
	perCoreOffset         = 10.0
	perCoreIndexStep      = 1.5
	PerCoreMinimumPercent = 8.0
	PerCoreMaximumPercent = 100.0
)

// ParseCPUUsage ищет строку вида
// "CPU usage: 26.85% user, 19.57% sys, 53.57% idle" и возвращает 100 - idle
func ParseCPUUsage(text string) (float64, bool) {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, cpuUsageMarker) {
			continue
		}
		idx := strings.Index(line, idleMarker)
		if idx < 0 {
			continue
		}

		words := strings.Fields(line[:idx])
		if len(words) == 0 {
			continue
		}
		token := strings.TrimRight(words[len(words)-1], ",")
		token = strings.TrimRight(token, "%")
		idle, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		return ClampPercent(100 - idle), true
	}
	return 0, false
}

// EstimateCPUUsage грубая оценка загрузки по load average за 1 минуту.
// Это приближение, а не измерение.
func EstimateCPUUsage(load1 float64) float64 {
	return ClampPercent(load1 * loadEstimateFactor)
}

// CPUUsageOrEstimate возвращает загрузку из вывода top или оценку по load1.
// Второе значение true, если результат является оценкой.
func CPUUsageOrEstimate(text string, load1 float64) (float64, bool) {
	if usage, ok := ParseCPUUsage(text); ok {
		return usage, false
	}
	return EstimateCPUUsage(load1), true
}

// SynthesizePerCore строит отображаемую загрузку по ядрам из общей загрузки.
// Значения детерминированы и не измеряются.
func SynthesizePerCore(usage float64, cores int) []float64 {
	if cores <= 0 {
		return []float64{}
	}

	base := usage * perCoreBaseFactor
	out := make([]float64, cores)
	for i := range out {
		variation := math.Abs(math.Sin(float64(i)*perCoreIndexStep))*perCoreAmplitude + perCoreOffset
		out[i] = clamp(base+variation, PerCoreMinimumPercent, PerCoreMaximumPercent)
	}
	return out
}

// ClampPercent ограничивает значение диапазоном [0, 100]
func ClampPercent(v float64) float64 {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
