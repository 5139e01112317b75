package parser

import (
	"strconv"
	"strings"
)

// ProcessRow строка листинга ps: pid, метрика и остаток строки как имя
type ProcessRow struct {
	PID    uint32
	Metric string
	Name   string
}

// ParseProcessRows разбирает вывод ps. Строка отбрасывается, если в ней меньше
// трех полей или pid не разбирается. Порядок строк сохраняется.
func ParseProcessRows(text string, skipHeader bool) []ProcessRow {
	lines := strings.Split(text, "\n")
	if skipHeader && len(lines) > 0 {
		lines = lines[1:]
	}

	rows := make([]ProcessRow, 0, len(lines))
	for _, line := range lines {
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		pid, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}
		rows = append(rows, ProcessRow{
			PID:    uint32(pid),
			Metric: parts[1],
			Name:   strings.Join(parts[2:], " "),
		})
	}
	return rows
}

// CPURow процесс с долей CPU
type CPURow struct {
	PID     uint32
	Name    string
	Percent float64
}

// ParseCPURows разбирает вывод `ps -arcwwwxo pid,%cpu,comm`
func ParseCPURows(text string) []CPURow {
	var out []CPURow
	for _, row := range ParseProcessRows(text, true) {
		pct, err := strconv.ParseFloat(row.Metric, 64)
		if err != nil {
			continue
		}
		out = append(out, CPURow{PID: row.PID, Name: row.Name, Percent: pct})
	}
	return out
}

// MemoryRow процесс с резидентной памятью в байтах
type MemoryRow struct {
	PID   uint32
	Path  string
	Bytes uint64
}

// ParseMemoryRows разбирает вывод `ps -axm -o pid,rss,command`; rss в КБ
func ParseMemoryRows(text string) []MemoryRow {
	var out []MemoryRow
	for _, row := range ParseProcessRows(text, true) {
		kb, err := strconv.ParseUint(row.Metric, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, MemoryRow{PID: row.PID, Path: row.Name, Bytes: kb * 1024})
	}
	return out
}

// ExecutableName последний сегмент пути до первого пробела:
// "/Applications/Safari.app/Contents/MacOS/Safari -psn" -> "Safari"
func ExecutableName(command string) string {
	name := command
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return command
}
