package collector

import "time"

// PressureLevel уровень давления на память
type PressureLevel string

const (
	PressureNormal   PressureLevel = "normal"
	PressureWarn     PressureLevel = "warn"
	PressureCritical PressureLevel = "critical"
)

// PowerSource источник питания
type PowerSource string

const (
	PowerSourceAC      PowerSource = "AC Adapter"
	PowerSourceBattery PowerSource = "Battery"
)

// BatteryCondition состояние батареи по уровню износа
type BatteryCondition string

const (
	ConditionNormal             BatteryCondition = "Normal"
	ConditionServiceRecommended BatteryCondition = "Service Recommended"
	ConditionReplaceSoon        BatteryCondition = "Replace Soon"
)

// SystemStatus сводный статус системы
type SystemStatus string

const (
	StatusExcellent     SystemStatus = "excellent"
	StatusCouldBeBetter SystemStatus = "could-be-better"
	StatusCritical      SystemStatus = "critical"
)

// LoadAverage средняя загрузка за 1, 5 и 15 минут
type LoadAverage struct {
	OneMinute      float64 `json:"one_minute"`
	FiveMinutes    float64 `json:"five_minutes"`
	FifteenMinutes float64 `json:"fifteen_minutes"`
}

// CpuSnapshot содержит метрики процессора.
// UsageEstimated выставляется, когда загрузка оценена по load average.
// PerCoreMeasured false означает, что значения по ядрам синтезированы.
type CpuSnapshot struct {
	ModelName            string      `json:"model_name"`
	TotalCores           int         `json:"total_cores"`
	TotalUsagePercentage float64     `json:"total_usage_percentage"`
	UsageEstimated       bool        `json:"usage_estimated"`
	PerCoreUsage         []float64   `json:"per_core_usage"`
	PerCoreMeasured      bool        `json:"per_core_measured"`
	LoadAverage          LoadAverage `json:"load_average"`
}

// RamSnapshot содержит метрики памяти
type RamSnapshot struct {
	TotalBytes     uint64        `json:"total_bytes"`
	UsedBytes      uint64        `json:"used_bytes"`
	AvailableBytes uint64        `json:"available_bytes"`
	UsedPercentage float64       `json:"used_percentage"`
	PressureLevel  PressureLevel `json:"pressure_level"`
}

// ProcessCPU процесс с долей CPU
type ProcessCPU struct {
	PID           uint32  `json:"pid"`
	Name          string  `json:"name"`
	CPUPercentage float64 `json:"cpu_percentage"`
}

// ProcessMemory процесс с резидентной памятью
type ProcessMemory struct {
	PID              uint32  `json:"pid"`
	Name             string  `json:"name"`
	Path             string  `json:"path"`
	MemoryBytes      uint64  `json:"memory_bytes"`
	MemoryPercentage float64 `json:"memory_percentage"`
}

// BatterySnapshot содержит метрики батареи
type BatterySnapshot struct {
	Percentage            float64          `json:"percentage"`
	IsCharging            bool             `json:"is_charging"`
	IsPluggedIn           bool             `json:"is_plugged_in"`
	PowerSource           PowerSource      `json:"power_source"`
	Condition             BatteryCondition `json:"condition"`
	MaxCapacityPercentage float64          `json:"max_capacity_percentage"`
	CycleCount            *uint32          `json:"cycle_count"`
	TimeToFullMinutes     *uint32          `json:"time_to_full_minutes"`
	TimeToEmptyMinutes    *uint32          `json:"time_to_empty_minutes"`
	TemperatureCelsius    *float64         `json:"temperature_celsius"`
	VoltageVolts          *float64         `json:"voltage_volts"`
}

// DiskRecord содержит метрики одного тома
type DiskRecord struct {
	Name           string  `json:"name"`
	MountPoint     string  `json:"mount_point"`
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	UsedPercentage float64 `json:"used_percentage"`
	FileSystem     string  `json:"file_system"`
	IsRemovable    bool    `json:"is_removable"`
}

// DisksOverview сводка по дискам; итоги только по несъемным дискам
type DisksOverview struct {
	Primary             *DiskRecord  `json:"primary"`
	AllDisks            []DiskRecord `json:"all_disks"`
	TotalSpaceBytes     uint64       `json:"total_space_bytes"`
	TotalAvailableBytes uint64       `json:"total_available_bytes"`
	TotalUsedBytes      uint64       `json:"total_used_bytes"`
	TotalUsedPercentage float64      `json:"total_used_percentage"`
}

// MemoryCleanResult результат очистки памяти
type MemoryCleanResult struct {
	Success    bool   `json:"success"`
	FreedBytes uint64 `json:"freed_bytes"`
	Message    string `json:"message"`
}

// HealthSnapshot содержит все собранные метрики системы.
// Battery равен nil на хостах без батареи.
type HealthSnapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	RAM       *RamSnapshot     `json:"ram"`
	CPU       *CpuSnapshot     `json:"cpu"`
	Disk      *DisksOverview   `json:"disk"`
	Battery   *BatterySnapshot `json:"battery"`
	Status    SystemStatus     `json:"status"`
}
