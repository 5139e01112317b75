package commands

import (
	"context"
	"time"

	"mac_health/internal/collector"
	"mac_health/internal/errs"
	"mac_health/internal/procctl"
	"mac_health/internal/storage"

	"go.uber.org/zap"
)

// Metrics источник метрик хоста
type Metrics interface {
	CPU(ctx context.Context) (*collector.CpuSnapshot, error)
	Memory(ctx context.Context) (*collector.RamSnapshot, error)
	TopCPUProcesses(ctx context.Context, count int) ([]collector.ProcessCPU, error)
	TopMemoryProcesses(ctx context.Context, count int) ([]collector.ProcessMemory, error)
	Battery(ctx context.Context) (*collector.BatterySnapshot, error)
	Disks(ctx context.Context) (*collector.DisksOverview, error)
	Uptime(ctx context.Context) (uint64, error)
	PurgeMemory(ctx context.Context) (*collector.MemoryCleanResult, error)
	Collect(ctx context.Context) (*collector.HealthSnapshot, error)
}

// StorageCategories кеш категорий хранилища
type StorageCategories interface {
	Get(ctx context.Context) (*storage.Categories, error)
	Refresh(ctx context.Context) (*storage.Categories, error)
}

// Terminator завершает процессы
type Terminator interface {
	Terminate(ctx context.Context, pid uint32) (*procctl.Outcome, error)
}

// Args аргументы команды; используются только нужные команде поля
type Args struct {
	Count *int    `json:"count,omitempty"`
	PID   *uint32 `json:"pid,omitempty"`
	Panel string  `json:"panel,omitempty"`
}

// Info описание команды для клиентов
type Info struct {
	Name  string   `json:"name"`
	Async bool     `json:"async"`
	Args  []string `json:"args,omitempty"`
}

type handler func(ctx context.Context, args Args) (any, error)

type command struct {
	info    Info
	handler handler
}

// Deps зависимости диспетчера
type Deps struct {
	Metrics  Metrics
	Storage  StorageCategories
	Process  Terminator
	Launcher *Launcher

	// DefaultCount размер топа процессов, если count не передан
	DefaultCount int
}

// Dispatcher сопоставляет имена команд операциям ядра
type Dispatcher struct {
	commands map[string]command
	order    []string
	logger   *zap.Logger
}

// New создает диспетчер со всеми командами
func New(deps Deps, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		commands: make(map[string]command),
		logger:   logger,
	}

	defaultCount := deps.DefaultCount
	if defaultCount <= 0 {
		defaultCount = collector.DefaultProcessCount
	}

	m := deps.Metrics
	d.register(Info{Name: "get_ram_info"}, func(ctx context.Context, _ Args) (any, error) {
		return m.Memory(ctx)
	})
	d.register(Info{Name: "get_top_memory_processes", Args: []string{"count"}}, func(ctx context.Context, args Args) (any, error) {
		count, err := resolveCount("get_top_memory_processes", args.Count, defaultCount)
		if err != nil {
			return nil, err
		}
		return m.TopMemoryProcesses(ctx, count)
	})
	d.register(Info{Name: "purge_memory_with_admin"}, func(ctx context.Context, _ Args) (any, error) {
		return m.PurgeMemory(ctx)
	})
	d.register(Info{Name: "force_quit_process", Args: []string{"pid"}}, func(ctx context.Context, args Args) (any, error) {
		if args.PID == nil {
			return nil, errs.New(errs.InvalidArgument, "force_quit_process", "pid is required")
		}
		return deps.Process.Terminate(ctx, *args.PID)
	})
	d.register(Info{Name: "get_cpu_info"}, func(ctx context.Context, _ Args) (any, error) {
		return m.CPU(ctx)
	})
	d.register(Info{Name: "get_top_cpu_processes", Args: []string{"count"}}, func(ctx context.Context, args Args) (any, error) {
		count, err := resolveCount("get_top_cpu_processes", args.Count, defaultCount)
		if err != nil {
			return nil, err
		}
		return m.TopCPUProcesses(ctx, count)
	})
	d.register(Info{Name: "get_system_uptime"}, func(ctx context.Context, _ Args) (any, error) {
		return m.Uptime(ctx)
	})
	d.register(Info{Name: "open_activity_monitor", Async: true}, func(ctx context.Context, _ Args) (any, error) {
		return nil, deps.Launcher.OpenActivityMonitor(ctx)
	})
	d.register(Info{Name: "get_battery_info"}, func(ctx context.Context, _ Args) (any, error) {
		return m.Battery(ctx)
	})
	d.register(Info{Name: "open_energy_settings", Async: true}, func(ctx context.Context, _ Args) (any, error) {
		return nil, deps.Launcher.OpenEnergySettings(ctx)
	})
	d.register(Info{Name: "get_disk_info"}, func(ctx context.Context, _ Args) (any, error) {
		return m.Disks(ctx)
	})
	d.register(Info{Name: "get_storage_categories"}, func(ctx context.Context, _ Args) (any, error) {
		return deps.Storage.Get(ctx)
	})
	d.register(Info{Name: "refresh_storage_categories"}, func(ctx context.Context, _ Args) (any, error) {
		return deps.Storage.Refresh(ctx)
	})
	d.register(Info{Name: "open_storage_settings", Async: true}, func(ctx context.Context, _ Args) (any, error) {
		return nil, deps.Launcher.OpenStorageSettings(ctx)
	})
	d.register(Info{Name: "open_system_settings", Async: true, Args: []string{"panel"}}, func(ctx context.Context, args Args) (any, error) {
		return nil, deps.Launcher.OpenSettingsPanel(ctx, args.Panel)
	})
	d.register(Info{Name: "get_system_status"}, func(ctx context.Context, _ Args) (any, error) {
		return m.Collect(ctx)
	})

	return d
}

func (d *Dispatcher) register(info Info, h handler) {
	d.commands[info.Name] = command{info: info, handler: h}
	d.order = append(d.order, info.Name)
}

// Names возвращает имена команд в порядке регистрации
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// Commands возвращает описания всех команд
func (d *Dispatcher) Commands() []Info {
	infos := make([]Info, 0, len(d.order))
	for _, name := range d.order {
		infos = append(infos, d.commands[name].info)
	}
	return infos
}

// Call выполняет команду по имени
func (d *Dispatcher) Call(ctx context.Context, name string, args Args) (any, error) {
	cmd, ok := d.commands[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "call", "Unknown command: "+name)
	}

	start := time.Now()
	result, err := cmd.handler(ctx, args)
	if err != nil {
		d.logger.Warn("Command failed",
			zap.String("command", name),
			zap.String("kind", errs.KindOf(err).String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	d.logger.Debug("Command completed",
		zap.String("command", name),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// resolveCount отсутствующий count означает размер топа по умолчанию,
// явный 0 - пустой список
func resolveCount(op string, count *int, fallback int) (int, error) {
	if count == nil {
		return fallback, nil
	}
	if *count < 0 {
		return 0, errs.New(errs.InvalidArgument, op, "count must not be negative")
	}
	return *count, nil
}
