package profiler

import (
	"fmt"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config представляет конфигурацию профилировщика
type Config struct {
	Enable      bool          // включить профилирование
	CPUProfile  string        // путь к файлу CPU профиля
	MemProfile  string        // путь к файлу профиля памяти
	ProfileTime time.Duration // время записи CPU профиля
}

// Profiler управляет профилированием приложения
type Profiler struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	cpuFile *os.File
	timer   *time.Timer
}

// New создает новый профилировщик
func New(config Config, logger *zap.Logger) *Profiler {
	return &Profiler{
		config: config,
		logger: logger,
	}
}

// Mount регистрирует эндпоинты pprof под /debug/pprof на сервере echo
func (p *Profiler) Mount(e *echo.Echo) {
	if !p.config.Enable {
		return
	}

	g := e.Group("/debug/pprof")
	g.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(httppprof.Cmdline)))
	g.GET("/profile", echo.WrapHandler(http.HandlerFunc(httppprof.Profile)))
	g.Any("/symbol", echo.WrapHandler(http.HandlerFunc(httppprof.Symbol)))
	g.GET("/trace", echo.WrapHandler(http.HandlerFunc(httppprof.Trace)))
	// Index отдает и именованные профили: heap, goroutine, block, mutex
	g.GET("/*", echo.WrapHandler(http.HandlerFunc(httppprof.Index)))

	p.logger.Info("pprof endpoints mounted", zap.String("prefix", "/debug/pprof"))
}

// Start запускает CPU профилирование в файл, если оно настроено
func (p *Profiler) Start() error {
	if !p.config.Enable {
		p.logger.Debug("Profiling disabled")
		return nil
	}

	p.logger.Info("Starting profiler",
		zap.String("cpu_profile", p.config.CPUProfile),
		zap.String("mem_profile", p.config.MemProfile))

	if p.config.CPUProfile != "" {
		if err := p.startCPUProfile(); err != nil {
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
	}

	return nil
}

// Stop останавливает CPU профилирование и записывает профиль памяти
func (p *Profiler) Stop() error {
	if !p.config.Enable {
		return nil
	}

	var err error
	if stopErr := p.stopCPUProfile(); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop CPU profiling: %w", stopErr))
	}

	if p.config.MemProfile != "" {
		if memErr := p.writeMemProfile(); memErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to write memory profile: %w", memErr))
		}
	}

	p.LogMemStats()

	if err != nil {
		return fmt.Errorf("profiler shutdown errors: %w", err)
	}

	p.logger.Info("Profiler stopped")
	return nil
}

// startCPUProfile начинает CPU профилирование в файл
func (p *Profiler) startCPUProfile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	file, err := os.Create(p.config.CPUProfile)
	if err != nil {
		return fmt.Errorf("failed to create CPU profile file: %w", err)
	}

	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to start CPU profiling: %w", err)
	}
	p.cpuFile = file

	p.logger.Info("Started CPU profiling", zap.String("file", p.config.CPUProfile))

	// Автоматически останавливаем через заданное время
	if p.config.ProfileTime > 0 {
		p.timer = time.AfterFunc(p.config.ProfileTime, func() {
			if err := p.stopCPUProfile(); err != nil {
				p.logger.Error("Failed to stop CPU profiling", zap.Error(err))
			}
		})
	}

	return nil
}

// stopCPUProfile останавливает CPU профилирование
func (p *Profiler) stopCPUProfile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cpuFile == nil {
		return nil
	}

	pprof.StopCPUProfile()

	file := p.cpuFile
	p.cpuFile = nil
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close CPU profile file: %w", err)
	}

	p.logger.Info("Stopped CPU profiling", zap.String("file", p.config.CPUProfile))
	return nil
}

// writeMemProfile записывает профиль памяти в файл
func (p *Profiler) writeMemProfile() error {
	file, err := os.Create(p.config.MemProfile)
	if err != nil {
		return fmt.Errorf("failed to create memory profile file: %w", err)
	}
	defer file.Close()

	// Принудительно запускаем GC для точного профиля памяти
	runtime.GC()

	if err := pprof.WriteHeapProfile(file); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	p.logger.Info("Written memory profile", zap.String("file", p.config.MemProfile))
	return nil
}

// LogMemStats логирует статистику памяти процесса
func (p *Profiler) LogMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	p.logger.Info("Memory statistics",
		zap.Uint64("alloc_mb", m.Alloc/1024/1024),
		zap.Uint64("total_alloc_mb", m.TotalAlloc/1024/1024),
		zap.Uint64("sys_mb", m.Sys/1024/1024),
		zap.Uint32("num_gc", m.NumGC),
		zap.Int("goroutines", runtime.NumGoroutine()),
	)
}
