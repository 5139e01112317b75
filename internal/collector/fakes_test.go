package collector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"mac_health/internal/errs"
	"mac_health/internal/runner"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// fakeRunner отдает заранее заданный вывод по имени утилиты
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]*runner.Result
	errors  map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]*runner.Result),
		errors:  make(map[string]error),
	}
}

func (f *fakeRunner) on(name string, res *runner.Result) *fakeRunner {
	f.outputs[name] = res
	return f
}

func (f *fakeRunner) fail(name string, err error) *fakeRunner {
	f.errors[name] = err
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (*runner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	if err, ok := f.errors[name]; ok {
		return nil, err
	}
	if res, ok := f.outputs[name]; ok {
		return res, nil
	}
	return nil, errs.Wrap(errs.SpawnFailed, "run", errors.New("executable file not found"), "Failed to run "+name)
}

// fakeSystem фиксированные снимки системной библиотеки
type fakeSystem struct {
	mu sync.Mutex

	model      string
	cores      int
	perCPU     []float64
	load       *load.AvgStat
	loadErr    error
	vm         *mem.VirtualMemoryStat
	vmSeq      []*mem.VirtualMemoryStat
	partitions []disk.PartitionStat
	usage      map[string]*disk.UsageStat
	uptime     uint64

	modelCalls int
}

func (f *fakeSystem) CPUModel(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelCalls++
	return f.model, nil
}

func (f *fakeSystem) CPUCount(context.Context) (int, error) {
	return f.cores, nil
}

func (f *fakeSystem) PerCPUPercent(context.Context, time.Duration) ([]float64, error) {
	return f.perCPU, nil
}

func (f *fakeSystem) LoadAvg(context.Context) (*load.AvgStat, error) {
	return f.load, f.loadErr
}

func (f *fakeSystem) VirtualMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.vmSeq) > 0 {
		vm := f.vmSeq[0]
		if len(f.vmSeq) > 1 {
			f.vmSeq = f.vmSeq[1:]
		}
		return vm, nil
	}
	if f.vm == nil {
		return nil, errors.New("no memory stats")
	}
	return f.vm, nil
}

func (f *fakeSystem) Partitions(context.Context) ([]disk.PartitionStat, error) {
	return f.partitions, nil
}

func (f *fakeSystem) Usage(_ context.Context, path string) (*disk.UsageStat, error) {
	if u, ok := f.usage[path]; ok {
		return u, nil
	}
	return nil, errors.New("no such mount")
}

func (f *fakeSystem) Uptime(context.Context) (uint64, error) {
	return f.uptime, nil
}
