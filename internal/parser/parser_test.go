package parser

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readSample(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read sample %s: %v", name, err)
	}
	return string(data)
}

func TestRegistryValue(t *testing.T) {
	text := readSample(t, "ioreg_battery.txt")

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"AppleRawCurrentCapacity", "4439", true},
		{"AppleRawMaxCapacity", "5103", true},
		{"DesignCapacity", "5600", true},
		// BatteryData содержит CycleCount=999 без пробелов, он не должен совпасть
		{"CycleCount", "312", true},
		{"Voltage", "12618", true},
		{"IsCharging", "Yes", true},
		{"DeviceName", "bq20z451", true},
		{"NoSuchKey", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := RegistryValue(text, tt.key)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("RegistryValue(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRegistryFirstMatchWins(t *testing.T) {
	text := "  \"Temperature\" = 3000\n  \"Temperature\" = 4000\n"
	if v, _ := RegistryFloat(text, "Temperature"); v != 3000 {
		t.Errorf("RegistryFloat() = %v, want 3000", v)
	}
}

func TestRegistryValueAfterLongLine(t *testing.T) {
	long := "  \"BatteryData\" = {\"DataFlash\"=<" + strings.Repeat("ab", 1<<20) + ">}"
	text := long + "\n  \"CycleCount\" = 87\n  \"IsCharging\" = Yes\n"

	if v, ok := RegistryUint(text, "CycleCount"); !ok || v != 87 {
		t.Errorf("RegistryUint(CycleCount) = %d, %v; want 87, true", v, ok)
	}
	if !RegistryBool(text, "IsCharging") {
		t.Error("IsCharging after a long line must be true")
	}
}

func TestRegistryTypedAccessors(t *testing.T) {
	text := readSample(t, "ioreg_battery_discharging.txt")

	if RegistryBool(text, "IsCharging") {
		t.Error("IsCharging = No must be false")
	}
	if RegistryBool(text, "Missing") {
		t.Error("missing key must be false")
	}
	if v, ok := RegistryUint(text, "TimeRemaining"); !ok || v != 65535 {
		t.Errorf("RegistryUint(TimeRemaining) = %d, %v", v, ok)
	}
	if _, ok := RegistryUint("\"Name\" = \"abc\"", "Name"); ok {
		t.Error("non-numeric value must not parse as uint")
	}
	if RegistryBool("\"Flag\" = 1", "Flag") != true {
		t.Error("\"1\" must be true")
	}
}

func TestParseCPUUsage(t *testing.T) {
	usage, ok := ParseCPUUsage(readSample(t, "top_l1.txt"))
	if !ok {
		t.Fatal("CPU usage line not found")
	}
	if math.Abs(usage-46.43) > 0.001 {
		t.Errorf("ParseCPUUsage() = %v, want 46.43", usage)
	}

	if _, ok := ParseCPUUsage("Load Avg: 1.0, 1.0, 1.0\n"); ok {
		t.Error("no CPU usage line must not parse")
	}
	if _, ok := ParseCPUUsage("CPU usage: 10% user, 5% sys\n"); ok {
		t.Error("line without idle must not parse")
	}
}

func TestCPUUsageOrEstimate(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		load1         float64
		want          float64
		wantEstimated bool
	}{
		{"measured", "CPU usage: 5.0% user, 5.0% sys, 90.00% idle", 7, 10, false},
		{"estimate", "", 2.5, 25, true},
		{"estimate capped", "garbage", 42, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, estimated := CPUUsageOrEstimate(tt.text, tt.load1)
			if math.Abs(got-tt.want) > 1e-9 || estimated != tt.wantEstimated {
				t.Errorf("CPUUsageOrEstimate() = %v, %v; want %v, %v", got, estimated, tt.want, tt.wantEstimated)
			}
		})
	}
}

func TestSynthesizePerCore(t *testing.T) {
	for _, usage := range []float64{0, 12.5, 50, 99, 100} {
		for _, cores := range []int{1, 4, 10, 24} {
			got := SynthesizePerCore(usage, cores)
			if len(got) != cores {
				t.Fatalf("len = %d, want %d", len(got), cores)
			}
			for i, v := range got {
				if v < PerCoreMinimumPercent || v > PerCoreMaximumPercent {
					t.Errorf("usage=%v core %d = %v out of [8,100]", usage, i, v)
				}
			}
		}
	}

	// base = 35, index 0 -> 35 + 10, index 1 -> 35 + |sin 1.5|*25 + 10
	got := SynthesizePerCore(50, 2)
	if math.Abs(got[0]-45) > 1e-9 {
		t.Errorf("core 0 = %v, want 45", got[0])
	}
	want1 := 35 + math.Abs(math.Sin(1.5))*25 + 10
	if math.Abs(got[1]-want1) > 1e-9 {
		t.Errorf("core 1 = %v, want %v", got[1], want1)
	}

	if len(SynthesizePerCore(50, 0)) != 0 {
		t.Error("zero cores must produce an empty slice")
	}
}

func TestParseCPURows(t *testing.T) {
	rows := ParseCPURows(readSample(t, "ps_cpu.txt"))
	if len(rows) != 4 {
		t.Fatalf("len = %d, want 4", len(rows))
	}
	if rows[0].PID != 412 || rows[0].Percent != 38.2 || rows[0].Name != "WindowServer" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].Name != "Google Chrome Helper (Renderer)" {
		t.Errorf("name with spaces = %q", rows[1].Name)
	}
}

func TestParseMemoryRows(t *testing.T) {
	rows := ParseMemoryRows(readSample(t, "ps_mem.txt"))
	if len(rows) != 4 {
		t.Fatalf("len = %d, want 4", len(rows))
	}
	if rows[2].PID != 2211 || rows[2].Bytes != 1203400*1024 {
		t.Errorf("rows[2] = %+v", rows[2])
	}
	if got := ExecutableName(rows[2].Path); got != "Xcode" {
		t.Errorf("ExecutableName() = %q, want Xcode", got)
	}
	if got := ExecutableName(rows[1].Path); got != "WindowServer" {
		t.Errorf("ExecutableName() = %q, want WindowServer", got)
	}
}

func TestParseProcessRowsKeepsOrder(t *testing.T) {
	rows := ParseProcessRows("1 a x\n2 b y z\nnope c w\n3 c\n", false)
	if len(rows) != 2 || rows[0].PID != 1 || rows[1].Name != "y z" {
		t.Errorf("ParseProcessRows() = %+v", rows)
	}
}

func TestParseDuKilobytes(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"123456\t/Users/me/Documents\n", 123456 * 1024},
		{"0\t/tmp/empty\n", 0},
		{"", 0},
		{"du: /nope: No such file or directory", 0},
	}
	for _, tt := range tests {
		if got := ParseDuKilobytes(tt.in); got != tt.want {
			t.Errorf("ParseDuKilobytes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
