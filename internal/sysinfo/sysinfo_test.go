package sysinfo

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

const sampleCPUInfo = `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz
cache size	: 28160 KB

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz
cache size	: 28160 KB
flags		:
`

func TestParseCPUInfo(t *testing.T) {
	cpus, model, cache := parseCPUInfo(strings.NewReader(sampleCPUInfo))
	if cpus != 2 {
		t.Errorf("Expected 2 CPUs, got %d", cpus)
	}
	if model != "Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz" {
		t.Errorf("Unexpected model %q", model)
	}
	if cache != "28160 KB" {
		t.Errorf("Unexpected cache size %q", cache)
	}
}

func TestDetectFS(t *testing.T) {
	fsys := fstest.MapFS{
		"proc/cpuinfo": &fstest.MapFile{Data: []byte(sampleCPUInfo)},
	}
	env := DetectFS(fsys)
	if env.CPUs != 2 {
		t.Errorf("Expected 2 CPUs, got %d", env.CPUs)
	}
	if env.Kernel == "" {
		t.Error("Expected a kernel description")
	}
}

func TestDetectFS_Missing(t *testing.T) {
	env := DetectFS(fstest.MapFS{})
	if env.CPUs != 0 {
		t.Errorf("Expected 0 CPUs, got %d", env.CPUs)
	}
	if env.CPUModel != cpuinfoUnavailable || env.CacheSize != cpuinfoUnavailable {
		t.Errorf("Expected unavailable markers, got %q / %q", env.CPUModel, env.CacheSize)
	}
}

func TestEnvironment_Write(t *testing.T) {
	env := Environment{
		Time:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CPUs:      4,
		CPUModel:  "Test CPU",
		CacheSize: "1024 KB",
		Kernel:    "Linux 6.1.0",
	}

	var buf bytes.Buffer
	if err := env.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "Environment:\n" +
		"\tTime: Fri Mar  1 12:00:00 2024\n" +
		"\tCPU: 4 * Test CPU\n" +
		"\tCPU Cache: 1024 KB\n" +
		"\tKernel: Linux 6.1.0\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
