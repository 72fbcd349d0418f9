// Package sysinfo describes the machine a benchmark runs on.
package sysinfo

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
)

const cpuinfoUnavailable = "Could not open /proc/cpuinfo"

// Environment is the host summary printed ahead of a benchmark.
type Environment struct {
	Time      time.Time `json:"time"`
	CPUs      int       `json:"cpus"`
	CPUModel  string    `json:"cpu_model"`
	CacheSize string    `json:"cache_size"`
	Kernel    string    `json:"kernel"`
}

// Detect reads /proc/cpuinfo and the kernel release of the running host.
func Detect() Environment {
	return DetectFS(os.DirFS("/"))
}

// DetectFS is Detect with /proc resolved against fsys.
func DetectFS(fsys fs.FS) Environment {
	env := Environment{Time: time.Now(), Kernel: kernelVersion()}

	f, err := fsys.Open("proc/cpuinfo")
	if err != nil {
		env.CPUModel = cpuinfoUnavailable
		env.CacheSize = cpuinfoUnavailable
		return env
	}
	defer f.Close()

	env.CPUs, env.CPUModel, env.CacheSize = parseCPUInfo(f)
	return env
}

// parseCPUInfo counts "model name" entries and keeps the last model and
// cache size seen.
func parseCPUInfo(r io.Reader) (cpus int, model, cache string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimRight(key, "\t ")
		val = strings.TrimSpace(val)
		switch key {
		case "model name":
			cpus++
			model = val
		case "cache size":
			cache = val
		}
	}
	return cpus, model, cache
}

// Write prints env in the block layout of the benchmark report.
func (env Environment) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Environment:\n\tTime: %s\n\tCPU: %d * %s\n\tCPU Cache: %s\n\tKernel: %s\n",
		env.Time.Format(time.ANSIC), env.CPUs, env.CPUModel, env.CacheSize, env.Kernel)
	return err
}
