// Package affinity orders the machine's logical CPUs so that workers land on
// distinct physical cores before sharing hyperthread siblings, and pins
// goroutines to them.
package affinity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// SysfsCPURoot is where Linux exposes the CPU topology.
const SysfsCPURoot = "/sys/devices/system/cpu"

var ErrUnsupported = errors.New("thread pinning is not supported on this platform")

var cpuDirPattern = regexp.MustCompile(`^cpu[0-9]+$`)

// Topology is the list of logical CPUs in pinning order: the first sibling
// of every physical core, then the remaining siblings.
type Topology struct {
	CPUs     []int
	Physical int
}

// Detect reads the topology from sysfs. When sysfs is not available every
// logical CPU reported by the runtime is treated as its own core.
func Detect() *Topology {
	topo, err := DetectFS(os.DirFS(SysfsCPURoot))
	if err != nil || len(topo.CPUs) == 0 {
		return flat(runtime.NumCPU())
	}
	return topo
}

func flat(n int) *Topology {
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return &Topology{CPUs: cpus, Physical: n}
}

// DetectFS builds the topology from a filesystem laid out like
// /sys/devices/system/cpu.
func DetectFS(fsys fs.FS) (*Topology, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list cpus: %w", err)
	}

	var ids []int
	for _, e := range entries {
		if !cpuDirPattern.MatchString(e.Name()) {
			continue
		}
		id, _ := strconv.Atoi(strings.TrimPrefix(e.Name(), "cpu"))
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var primary, secondary []int
	for _, id := range ids {
		data, err := fs.ReadFile(fsys, path.Join(fmt.Sprintf("cpu%d", id), "topology", "thread_siblings_list"))
		if err != nil {
			// offline CPUs have no topology directory
			continue
		}
		siblings, err := ParseCPUList(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("cpu%d: %w", id, err)
		}
		if len(siblings) == 0 || siblings[0] == id {
			primary = append(primary, id)
		} else {
			secondary = append(secondary, id)
		}
	}

	return &Topology{
		CPUs:     append(primary, secondary...),
		Physical: len(primary),
	}, nil
}

// ParseCPUList parses the kernel list format, e.g. "0-3,8,10-11".
func ParseCPUList(s string) ([]int, error) {
	var cpus []int
	if s == "" {
		return cpus, nil
	}
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid cpu list %q", s)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(hi); err != nil || last < first {
				return nil, fmt.Errorf("invalid cpu range %q", part)
			}
		}
		for c := first; c <= last; c++ {
			cpus = append(cpus, c)
		}
	}
	sort.Ints(cpus)
	return cpus, nil
}

// CPU returns the logical CPU for the given worker, round-robin.
func (t *Topology) CPU(worker int) int {
	return t.CPUs[worker%len(t.CPUs)]
}

func (t *Topology) String() string {
	parts := make([]string, len(t.CPUs))
	for i, c := range t.CPUs {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}
