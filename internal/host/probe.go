// Package host reads live process signals from the operating system and
// applies class decisions to it.
package host

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// systemUIDLimit: processes owned by a uid below it are system services.
const systemUIDLimit = 1000

// Probe implements importance.Probe with gopsutil.
type Probe struct {
	lowMemoryPercent float64

	mu    sync.Mutex
	procs map[int32]*process.Process // kept so CPU percent is measured between calls

	// focus returns the pid owning the focused window. Replaced in tests.
	focus func() (int32, bool)
}

// NewProbe creates a probe that reports memory pressure when available
// memory drops below lowMemoryPercent.
func NewProbe(lowMemoryPercent float64) *Probe {
	return &Probe{
		lowMemoryPercent: lowMemoryPercent,
		procs:            make(map[int32]*process.Process),
		focus:            xdotoolFocus,
	}
}

func (p *Probe) proc(pid int32) (*process.Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr, ok := p.procs[pid]; ok {
		return pr, nil
	}
	pr, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	p.procs[pid] = pr
	return pr, nil
}

func (p *Probe) drop(pid int32) {
	p.mu.Lock()
	delete(p.procs, pid)
	p.mu.Unlock()
}

func (p *Probe) FocusedProcess() (int32, bool) { return p.focus() }

func (p *Probe) Parent(pid int32) (int32, bool) {
	pr, err := p.proc(pid)
	if err != nil {
		return 0, false
	}
	ppid, err := pr.Ppid()
	if err != nil || ppid <= 0 {
		return 0, false
	}
	return ppid, true
}

func (p *Probe) Exists(pid int32) bool {
	ok, err := process.PidExists(pid)
	if err != nil || !ok {
		p.drop(pid)
		return false
	}
	return true
}

func (p *Probe) Processes() ([]int32, error) { return process.Pids() }

func (p *Probe) Describe(pid int32) (string, string, error) {
	pr, err := p.proc(pid)
	if err != nil {
		return "", "", err
	}
	name, err := pr.Name()
	if err != nil {
		return "", "", err
	}
	cmdline, _ := pr.Cmdline()
	return name, cmdline, nil
}

// CPUPercent is the CPU use since the previous call for pid; the first call
// reports 0.
func (p *Probe) CPUPercent(pid int32) (float64, error) {
	pr, err := p.proc(pid)
	if err != nil {
		return 0, err
	}
	return pr.Percent(0)
}

func (p *Probe) MemoryKB(pid int32) (int64, error) {
	pr, err := p.proc(pid)
	if err != nil {
		return 0, err
	}
	info, err := pr.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return int64(info.RSS / 1024), nil
}

// ProducingAudio reports an open sound device.
func (p *Probe) ProducingAudio(pid int32) bool {
	return p.hasOpenFile(pid, "/dev/snd/")
}

// UsingGPU reports an open render or vendor GPU device.
func (p *Probe) UsingGPU(pid int32) bool {
	return p.hasOpenFile(pid, "/dev/dri/", "/dev/nvidia")
}

func (p *Probe) hasOpenFile(pid int32, prefixes ...string) bool {
	pr, err := p.proc(pid)
	if err != nil {
		return false
	}
	files, err := pr.OpenFiles()
	if err != nil {
		return false
	}
	for _, f := range files {
		for _, prefix := range prefixes {
			if strings.HasPrefix(f.Path, prefix) {
				return true
			}
		}
	}
	return false
}

// UsingNetwork reports any connection with a remote end.
func (p *Probe) UsingNetwork(pid int32) bool {
	pr, err := p.proc(pid)
	if err != nil {
		return false
	}
	conns, err := pr.Connections()
	if err != nil {
		return false
	}
	for _, c := range conns {
		if c.Raddr.Port != 0 {
			return true
		}
	}
	return false
}

func (p *Probe) SystemService(pid int32) bool {
	pr, err := p.proc(pid)
	if err != nil {
		return false
	}
	uids, err := pr.Uids()
	if err != nil || len(uids) == 0 {
		return false
	}
	return uids[0] < systemUIDLimit
}

func (p *Probe) MemoryPressure() bool {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return false
	}
	return availablePercent(vm.Available, vm.Total) < p.lowMemoryPercent
}

func availablePercent(available, total uint64) float64 {
	return float64(available) / float64(total) * 100
}

// xdotoolFocus asks the X server for the active window's pid. No display or
// no xdotool means no focus.
func xdotoolFocus() (int32, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow", "getwindowpid").Output()
	if err != nil {
		return 0, false
	}
	return parsePID(string(out))
}

func parsePID(s string) (int32, bool) {
	pid, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return int32(pid), true
}
