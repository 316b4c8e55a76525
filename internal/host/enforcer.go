package host

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

// CgroupEnforcer implements importance.Enforcer on cgroup v2 and
// /proc/<pid>/oom_score_adj.
type CgroupEnforcer struct {
	procRoot string // /proc (by default)
	log      *logrus.Entry
}

// NewCgroupEnforcer creates an enforcer writing to the live system.
func NewCgroupEnforcer(log *logrus.Entry) *CgroupEnforcer {
	return &CgroupEnforcer{procRoot: "/proc", log: log}
}

// Setup creates every group directory; existing ones are kept.
func (e *CgroupEnforcer) Setup(groups []string) error {
	var errs []error
	for _, g := range groups {
		if err := os.MkdirAll(g, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create group %s: %w", g, err))
			continue
		}
		e.log.WithField("group", g).Debug("resource group ready")
	}
	return errors.Join(errs...)
}

func (e *CgroupEnforcer) AssignGroup(group string, pid int32) error {
	return writeValue(filepath.Join(group, "cgroup.procs"), strconv.Itoa(int(pid)))
}

func (e *CgroupEnforcer) SetKillPriority(pid int32, value int) error {
	path := filepath.Join(e.procRoot, strconv.Itoa(int(pid)), "oom_score_adj")
	return writeValue(path, strconv.Itoa(value))
}

// Launch starts argv detached from the monitor's stdin.
func (e *CgroupEnforcer) Launch(argv []string) (int32, error) {
	return launch(argv)
}

func (e *CgroupEnforcer) Terminate(pid int32) error {
	return terminate(pid)
}

// writeValue writes to an existing kernel file; it never creates one.
func writeValue(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func launch(argv []string) (int32, error) {
	if len(argv) == 0 {
		return 0, errors.New("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := int32(cmd.Process.Pid)
	// reap the child so it does not linger as a zombie after exit
	go cmd.Wait()
	return pid, nil
}

func terminate(pid int32) error {
	pr, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return pr.Terminate()
}

// DryRunEnforcer logs every decision and applies none, except Launch which
// still starts the program.
type DryRunEnforcer struct {
	log *logrus.Entry
}

func NewDryRunEnforcer(log *logrus.Entry) *DryRunEnforcer {
	return &DryRunEnforcer{log: log}
}

func (e *DryRunEnforcer) Setup(groups []string) error {
	for _, g := range groups {
		e.log.WithField("group", g).Info("would create resource group")
	}
	return nil
}

func (e *DryRunEnforcer) AssignGroup(group string, pid int32) error {
	e.log.WithFields(logrus.Fields{"pid": pid, "group": group}).Info("would assign resource group")
	return nil
}

func (e *DryRunEnforcer) SetKillPriority(pid int32, value int) error {
	e.log.WithFields(logrus.Fields{"pid": pid, "oom_score": value}).Info("would set kill priority")
	return nil
}

func (e *DryRunEnforcer) Launch(argv []string) (int32, error) {
	return launch(argv)
}

func (e *DryRunEnforcer) Terminate(pid int32) error {
	e.log.WithField("pid", pid).Info("would terminate process")
	return nil
}
