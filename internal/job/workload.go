// Package job describes simulated workloads: batches of tasks with virtual
// arrival times that are replayed into a scheduling engine.
package job

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"

	"dualsched/internal/sched"
)

// Spec is one task of a workload file.
type Spec struct {
	Name     string `yaml:"name"`
	Strategy string `yaml:"strategy"` // empty = the engine's selected strategy
	BurstMS  int64  `yaml:"burst_ms"`
	Nice     int    `yaml:"nice"`
	Class    string `yaml:"class"`  // fg (by default)
	Policy   string `yaml:"policy"` // ts (by default)
	AtMS     int64  `yaml:"at_ms"`
}

// Workload mirrors a workload YAML file.
type Workload struct {
	Tasks []Spec `yaml:"tasks"`
}

// Load reads a workload file.
func Load(path string) (Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workload{}, err
	}
	return Parse(data)
}

// Parse decodes a workload document.
func Parse(data []byte) (Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Workload{}, fmt.Errorf("parse workload: %w", err)
	}
	return w, nil
}

type resolved struct {
	spec   Spec
	kind   sched.Kind
	class  sched.Class
	policy sched.Policy
}

// Submit validates every task first and only then creates them, so a bad
// entry leaves the engine untouched.
func (w Workload) Submit(e *sched.Engine) ([]sched.TaskID, error) {
	batch := make([]resolved, 0, len(w.Tasks))
	for i, spec := range w.Tasks {
		r, err := resolve(spec, e.Selected())
		if err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, spec.Name, err)
		}
		batch = append(batch, r)
	}

	ids := make([]sched.TaskID, 0, len(batch))
	for _, r := range batch {
		id, err := e.CreateTaskAt(r.spec.Name, r.spec.BurstMS, r.spec.Nice, r.policy, r.class, r.kind, r.spec.AtMS)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func resolve(spec Spec, fallback sched.Kind) (resolved, error) {
	r := resolved{spec: spec, kind: fallback, policy: sched.PolicyTimeSharing, class: sched.ClassForeground}

	var err error
	if spec.Strategy != "" {
		if r.kind, err = sched.ParseKind(spec.Strategy); err != nil {
			return r, err
		}
	}
	if spec.Policy != "" {
		if r.policy, err = sched.ParsePolicy(spec.Policy); err != nil {
			return r, err
		}
	}
	if spec.Class != "" {
		if r.class, err = r.kind.ParseClass(spec.Class); err != nil {
			return r, err
		}
	}
	if _, err := sched.NewTask(0, spec.Name, spec.BurstMS, spec.Nice, r.policy, r.class); err != nil {
		return r, err
	}
	return r, nil
}
