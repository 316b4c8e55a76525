// Package shell is the interactive command interpreter of the simulator.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"dualsched/internal/job"
	"dualsched/internal/sched"
)

// Prompt is printed before every command.
const Prompt = "scheduler> "

var errUsage = errors.New("usage")

// DefaultPace is the wall time per tick of a bare play command.
const DefaultPace = 50 * time.Millisecond

// Shell reads commands line by line and applies them to an engine.
type Shell struct {
	engine *sched.Engine
	in     io.Reader
	out    io.Writer
	ctx    context.Context
}

// New creates a shell over engine.
func New(engine *sched.Engine, in io.Reader, out io.Writer) *Shell {
	return &Shell{engine: engine, in: in, out: out, ctx: context.Background()}
}

// Run reads commands until exit, end of input or cancellation.
func (s *Shell) Run(ctx context.Context) error {
	s.ctx = ctx
	fmt.Fprintln(s.out, "dualsched: comparing priority-queue and strict-class scheduling")
	fmt.Fprintln(s.out, "Type 'help' for available commands")

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		errc <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(s.out, Prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return <-errc
			}
			if quit := s.Exec(line); quit {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
// Rejected commands print the violated constraint.
func (s *Shell) Exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "help":
		s.help()
	case "exit", "quit":
		fmt.Fprintln(s.out, "Exiting simulator.")
		return true
	case "create":
		err = s.create(args)
	case "run":
		err = s.run(args)
	case "run_linux":
		err = s.run([]string{"pq"})
	case "run_android":
		err = s.run([]string{"strict"})
	case "step":
		err = s.step(args)
	case "play":
		err = s.play(args)
	case "next":
		err = s.next(args)
	case "ts":
		err = s.tasks(args)
	case "use":
		err = s.use(args)
	case "status":
		err = s.status(args)
	case "stats":
		err = s.stats(args)
	case "load":
		err = s.load(args)
	default:
		err = fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func (s *Shell) help() {
	fmt.Fprint(s.out, `Commands:
  create <name> <burst_ms> <nice> [strategy] [class] [policy]
                      add a task arriving now
  run [strategy]      run until every task has completed, then print stats
  step [ms]           advance the selected strategy (default one tick)
  next [strategy]     show the task that runs now
  play [pace_ms]      run the selected strategy one tick per pace_ms of wall time
  ts [strategy]       list tasks
  use <strategy>      select the default strategy
  status [strategy]   show the running task and the ready queues
  stats [strategy]    show per-task statistics and averages
  load <file>         submit a workload file
  help                show this text
  exit | quit         leave the simulator

Strategies: pq|linux, strict|android
Classes:    pq: fg|bg|daemon|empty   strict: fg|vis|svc|bg|cache
Policies:   fifo|rr|ts|idle|deadline
`)
}

// kindArg resolves an optional strategy argument.
func (s *Shell) kindArg(args []string, i int) (sched.Kind, error) {
	if len(args) <= i {
		return s.engine.Selected(), nil
	}
	return sched.ParseKind(args[i])
}

func (s *Shell) create(args []string) error {
	if len(args) < 3 || len(args) > 6 {
		return fmt.Errorf("%w: create <name> <burst_ms> <nice> [strategy] [class] [policy]", errUsage)
	}
	burst, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("burst %q is not a number", args[1])
	}
	nice, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("nice %q is not a number", args[2])
	}
	kind, err := s.kindArg(args, 3)
	if err != nil {
		return err
	}
	class := sched.ClassForeground
	if len(args) > 4 {
		if class, err = kind.ParseClass(args[4]); err != nil {
			return err
		}
	}
	policy := sched.PolicyTimeSharing
	if len(args) > 5 {
		if policy, err = sched.ParsePolicy(args[5]); err != nil {
			return err
		}
	}

	id, err := s.engine.CreateTask(args[0], burst, nice, policy, class, kind)
	if err != nil {
		return err
	}
	t, err := s.engine.Task(kind, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "created task %d %q on %s: class=%s policy=%s priority=%d\n",
		t.ID, t.Name, kind, t.Class, t.Policy, t.Priority)
	return nil
}

func (s *Shell) run(args []string) error {
	kind, err := s.kindArg(args, 0)
	if err != nil {
		return err
	}
	if err := s.engine.RunToCompletion(kind); err != nil {
		return err
	}
	now, _ := s.engine.Now(kind)
	fmt.Fprintf(s.out, "%s: all tasks completed at %d ms\n", kind, now)
	return s.stats([]string{kind.String()})
}

func (s *Shell) step(args []string) error {
	ms := int64(s.engine.Config().TickMS)
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("step %q is not a number", args[0])
		}
		ms = v
	}
	kind := s.engine.Selected()
	if err := s.engine.Advance(kind, ms); err != nil {
		return err
	}
	return s.status(nil)
}

func (s *Shell) next(args []string) error {
	kind, err := s.kindArg(args, 0)
	if err != nil {
		return err
	}
	t, ok, err := s.engine.Next(kind)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(s.out, "%s: idle\n", kind)
		return nil
	}
	fmt.Fprintf(s.out, "%s: next %d %s (prio %d, %d ms left)\n", kind, t.ID, t.Name, t.Priority, t.Remaining)
	return nil
}

func (s *Shell) play(args []string) error {
	pace := DefaultPace
	if len(args) > 0 {
		ms, err := strconv.Atoi(args[0])
		if err != nil || ms <= 0 {
			return fmt.Errorf("pace %q must be a positive number of ms", args[0])
		}
		pace = time.Duration(ms) * time.Millisecond
	}
	kind := s.engine.Selected()
	if err := s.engine.Run(s.ctx, kind, pace); err != nil {
		return err
	}
	return s.status(nil)
}

func (s *Shell) use(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: use <strategy>", errUsage)
	}
	kind, err := sched.ParseKind(args[0])
	if err != nil {
		return err
	}
	if err := s.engine.Select(kind); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "using %s\n", kind)
	return nil
}

func (s *Shell) tasks(args []string) error {
	kind, err := s.kindArg(args, 0)
	if err != nil {
		return err
	}
	tasks, err := s.engine.Tasks(kind)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintf(s.out, "%s: no tasks\n", kind)
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tCLASS\tPOLICY\tNICE\tPRIO\tBURST\tREMAINING\tWAIT")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			t.ID, t.Name, t.State, t.Class, t.Policy, t.Nice, t.Priority, t.Burst, t.Remaining, t.Wait)
	}
	return tw.Flush()
}

func (s *Shell) status(args []string) error {
	kind, err := s.kindArg(args, 0)
	if err != nil {
		return err
	}
	snap, err := s.engine.Snapshot(kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "[%s] t=%d ms  ready=%d  completed=%d\n", snap.Name, snap.Now, snap.Ready, snap.Completed)
	if snap.Running != nil {
		r := snap.Running
		fmt.Fprintf(s.out, "  running: %d %s (%s, prio %d, %d ms left)\n", r.ID, r.Name, r.Class, r.Priority, r.Remaining)
	} else {
		fmt.Fprintln(s.out, "  running: idle")
	}
	for _, q := range snap.Queues {
		names := make([]string, 0, len(q.Tasks))
		for _, t := range q.Tasks {
			names = append(names, fmt.Sprintf("%d:%s", t.ID, t.Name))
		}
		fmt.Fprintf(s.out, "  %-10s [%s]\n", q.Name, strings.Join(names, " "))
	}
	return nil
}

func (s *Shell) stats(args []string) error {
	kind, err := s.kindArg(args, 0)
	if err != nil {
		return err
	}
	st, err := s.engine.Stats(kind)
	if err != nil {
		return err
	}
	if len(st.Records) == 0 {
		fmt.Fprintf(s.out, "%s: no completed tasks\n", kind)
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCLASS\tPOLICY\tARRIVAL\tSTART\tFINISH\tWAIT\tRESPONSE\tTURNAROUND\tPREEMPT")
	for _, r := range st.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.Name, r.ClassName, r.PolicyName, r.Arrival, r.Start, r.Completion, r.Wait, r.Response, r.Turnaround, r.Preemptions)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "avg wait %.1f ms, avg response %.1f ms, avg turnaround %.1f ms, preemptions %d\n",
		st.AvgWait, st.AvgResponse, st.AvgTurnaround, st.Preemptions)
	return nil
}

func (s *Shell) load(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: load <file>", errUsage)
	}
	w, err := job.Load(args[0])
	if err != nil {
		return err
	}
	ids, err := w.Submit(s.engine)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "submitted %d tasks\n", len(ids))
	return nil
}
