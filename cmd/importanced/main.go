// importanced tracks live processes, classifies them by importance and
// enforces the class decisions.
//
// Usage:
//
//	importanced [flags]                               attach to every process
//	importanced [flags] foreground|background cmd ... launch and track cmd
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"dualsched/internal/api"
	"dualsched/internal/config"
	"dualsched/internal/host"
	"dualsched/internal/importance"
	"dualsched/internal/logging"
	"dualsched/internal/sched"
)

func main() {
	opts, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New("importanced", opts.File.LogLevel)

	if err := run(opts, log); err != nil {
		log.WithError(err).Error("importanced failed")
		os.Exit(1)
	}
}

func run(opts config.Options, log *logrus.Entry) error {
	cfg := opts.File.Monitor

	var enforcer importance.Enforcer = host.NewCgroupEnforcer(log)
	if cfg.DryRun {
		enforcer = host.NewDryRunEnforcer(log)
	}
	monitor, err := importance.NewMonitor(cfg, host.NewProbe(cfg.LowMemoryPercent), enforcer, log)
	if err != nil {
		return err
	}
	monitor.Setup()

	if err := start(monitor, opts.Args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dump := make(chan os.Signal, 1)
	signal.Notify(dump, syscall.SIGUSR1)
	defer signal.Stop(dump)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-dump:
				if err := monitor.Dump(os.Stdout); err != nil {
					log.WithError(err).Warn("failed to dump process table")
				}
			}
		}
	}()

	if opts.Serve {
		engine := sched.NewEngine(opts.File.Scheduler, sched.WithLogger(log))
		go func() {
			if err := api.Serve(ctx, opts.File.HTTPAddr, api.NewRouter(engine, monitor, log), log); err != nil {
				log.WithError(err).Error("HTTP API stopped")
			}
		}()
	}

	return monitor.Run(ctx)
}

// start launches the requested program or attaches to every process.
func start(monitor *importance.Monitor, args []string) error {
	if len(args) == 0 {
		return monitor.Attach()
	}
	if len(args) < 2 {
		return errors.New("usage: importanced [foreground|background <cmd> [args...]]")
	}
	class, err := sched.KindStrictClass.ParseClass(args[0])
	if err != nil {
		return err
	}
	if class != sched.ClassForeground && class != sched.ClassBackground {
		return fmt.Errorf("%w: launch class must be foreground or background, got %s", sched.ErrInvalidClass, args[0])
	}
	_, err = monitor.Launch(args[1:], class)
	return err
}
