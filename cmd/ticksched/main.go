package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"dualsched/internal/api"
	"dualsched/internal/config"
	"dualsched/internal/job"
	"dualsched/internal/logging"
	"dualsched/internal/sched"
	"dualsched/internal/shell"
	"dualsched/internal/store"
)

func main() {
	// Read the configuration
	opts, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New("ticksched", opts.File.LogLevel)

	if err := run(opts, log); err != nil {
		log.WithError(err).Error("ticksched failed")
		os.Exit(1)
	}
}

func run(opts config.Options, log *logrus.Entry) error {
	cfg := opts.File
	engineOpts := []sched.Option{sched.WithLogger(log)}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		engineOpts = append(engineOpts, sched.WithRecorder(st))
		log.WithFields(logrus.Fields{"db": cfg.DBPath, "run_id": st.RunID()}).Info("recording completed tasks")
	}
	if cfg.CSVPath != "" {
		events, err := sched.NewEventLog(cfg.CSVPath)
		if err != nil {
			return err
		}
		defer events.Close()
		engineOpts = append(engineOpts, sched.WithEventLog(events))
	}

	engine := sched.NewEngine(cfg.Scheduler, engineOpts...)

	if opts.Workload != "" {
		w, err := job.Load(opts.Workload)
		if err != nil {
			return err
		}
		ids, err := w.Submit(engine)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"workload": opts.Workload, "tasks": len(ids)}).Info("workload submitted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Serve {
		return api.Serve(ctx, cfg.HTTPAddr, api.NewRouter(engine, nil, log), log)
	}
	return shell.New(engine, os.Stdin, os.Stdout).Run(ctx)
}
