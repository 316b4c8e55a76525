// Package config loads the dualsched configuration file and applies
// command-line overrides.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"

	"dualsched/internal/importance"
	"dualsched/internal/sched"
)

// EnvConfigPath names the config file when -config is not given.
const EnvConfigPath = "DUALSCHED_CONFIG"

// File mirrors config.yml.
type File struct {
	Scheduler sched.Config      `yaml:"scheduler"`
	Monitor   importance.Config `yaml:"monitor"`
	LogLevel  string            `yaml:"log_level"` // info (by default)
	DBPath    string            `yaml:"db_path"`   // empty = no persistence
	CSVPath   string            `yaml:"csv_path"`  // empty = no event log
	HTTPAddr  string            `yaml:"http_addr"` // :8080 (by default)
}

// Default is used when no config file is found.
func Default() File {
	return File{
		Scheduler: sched.DefaultConfig(),
		Monitor:   importance.DefaultConfig(),
		LogLevel:  "info",
		HTTPAddr:  ":8080",
	}
}

// Load reads YAML and overrides defaults; empty path or missing file =
// defaults only.
func Load(path string) (File, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// sanity clamps
func (f *File) normalize() {
	f.Scheduler.Normalize()
	f.Monitor.Normalize()
	if f.LogLevel == "" {
		f.LogLevel = "info"
	}
	if f.HTTPAddr == "" {
		f.HTTPAddr = ":8080"
	}
}

// Options is the parsed command line of a dualsched binary.
type Options struct {
	File       File
	ConfigPath string
	Workload   string   // ticksched only
	Serve      bool     // ticksched only
	Args       []string // positional arguments after the flags
}

// Parse parses the process command line. Flags take precedence over the
// config file; the file is named by -config or DUALSCHED_CONFIG.
func Parse() (Options, error) {
	return parseWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseWithFlagSet is an internal helper for testing with isolated flag sets.
func parseWithFlagSet(fs *flag.FlagSet, args []string) (Options, error) {
	var opts Options
	var (
		logLevel, dbPath, csvPath, httpAddr, strategy string
		tickMS, sliceMS, intervalMS                   int
		dryRun                                        bool
	)

	opts.ConfigPath = os.Getenv(EnvConfigPath)

	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "config file (env "+EnvConfigPath+")")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&dbPath, "db", "", "sqlite database for completed tasks")
	fs.StringVar(&csvPath, "csv", "", "CSV event log path")
	fs.StringVar(&httpAddr, "addr", "", "HTTP listen address")
	fs.StringVar(&strategy, "strategy", "", "default strategy (pq, strict)")
	fs.IntVar(&tickMS, "tick-ms", 0, "simulation quantum in ms")
	fs.IntVar(&sliceMS, "slice-ms", 0, "time slice in ms")
	fs.IntVar(&intervalMS, "interval-ms", 0, "monitor interval in ms")
	fs.BoolVar(&dryRun, "dry-run", false, "log enforcement instead of applying it")
	fs.StringVar(&opts.Workload, "workload", "", "workload file to replay")
	fs.BoolVar(&opts.Serve, "serve", false, "serve the HTTP API instead of the shell")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.Args = fs.Args()

	file, err := Load(opts.ConfigPath)
	if err != nil {
		return opts, err
	}

	// Flags override the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			file.LogLevel = logLevel
		case "db":
			file.DBPath = dbPath
		case "csv":
			file.CSVPath = csvPath
		case "addr":
			file.HTTPAddr = httpAddr
		case "strategy":
			file.Scheduler.DefaultStrategy = strategy
		case "tick-ms":
			file.Scheduler.TickMS = tickMS
		case "slice-ms":
			file.Scheduler.SliceMS = sliceMS
		case "interval-ms":
			file.Monitor.IntervalMS = intervalMS
		case "dry-run":
			file.Monitor.DryRun = dryRun
		}
	})
	if _, err := sched.ParseKind(file.Scheduler.DefaultStrategy); err != nil {
		return opts, fmt.Errorf("-strategy: %w", err)
	}
	file.normalize()
	opts.File = file
	return opts, nil
}
