package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safexl/safexl/internal/infrastructure/config"
	"github.com/safexl/safexl/internal/infrastructure/monitoring"
	"github.com/safexl/safexl/internal/logging"
	"github.com/safexl/safexl/internal/pidtrack"
	"github.com/safexl/safexl/internal/process"
)

// Inspector is the process-table view the commands need.
type Inspector interface {
	IsHostRunning() (bool, error)
	KillAllHostInstances() (int, error)
	OpenFiles() ([]string, error)
	pidtrack.Killer
}

// Tracker reads and clears PID records left by sessions.
type Tracker interface {
	List() (map[string]int32, error)
	KillTracked(k pidtrack.Killer) (int, error)
}

// Deps are the collaborators of every command.
type Deps struct {
	Inspector Inspector
	Tracker   Tracker
	Metrics   *monitoring.Metrics
	Registry  *prometheus.Registry
	Logger    *logging.Logger
}

type globalFlags struct {
	dev         bool
	metricsFile string
}

// newDeps builds the real collaborators from the environment.
func newDeps(flags globalFlags) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development}
	if flags.dev {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	dir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	return &Deps{
		Inspector: process.NewInspector(cfg.Host.ProcessName,
			process.WithKillWait(cfg.Host.KillWait),
			process.WithLogger(logger),
		),
		Tracker:  pidtrack.New(dir),
		Metrics:  monitoring.NewMetrics(reg),
		Registry: reg,
		Logger:   logger,
	}, nil
}

func newRootCmd(build func(globalFlags) (*Deps, error)) *cobra.Command {
	var (
		flags globalFlags
		deps  *Deps
	)

	root := &cobra.Command{
		Use:   "safexl",
		Short: "Clean up spreadsheet host processes",
		Long: `safexl finds and kills spreadsheet host processes left behind by
automation sessions that did not finish their teardown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			d, err := build(flags)
			if err != nil {
				return err
			}
			deps = d
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = deps.Logger.Sync()
			if flags.metricsFile == "" || deps.Registry == nil {
				return nil
			}
			if err := prometheus.WriteToTextfile(flags.metricsFile, deps.Registry); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&flags.dev, "dev", false, "console logs at debug level")
	root.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "write metrics to this file in Prometheus text format")

	get := func() *Deps { return deps }
	root.AddCommand(
		newStatusCmd(get),
		newKillTrackedCmd(get),
		newKillAllCmd(get),
		newOpenFilesCmd(get),
	)
	return root
}

func logKilled(d *Deps, reason string, n int) {
	d.Metrics.HostsTerminatedAdd(reason, n)
	d.Logger.Info("Killed host processes", zap.String("reason", reason), zap.Int("count", n))
}
