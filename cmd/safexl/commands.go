package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/safexl/safexl/internal/infrastructure/monitoring"
	"github.com/safexl/safexl/internal/shared/id"
)

func newStatusCmd(deps func() *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show running hosts and PID records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps()
			running, err := d.Inspector.IsHostRunning()
			if err != nil {
				return fmt.Errorf("inspect processes: %w", err)
			}
			out := cmd.OutOrStdout()
			state := "no"
			if running {
				state = "yes"
			}
			fmt.Fprintf(out, "host running: %s\n", state)

			records, err := d.Tracker.List()
			if err != nil {
				return fmt.Errorf("read PID records: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "tracked hosts: none")
				return nil
			}
			ids := make([]string, 0, len(records))
			for sid := range records {
				ids = append(ids, sid)
			}
			sort.Strings(ids)
			fmt.Fprintf(out, "tracked hosts: %d\n", len(ids))
			for _, sid := range ids {
				fmt.Fprintf(out, "  %s\tpid %d", sid, records[sid])
				if started, ok := sessionStart(sid); ok {
					fmt.Fprintf(out, "\tstarted %s", started.Format(time.RFC3339))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// sessionStart reads the creation time encoded in a session ID.
func sessionStart(sessionID string) (time.Time, bool) {
	sid := id.SessionID(sessionID)
	if !sid.IsValid() {
		return time.Time{}, false
	}
	ts, err := sid.Timestamp()
	return ts, err == nil
}

func newKillTrackedCmd(deps func() *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "kill-tracked",
		Short: "Kill hosts left behind by sessions",
		Long: `Kill every host process recorded by a session that never removed its
record. Hosts started by hand are never touched, and a recorded PID that now
belongs to another program is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := deps()
			n, err := d.Tracker.KillTracked(d.Inspector)
			logKilled(d, monitoring.ReasonTracked, n)
			fmt.Fprintf(cmd.OutOrStdout(), "killed %d tracked host(s)\n", n)
			return err
		},
	}
}

var errNeedForce = errors.New("kill-all also kills hosts you opened yourself; pass --force to continue")

func newKillAllCmd(deps func() *Deps) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "kill-all",
		Short: "Kill every host process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errNeedForce
			}
			d := deps()
			n, err := d.Inspector.KillAllHostInstances()
			logKilled(d, monitoring.ReasonKillAll, n)
			fmt.Fprintf(cmd.OutOrStdout(), "killed %d host(s)\n", n)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "kill without asking")
	return cmd
}

func newOpenFilesCmd(deps func() *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "open-files",
		Short: "List files held open by host processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := deps().Inspector.OpenFiles()
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return err
		},
	}
}
