package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/api"
	"dubber/internal/apiclient"
	"dubber/internal/daemonctl"
	"dubber/internal/daemonrun"
)

const (
	startTimeout = 15 * time.Second
	stopGrace    = 30 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newServeCommand(ctx),
		newStartCommand(ctx),
		newStopCommand(ctx),
		newStatusCommand(ctx),
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			state, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, ctx.configPath, startTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if state == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintln(out, "Daemon is already running")
				return nil
			}
			fmt.Fprintln(out, "Daemon started")
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(daemonctl.PIDPath(cfg), cfg.LockPath(), stopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon (pid %d) did not exit in time and was killed\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon (pid %d) stopped\n", result.PID)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			health, err := client.Health(cmd.Context())
			if err != nil {
				if apiclient.IsUnavailable(err) {
					fmt.Fprintln(out, "Daemon is not running")
					return nil
				}
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, struct {
					Health api.HealthResponse `json:"health"`
					Stats  api.StatsResponse  `json:"stats"`
				}{health, stats})
			}
			renderStatus(cmd, health, stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, health api.HealthResponse, stats api.StatsResponse) {
	out := cmd.OutOrStdout()
	color := useColor(out)

	fmt.Fprintln(out, "Daemon")
	fmt.Fprintln(out, renderCheckLine("Running", stateFor(health.Running), "pid "+strconv.Itoa(health.PID), color))
	fmt.Fprintln(out, renderCheckLine("Ready", stateFor(health.Ready), "", color))
	db := health.Database
	dbDetail := fmt.Sprintf("schema v%d, %d jobs", db.SchemaVersion, db.TotalJobs)
	if db.Error != "" {
		dbDetail = db.Error
	}
	fmt.Fprintln(out, renderCheckLine("Database", stateFor(db.IntegrityCheck), dbDetail, color))
	for _, st := range health.Stages {
		fmt.Fprintln(out, renderCheckLine("Stage "+st.Name, stateFor(st.Ready), st.Detail, color))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Queue depth: %d  Active: %d  Total: %d\n", health.QueueDepth, health.ActiveJobs, stats.Total)
	if len(stats.Counts) > 0 {
		keys := make([]string, 0, len(stats.Counts))
		for k := range stats.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, strconv.Itoa(stats.Counts[k])})
		}
		fmt.Fprintln(out, renderTable([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func stateFor(ok bool) checkState {
	if ok {
		return checkOK
	}
	return checkFail
}
