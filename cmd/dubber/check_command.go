package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubber/internal/deps"
	"dubber/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify external tools, directories and remote APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := useColor(out)

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			failures := len(deps.Missing(statuses))
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				state := "ok"
				switch {
				case st.Available:
				case st.Optional:
					state = "missing (optional)"
				default:
					state = "missing"
				}
				rows = append(rows, []string{st.Name, state, st.Detail, st.Description})
			}
			fmt.Fprintln(out, "Dependencies")
			fmt.Fprintln(out, renderTable([]string{"Tool", "State", "Detail", "Used for"}, rows, nil))

			var results []preflight.Result
			if offline {
				results = preflight.RunLocal(cfg)
			} else {
				results = preflight.RunAll(cmd.Context(), cfg)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Preflight")
			for _, r := range results {
				fmt.Fprintln(out, renderCheckLine(r.Name, stateFor(r.Passed), r.Detail, color))
			}
			failures += len(preflight.Failed(results))

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the remote API checks")
	return cmd
}
