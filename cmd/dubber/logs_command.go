package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/apiclient"
	"dubber/internal/joblog"
	"dubber/internal/jobs"
)

const followWaitSeconds = 10

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var raw bool
	var lines int
	var stage string
	var level string

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Show a job's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			id := args[0]
			out := cmd.OutOrStdout()

			q := apiclient.LogQuery{Offset: -1, Limit: lines, Stage: stage, Level: level}
			if lines <= 0 {
				q.Offset, q.Limit = 0, 0
			}
			for {
				page, err := client.Log(cmd.Context(), id, q)
				if err != nil {
					return wrapClientError(err)
				}
				for _, line := range page.Lines {
					printLogLine(out, line, raw)
				}
				if !follow {
					return nil
				}
				if len(page.Lines) == 0 {
					job, err := client.Job(cmd.Context(), id)
					if err != nil {
						return wrapClientError(err)
					}
					if jobs.Status(job.Status).IsTerminal() {
						return nil
					}
				}
				q = apiclient.LogQuery{
					Offset: page.Offset,
					Follow: true,
					Wait:   followWaitSeconds,
					Stage:  stage,
					Level:  level,
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until the job finishes")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show (0 for all)")
	cmd.Flags().StringVar(&stage, "stage", "", "Only show lines from this stage")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw JSON lines")
	return cmd
}

func printLogLine(out io.Writer, line string, raw bool) {
	entry, ok := joblog.Parse(line)
	if raw || !ok {
		fmt.Fprintln(out, line)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s", entry.Time, strings.ToUpper(entry.Level))
	if entry.Stage != "" {
		b.WriteString(" [" + entry.Stage + "]")
	}
	b.WriteString(" " + entry.Msg)
	fmt.Fprintln(out, b.String())
}
