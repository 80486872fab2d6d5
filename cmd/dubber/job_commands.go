package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/api"
	"dubber/internal/apiclient"
	"dubber/internal/jobs"
)

var waitPollInterval = time.Second

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newJobCommand(ctx),
		newJobsCommand(ctx),
		newCancelCommand(ctx),
		newRemoveCommand(ctx),
		newResultCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var req api.SubmitRequest
	var wait bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "submit <source>",
		Short: "Queue a video for dubbing",
		Long:  "Queue a local file or URL for dubbing into --lang. With --wait the command follows the job until it finishes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			req.Source = resolveSource(args[0])
			job, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return wrapClientError(err)
			}
			if !wait {
				if asJSON {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s -> %s)\n", job.ID, job.Source, job.TargetLanguage)
				return nil
			}
			final, err := followJob(cmd.Context(), client, job, cmd.OutOrStdout(), !asJSON)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, final)
			}
			if final.Status == string(jobs.StatusFailed) {
				return fmt.Errorf("job %s failed: %s", final.ID, final.ErrorMessage)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed: %s\n", final.ID, final.ResultPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.TargetLanguage, "lang", "l", "", "Target language code (required)")
	cmd.Flags().StringVar(&req.SourceLanguage, "source-lang", "", "Source language code; detected when empty")
	cmd.Flags().StringVar(&req.AccentHint, "accent", "", "Accent hint for voice selection")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Follow the job until it finishes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

// resolveSource makes local paths absolute against the CLI's working
// directory. URLs pass through.
func resolveSource(source string) string {
	source = strings.TrimSpace(source)
	if strings.Contains(source, "://") {
		return source
	}
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return source
}

// followJob polls until job is terminal, printing each status change.
func followJob(ctx context.Context, client *apiclient.Client, job api.Job, out io.Writer, verbose bool) (api.Job, error) {
	last := ""
	for {
		if verbose && job.Status != last {
			fmt.Fprintf(out, "%-18s %3d%%\n", job.StatusLabel, job.Progress)
			last = job.Status
		}
		if jobs.Status(job.Status).IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(waitPollInterval):
		}
		next, err := client.Job(ctx, job.ID)
		if err != nil {
			return job, wrapClientError(err)
		}
		job = next
	}
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Job(cmd.Context(), args[0])
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, job)
			}
			renderJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderJob(out io.Writer, job api.Job) {
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "Source:    %s\n", job.Source)
	lang := job.TargetLanguage
	if job.SourceLanguage != "" {
		lang = job.SourceLanguage + " -> " + lang
	}
	fmt.Fprintf(out, "Language:  %s\n", lang)
	if job.AccentHint != "" {
		fmt.Fprintf(out, "Accent:    %s\n", job.AccentHint)
	}
	fmt.Fprintf(out, "Status:    %s (%d%%)\n", job.StatusLabel, job.Progress)
	if job.CancelRequested && !jobs.Status(job.Status).IsTerminal() {
		fmt.Fprintln(out, "Cancel:    requested")
	}
	fmt.Fprintf(out, "Speakers:  %d  Segments: %d  Flagged: %d  Drifted: %d\n",
		job.Counts.Speakers, job.Counts.Segments, job.Counts.FlaggedSegments, job.Counts.DriftedSegments)
	fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt)
	if job.CompletedAt != "" {
		fmt.Fprintf(out, "Finished:  %s\n", job.CompletedAt)
	}
	if job.ResultPath != "" {
		fmt.Fprintf(out, "Result:    %s\n", job.ResultPath)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				if _, ok := jobs.ParseStatus(s); !ok {
					return fmt.Errorf("unknown status %q", s)
				}
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.Jobs(cmd.Context(), statuses...)
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					job.ID,
					job.StatusLabel,
					strconv.Itoa(job.Progress) + "%",
					job.TargetLanguage,
					truncate(filepath.Base(job.Source), 40),
					job.UpdatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Progress", "Lang", "Source", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only show jobs in these statuses")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return wrapClientError(err)
			}
			out := cmd.OutOrStdout()
			if jobs.Status(job.Status).IsTerminal() {
				fmt.Fprintf(out, "Job %s cancelled\n", job.ID)
				return nil
			}
			fmt.Fprintf(out, "Cancellation requested for job %s; it stops after the current step\n", job.ID)
			return nil
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a finished job and its files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Remove(cmd.Context(), args[0]); err != nil {
				return wrapClientError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
			return nil
		},
	}
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "result <id>",
		Short: "Download the dubbed video of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			dir := "."
			target := strings.TrimSpace(output)
			if target != "" {
				if info, err := os.Stat(target); err == nil && info.IsDir() {
					dir, target = target, ""
				} else {
					dir = filepath.Dir(target)
				}
			}

			tmp, err := os.CreateTemp(dir, ".dubber-result-*")
			if err != nil {
				return fmt.Errorf("create download file: %w", err)
			}
			defer os.Remove(tmp.Name())
			name, err := client.Download(cmd.Context(), args[0], tmp)
			if closeErr := tmp.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return wrapClientError(err)
			}
			if target == "" {
				if name == "" {
					name = args[0] + ".mkv"
				}
				target = filepath.Join(dir, filepath.Base(name))
			}
			if err := os.Rename(tmp.Name(), target); err != nil {
				return fmt.Errorf("save result: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory")
	return cmd
}
