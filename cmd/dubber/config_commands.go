package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/config"
)

const credentialHint = "Set llm.api_key, synthesis.api_key and diarization.hf_token " +
	"(or export OPENROUTER_API_KEY, ELEVENLABS_API_KEY, HF_TOKEN) before submitting jobs."

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or scaffold the configuration file"}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		dest  string
		force bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample config",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := resolveInitTarget(dest)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (pass --overwrite to replace it)", target)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, credentialHint)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "path", "p", "", "where to write the file (default ~/.config/dubber/config.toml)")
	cmd.Flags().BoolVar(&force, "overwrite", false, "replace an existing file")
	return cmd
}

func resolveInitTarget(flagValue string) (string, error) {
	if p := strings.TrimSpace(flagValue); p != "" {
		return config.ExpandPath(p)
	}
	return config.DefaultConfigPath()
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			printConfigSummary(cmd.OutOrStdout(), ctx.configPath, ctx.configSeen, cfg)
			return nil
		},
	}
}

func printConfigSummary(w io.Writer, path string, found bool, cfg *config.Config) {
	source := path
	if !found {
		source += " (not found, using defaults)"
	}
	fmt.Fprintf(w, "Config path: %s\n", source)
	fmt.Fprintf(w, "API bind:    %s\n", cfg.API.Bind)
	fmt.Fprintf(w, "Work dir:    %s\n", cfg.Paths.WorkDir)
	fmt.Fprintf(w, "Output dir:  %s\n", cfg.Paths.OutputDir)
	fmt.Fprintln(w, "Configuration valid")
}
