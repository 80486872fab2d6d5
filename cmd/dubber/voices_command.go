package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "voices <language>",
		Short: "List synthesis voices for a language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Voices(cmd.Context(), args[0])
			if err != nil {
				return wrapClientError(err)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Voices) == 0 {
				fmt.Fprintf(out, "No voices for %s\n", resp.Language)
				return nil
			}
			rows := make([][]string, 0, len(resp.Voices))
			for _, v := range resp.Voices {
				rows = append(rows, []string{v.ID, v.Name, v.Gender, v.Age, v.Energy, v.Accent, strings.Join(v.Languages, ",")})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Gender", "Age", "Energy", "Accent", "Languages"},
				rows, nil,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
