package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/crawlsend/internal/constants"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			doc, err := a.loadDoc()
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context(), doc)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			for _, r := range runs {
				ended := "-"
				if !r.EndedAt.IsZero() {
					ended = r.EndedAt.Local().Format("2006-01-02 15:04:05")
				}
				_, _ = fmt.Fprintf(out, "%-36s  %-19s  %4d  %s  %s\n",
					r.ID, ended, r.ExitCode, statusColor(r.Status).Sprintf("%-10s", r.Status), r.URL)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", constants.DefaultHistoryLimit, "show up to N latest runs")
	return cmd
}
