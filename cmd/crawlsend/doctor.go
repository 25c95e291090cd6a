package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loykin/crawlsend/internal/doctor"
)

// newDoctor is replaced in tests.
var newDoctor = func() *doctor.Doctor { return &doctor.Doctor{} }

func (a *app) doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the crawler executable, Chrome and the run log location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadDoc()
			if err != nil {
				return err
			}
			opts, err := a.resolveOptions(cmd.Context(), cmd, doc)
			if err != nil {
				return err
			}
			checks := newDoctor().Run(cmd.Context(), doctor.Target{
				ExecutablePath: opts.ExecutablePath,
				ChromePath:     opts.ChromePath,
				LogFile:        doc.Log.File,
			})

			ok := color.New(color.FgGreen).Sprint("ok")
			fail := color.New(color.FgRed).Sprint("FAIL")
			skip := color.New(color.FgYellow).Sprint("skip")
			for _, c := range checks {
				mark := ok
				switch {
				case c.Skip:
					mark = skip
				case !c.OK:
					mark = fail
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-10s %s\n", mark, c.Name, c.Detail)
			}
			if !doctor.Healthy(checks) {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}
	addCrawlerFlags(cmd)
	return cmd
}
