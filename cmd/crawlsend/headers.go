package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/crawlsend/internal/sender"
)

func (a *app) headersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "headers <request-file>",
		Short: "Print the merged header object the crawler would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadDoc()
			if err != nil {
				return err
			}
			req, err := loadRequest(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := a.resolveOptions(cmd.Context(), cmd, doc)
			if err != nil {
				return err
			}
			p, err := sender.New(opts, nil, nil).Prepare(req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "json:     %s\n", p.Headers.JSON())
			_, _ = fmt.Fprintf(out, "embedded: %s\n", p.Headers.EmbeddedJSON())
			return nil
		},
	}
	addCrawlerFlags(cmd)
	return cmd
}
