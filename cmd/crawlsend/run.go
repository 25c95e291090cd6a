package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loykin/crawlsend"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/httpc"
	"github.com/loykin/crawlsend/internal/probe"
	"github.com/loykin/crawlsend/internal/sender"
	"github.com/loykin/crawlsend/internal/supervisor"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <request-file>",
		Short: "Crawl starting from a request file (YAML or raw HTTP) and wait for the crawler to exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := a.loadDoc()
			if err != nil {
				return err
			}
			req, err := loadRequest(cmd, args[0])
			if err != nil {
				return err
			}

			if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
				opts, err := a.resolveOptions(ctx, cmd, doc)
				if err != nil {
					return err
				}
				p, err := sender.New(opts, nil, nil).Prepare(req)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p.Display())
				return nil
			}

			l, err := crawlsend.New(ctx, doc.LauncherConfig())
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultCloseWait)
				defer cancel()
				_ = l.Close(closeCtx)
			}()
			l.Sender.SetOptions(applyCrawlerFlags(cmd, l.Sender.Options()))

			if wait, _ := cmd.Flags().GetBool("wait"); wait || doc.Wait.Enabled {
				p, err := l.Sender.Prepare(req)
				if err != nil {
					return err
				}
				if err := probe.Wait(ctx, httpc.New(doc.Client), req.URL, p.Headers.Entries(), doc.Wait); err != nil {
					return err
				}
			}

			run, err := l.Send(req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "run %s queued, log: %s\n", run.ID, l.Sink.Path())

			res, err := run.Wait(ctx)
			if err != nil {
				// Interrupted: Close supersedes the crawler on the way out.
				return fmt.Errorf("run %s: %w", run.ID, err)
			}
			printResult(cmd, res)
			switch {
			case res.Status == supervisor.StatusFailed:
				return fmt.Errorf("run %s failed: %s", res.ID, res.Error)
			case res.ExitCode != 0:
				return fmt.Errorf("crawler exited with code %d", res.ExitCode)
			}
			return nil
		},
	}
	addCrawlerFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "print the crawler command line without running it")
	cmd.Flags().Bool("wait", false, "poll the target until it is ready before crawling")
	return cmd
}

func printResult(cmd *cobra.Command, res crawlsend.RunResult) {
	out := cmd.OutOrStdout()
	status := statusColor(string(res.Status)).Sprint(res.Status)
	_, _ = fmt.Fprintf(out, "run %s %s, exit code %d", res.ID, status, res.ExitCode)
	if d := res.Duration(); d > 0 {
		_, _ = fmt.Fprintf(out, " in %s", d.Round(time.Millisecond))
	}
	_, _ = fmt.Fprintln(out)
	if s := res.Summary; s != nil {
		_, _ = fmt.Fprintf(out, "requests: %d (all %d), domains: %d, sub-domains: %d\n",
			s.Requests, s.AllRequests, s.Domains, s.SubDomains)
	}
}

func statusColor(status string) *color.Color {
	switch supervisor.Status(status) {
	case supervisor.StatusExited:
		return color.New(color.FgGreen)
	case supervisor.StatusFailed:
		return color.New(color.FgRed)
	case supervisor.StatusSuperseded:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
