package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/loykin/crawlsend"
	"github.com/loykin/crawlsend/cmd/crawlsend/config"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API with a long-lived supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := a.loadDoc()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				doc.Server.Addr, _ = cmd.Flags().GetString("addr")
			}

			metrics := server.NewMetrics()
			lc := doc.LauncherConfig()
			lc.Observers = append(lc.Observers, metrics.Observe)
			l, err := crawlsend.New(ctx, lc)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultCloseWait)
				defer cancel()
				_ = l.Close(closeCtx)
			}()

			a.watchConfig(ctx, l)

			deps := server.Deps{Sender: l.Sender, Status: l.Supervisor, Metrics: metrics}
			if l.Store != nil {
				deps.History = l.Store
			}
			return server.New(doc.Server, deps).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", constants.DefaultServerAddr, "listen address")
	return cmd
}

// watchConfig reapplies crawler options when the config file changes.
// Persisted settings still take precedence over the file.
func (a *app) watchConfig(ctx context.Context, l *crawlsend.Launcher) {
	path := a.v.GetString("config")
	logger := common.GetLogger().WithComponent("config")
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		logger.Debug("config watch disabled", "path", path, "error", err)
		return
	}
	a.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var doc config.ConfigDoc
		if err := doc.Load(path); err != nil {
			logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		opts := doc.Options()
		if l.Store != nil {
			var err error
			if opts, err = l.Store.LoadOptions(ctx, opts); err != nil {
				logger.Warn("settings reload failed", "error", err)
				return
			}
		}
		l.Sender.SetOptions(opts)
		logger.Info("crawler options reloaded", "path", path)
	})
	a.v.WatchConfig()
}
