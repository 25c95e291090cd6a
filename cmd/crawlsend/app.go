package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/crawlsend"
	"github.com/loykin/crawlsend/cmd/crawlsend/config"
)

// app carries what every subcommand shares.
type app struct {
	v *viper.Viper
}

// loadDoc reads the config file and sets up logging. A missing file is only
// an error when a non-default path was asked for.
func (a *app) loadDoc() (*config.ConfigDoc, error) {
	doc := &config.ConfigDoc{}
	path := strings.TrimSpace(a.v.GetString("config"))
	if path != "" {
		if err := doc.Load(path); err != nil {
			if !(errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath) {
				return nil, err
			}
		}
	}
	if a.v.GetBool("no_store") {
		doc.Store.Disabled = true
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, err
	}
	return doc, nil
}

// crawlerFlags are the per-invocation overrides of the crawler options.
func addCrawlerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("exe", "", "crawler executable path")
	f.String("chrome", "", "chrome/chromium path passed with -c")
	f.String("headers", "", `operator headers: a flat JSON object or "Name: value"`)
	f.String("extra-args", "", "extra crawler arguments, shell-style")
	f.String("post-data", "", "post data passed to the crawler with -d")
	f.Bool("auth-only", false, "forward only Cookie and Authorization request headers")
	f.String("scheme", "https", "scheme for raw requests in origin form")
}

// applyCrawlerFlags overlays the flags the user actually set.
func applyCrawlerFlags(cmd *cobra.Command, opts crawlsend.Options) crawlsend.Options {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("exe", &opts.ExecutablePath)
	str("chrome", &opts.ChromePath)
	str("headers", &opts.CustomHeaders)
	str("extra-args", &opts.ExtraArgs)
	str("post-data", &opts.PostData)
	if f.Changed("auth-only") {
		opts.AuthOnly, _ = f.GetBool("auth-only")
	}
	return opts
}

// resolveOptions applies config < persisted settings < flags.
func (a *app) resolveOptions(ctx context.Context, cmd *cobra.Command, doc *config.ConfigDoc) (crawlsend.Options, error) {
	opts, err := crawlsend.LoadOptions(ctx, doc.Store, doc.Options())
	if err != nil {
		return opts, err
	}
	return applyCrawlerFlags(cmd, opts), nil
}

func loadRequest(cmd *cobra.Command, path string) (*crawlsend.Request, error) {
	scheme, _ := cmd.Flags().GetString("scheme")
	req, err := crawlsend.LoadRequest(path, scheme)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", path, err)
	}
	return req, nil
}

func (a *app) openStore(ctx context.Context, doc *config.ConfigDoc) (*crawlsend.Store, error) {
	if doc.Store.Disabled {
		return nil, errors.New("store is disabled (remove --no-store or store.disabled)")
	}
	return crawlsend.OpenStore(ctx, doc.Store)
}
