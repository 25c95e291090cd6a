// Package doctor runs preflight checks on the crawler installation.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/util"
)

// Check is the outcome of one preflight check.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Skip   bool   `json:"skip,omitempty"`
	Detail string `json:"detail"`
}

// Target is what gets checked.
type Target struct {
	ExecutablePath string
	ChromePath     string
	LogFile        string
}

// Doctor runs checks. The zero value uses exec.LookPath and a headless
// Chrome launch through chromedp.
type Doctor struct {
	LookPath      func(file string) (string, error)
	ChromeVersion func(ctx context.Context, execPath string) (string, error)
	Timeout       time.Duration
}

// Run executes every check in order. It never stops early.
func (d *Doctor) Run(ctx context.Context, t Target) []Check {
	logger := common.GetLogger().WithComponent("doctor")
	checks := []Check{
		d.checkExecutable(t.ExecutablePath),
		d.checkChrome(ctx, t.ChromePath),
		checkLogDir(t.LogFile),
	}
	for _, c := range checks {
		logger.Debug("check", "name", c.Name, "ok", c.OK, "skip", c.Skip, "detail", c.Detail)
	}
	return checks
}

// Healthy reports whether no check failed.
func Healthy(checks []Check) bool {
	for _, c := range checks {
		if !c.OK && !c.Skip {
			return false
		}
	}
	return true
}

func (d *Doctor) checkExecutable(path string) Check {
	c := Check{Name: "executable"}
	path = util.TrimWithDefault(util.StripQuotes(strings.TrimSpace(path)), constants.DefaultExecutable)
	lookPath := d.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	resolved, err := lookPath(path)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = resolved
	return c
}

func (d *Doctor) checkChrome(ctx context.Context, path string) Check {
	c := Check{Name: "chrome"}
	path = util.StripQuotes(strings.TrimSpace(path))
	if path == "" {
		c.Skip = true
		c.Detail = "no chrome path configured; the crawler picks its own"
		return c
	}
	if _, err := os.Stat(path); err != nil {
		c.Detail = err.Error()
		return c
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultChromeProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	version := d.ChromeVersion
	if version == nil {
		version = ChromeVersion
	}
	product, err := version(ctx, path)
	if err != nil {
		c.Detail = fmt.Sprintf("launch %s: %v", path, err)
		return c
	}
	c.OK = true
	c.Detail = product
	return c
}

func checkLogDir(file string) Check {
	c := Check{Name: "log"}
	file = util.TrimWithDefault(file, constants.DefaultLogFile)
	abs, err := filepath.Abs(file)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.OK = true
		c.Detail = abs + " (directory will be created)"
	case err != nil:
		c.Detail = err.Error()
	case !info.IsDir():
		c.Detail = dir + " is not a directory"
	default:
		c.OK = true
		c.Detail = abs
	}
	return c
}

// ChromeVersion starts execPath headless and returns the browser product
// string, for example "HeadlessChrome/128.0.6613.84".
func ChromeVersion(ctx context.Context, execPath string) (string, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var product string
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = browser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		return "", err
	}
	return product, nil
}
