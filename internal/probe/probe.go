// Package probe polls a crawl target until it answers with the expected
// status, so a crawl is not started against a service that is still down.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/headers"
)

// Config controls how the target is polled.
type Config struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Method   string        `mapstructure:"method" yaml:"method"`
	Status   int           `mapstructure:"status" yaml:"status"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ErrNoURL is returned when Wait is called without a target.
var ErrNoURL = errors.New("probe: empty url")

// normalize fills defaults. Only GET and HEAD are probed; anything else
// falls back to GET so probing never replays a request body.
func (c Config) normalize() Config {
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method != http.MethodHead {
		c.Method = constants.DefaultWaitMethod
	}
	if c.Status == 0 {
		c.Status = constants.DefaultWaitStatus
	}
	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultWaitTimeout
	}
	if c.Interval <= 0 {
		c.Interval = constants.DefaultWaitInterval
	}
	return c
}

// Wait polls url with client until it returns cfg.Status. Headers are sent
// on every attempt. The error on timeout carries the last status seen.
func Wait(ctx context.Context, client *resty.Client, url string, hdrs []headers.Header, cfg Config) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrNoURL
	}
	cfg = cfg.normalize()
	logger := common.GetLogger().WithComponent("probe").WithTarget(url)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var lastStatus int
	var lastErr error
	for attempt := 1; ; attempt++ {
		status, err := do(ctx, client, cfg.Method, url, hdrs)
		if err == nil && status == cfg.Status {
			logger.Debug("target ready", "attempt", attempt, "status", status)
			return nil
		}
		lastStatus, lastErr = status, err
		logger.Debug("target not ready", "attempt", attempt, "status", status, "error", err)

		timer := time.NewTimer(cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if lastErr != nil && lastStatus == 0 {
				return fmt.Errorf("wait: timeout waiting for %s to return %d (last=%d): %w",
					url, cfg.Status, lastStatus, lastErr)
			}
			return fmt.Errorf("wait: timeout waiting for %s to return %d (last=%d)",
				url, cfg.Status, lastStatus)
		case <-timer.C:
		}
	}
}

func do(ctx context.Context, client *resty.Client, method, url string, hdrs []headers.Header) (int, error) {
	req := client.R().SetContext(ctx)
	for _, h := range hdrs {
		req.SetHeader(h.Name, h.Value)
	}

	var (
		resp *resty.Response
		err  error
	)
	if method == http.MethodHead {
		resp, err = req.Head(url)
	} else {
		resp, err = req.Get(url)
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	return status, err
}
