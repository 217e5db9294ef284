// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Fetcher issues single-page GETs through a shared Colly collector with
// pooled transport. Transient failures are retried internally; callers
// only ever see a body or a *harvest.FetchFailure.
type Fetcher struct {
	cfg           Config
	policy        retryPolicy
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		policy:        newRetryPolicy(cfg.BackoffInitial, cfg.BackoffMax),
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch retrieves url, retrying on the transient status allow-list with
// jittered exponential backoff. Exhausting the retry budget or hitting a
// non-retryable status yields a *harvest.FetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	attempts := f.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, f.policy.Backoff(attempt-1)); err != nil {
				break
			}
			f.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
			)
		}
		body, status, err := f.visit(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !f.policy.Retryable(status, err) {
			break
		}
	}
	return nil, &harvest.FetchFailure{URL: url, LastErr: lastErr}
}

func (f *Fetcher) visit(ctx context.Context, url string) ([]byte, int, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	// body, status, and fetchErr are written by the collector callbacks
	// inside Visit; they may only be read after receiving from done. The
	// ctx.Done branch abandons the visit and must not touch them.
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, status, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, status, fmt.Errorf("response %s: %w", url, fetchErr)
		}
		return body, status, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
