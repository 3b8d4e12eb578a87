package scraper

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultRetryMax = 2
	defaultBackoff  = 250 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Transport applies the scraper's network policy: a user-agent pool and a
// bounded retry for replayable requests. Transport errors, 429 and 5xx
// responses are retried with doubling backoff.
type Transport struct {
	Base http.RoundTripper

	ua *uaPool

	// RetryMax is the number of retries after the first attempt.
	RetryMax int

	// UserAgent, when set, replaces the pool for every request.
	UserAgent string

	// Backoff is the wait before the first retry; it doubles per attempt.
	Backoff time.Duration
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Only GET/HEAD without a body can be replayed safely.
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	ctx := req.Context()
	wait := t.Backoff
	if wait <= 0 {
		wait = defaultBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				if lastErr == nil {
					lastErr = err
				}
				return nil, lastErr
			}
			wait = min(wait*2, maxBackoff)
		}

		r := req.Clone(ctx)
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", t.userAgent())
		}

		resp, err := t.Base.RoundTrip(r)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		if !retryableStatus(resp.StatusCode) || attempt == max {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		lastErr = &HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}
	return nil, lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Transport) userAgent() string {
	if ua := strings.TrimSpace(t.UserAgent); ua != "" {
		return ua
	}
	pool := t.ua
	if pool == nil {
		pool = globalUA
	}
	return pool.random()
}

// NewClient builds the HTTP client used for list pages. Zero or negative
// values fall back to a 20s timeout and two retries.
func NewClient(timeout time.Duration, retryMax int, userAgent string) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retryMax < 0 {
		retryMax = defaultRetryMax
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	return &http.Client{
		Transport: &Transport{
			Base:      base,
			ua:        globalUA,
			RetryMax:  retryMax,
			UserAgent: userAgent,
		},
		Timeout: timeout,
	}
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:129.0) Gecko/20100101 Firefox/129.0",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
