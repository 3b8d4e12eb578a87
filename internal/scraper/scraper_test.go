package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"boxd/internal/artifact"
	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/scraper"
	"boxd/internal/services"
	"boxd/internal/testsupport"
)

func listPage(items ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"poster-list\">")
	for _, item := range items {
		b.WriteString(item)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func posterItem(attr, value, text string) string {
	if attr == "" {
		return fmt.Sprintf(`<li class="posteritem numbered-list-item"><a class="frame" href="/film/x/">%s</a></li>`, text)
	}
	return fmt.Sprintf(`<li class="posteritem numbered-list-item"><a class="frame" href="/film/x/" %s="%s">%s</a></li>`, attr, value, text)
}

func newListServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeCollectsTooltipsInPageOrder(t *testing.T) {
	srv := newListServer(t, map[string]string{
		"/list/": listPage(
			posterItem("data-original-title", "Parasite (2019) ★★★★★", ""),
			posterItem("title", "Oldboy (2003) ★★★★", ""),
		),
		"/list/page/2/": listPage(
			posterItem("", "", "  Ran (1985) ★★★★★  "),
		),
	})
	cfg := testsupport.NewConfig(t, testsupport.WithListURL(srv.URL+"/list"), testsupport.WithPages(2))

	got, err := scraper.New(cfg, logging.NewNop()).Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	want := []string{"Parasite (2019) ★★★★★", "Oldboy (2003) ★★★★", "Ran (1985) ★★★★★"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tooltips mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractTooltipsPrefersAttributesAndNormalizes(t *testing.T) {
	html := listPage(
		posterItem("data-original-title", "  ", "Fallback (1999) ★★"),
		posterItem("title", "Ame\u0301lie (2001) ★★★★", "ignored"),
		posterItem("", "", "   "),
	)
	got, err := scraper.ExtractTooltips([]byte(html), "li.posteritem.numbered-list-item a.frame")
	if err != nil {
		t.Fatalf("ExtractTooltips: %v", err)
	}
	want := []string{"Fallback (1999) ★★", "Am\u00e9lie (2001) ★★★★"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tooltips mismatch (-want +got):\n%s", diff)
	}
}

func TestScrapeEmptyPageIsExternalError(t *testing.T) {
	srv := newListServer(t, map[string]string{
		"/list/":        listPage(posterItem("title", "Parasite (2019) ★★★★★", "")),
		"/list/page/2/": listPage(),
	})
	cfg := testsupport.NewConfig(t, testsupport.WithListURL(srv.URL+"/list/"), testsupport.WithPages(2))

	_, err := scraper.New(cfg, logging.NewNop()).Scrape(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestScrapeStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
	}{
		{name: "not found", status: http.StatusNotFound, marker: services.ErrExternalTool},
		{name: "server error", status: http.StatusBadGateway, marker: services.ErrTransient},
		{name: "rate limited", status: http.StatusTooManyRequests, marker: services.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			cfg := testsupport.NewConfig(t, testsupport.WithListURL(srv.URL), testsupport.WithPages(1))

			_, err := scraper.New(cfg, logging.NewNop()).Scrape(context.Background())
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			var statusErr *scraper.HTTPStatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Fatalf("expected HTTPStatusError %d, got %v", tt.status, err)
			}
		})
	}
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := &scraper.HTTPStatusError{URL: "https://example.test", StatusCode: 302, Location: " /login "}
	if got := err.Error(); got != "HTTP 302 location=/login" {
		t.Fatalf("unexpected message %q", got)
	}
	err.Location = ""
	if got := err.Error(); got != "HTTP 302" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestScrapeHonoursCancellation(t *testing.T) {
	srv := newListServer(t, map[string]string{"/": listPage(posterItem("title", "X (2000) ★", ""))})
	cfg := testsupport.NewConfig(t, testsupport.WithListURL(srv.URL), testsupport.WithPages(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scraper.New(cfg, logging.NewNop()).Scrape(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type flakyTripper struct {
	failures int32
	calls    atomic.Int32
	agents   []string
	next     http.RoundTripper
}

func (f *flakyTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	f.agents = append(f.agents, req.Header.Get("User-Agent"))
	if n <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(req)
}

func TestTransportRetriesIdempotentRequests(t *testing.T) {
	srv := newListServer(t, map[string]string{"/": "ok"})
	flaky := &flakyTripper{failures: 2, next: http.DefaultTransport}
	client := &http.Client{Transport: &scraper.Transport{Base: flaky, RetryMax: 2, UserAgent: "boxd-test", Backoff: time.Millisecond}}

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got := flaky.calls.Load(); got != 3 {
		t.Fatalf("expected 3 round trips, got %d", got)
	}
	for _, ua := range flaky.agents {
		if ua != "boxd-test" {
			t.Fatalf("expected configured user agent, got %q", ua)
		}
	}
}

func TestTransportGivesUpAfterRetryBudget(t *testing.T) {
	flaky := &flakyTripper{failures: 5, next: http.DefaultTransport}
	client := &http.Client{Transport: &scraper.Transport{Base: flaky, RetryMax: 1, Backoff: time.Millisecond}}

	if _, err := client.Get("http://127.0.0.1:1/"); err == nil {
		t.Fatal("expected error")
	}
	if got := flaky.calls.Load(); got != 2 {
		t.Fatalf("expected 2 round trips, got %d", got)
	}
	if flaky.agents[0] == "" {
		t.Fatal("expected a pooled user agent")
	}
}

func TestTransportRetriesThrottledResponses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	t.Cleanup(srv.Close)
	client := &http.Client{Transport: &scraper.Transport{Base: http.DefaultTransport, RetryMax: 2, Backoff: time.Millisecond}}

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retries, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
}

func TestTransportReturnsLastServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client := &http.Client{Transport: &scraper.Transport{Base: http.DefaultTransport, RetryMax: 1, Backoff: time.Millisecond}}

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	client := &http.Client{Transport: &scraper.Transport{Base: http.DefaultTransport, RetryMax: 3, Backoff: time.Millisecond}}

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single request, got %d", got)
	}
}

func TestStageWritesRawArtifact(t *testing.T) {
	srv := newListServer(t, map[string]string{
		"/": listPage(
			posterItem("title", "Parasite (2019) ★★★★★", ""),
			posterItem("title", "Amélie (2001) ★★★★", ""),
		),
	})
	cfg := testsupport.NewConfig(t, testsupport.WithListURL(srv.URL), testsupport.WithPages(1))
	st := scraper.NewStage(cfg, nil, logging.NewNop())
	run := &runs.Run{RunID: "run-1", Attempt: 1}

	if err := st.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.RawCount != 2 {
		t.Fatalf("expected raw count 2, got %d", run.RawCount)
	}
	got, err := artifact.ReadTooltips(cfg.RawPath())
	if err != nil {
		t.Fatalf("ReadTooltips: %v", err)
	}
	want := []string{"Parasite (2019) ★★★★★", "Amélie (2001) ★★★★"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("artifact mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(testsupport.ReadFile(t, cfg.RawPath()), "Amélie") {
		t.Fatal("expected non-ASCII text to be written unescaped")
	}
	if h := st.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected healthy stage, got %+v", h)
	}
}
