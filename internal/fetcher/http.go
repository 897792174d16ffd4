package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/funding-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	HostRate    rate.Limit // requests per second per host
	HostBurst   int
	ExtraHeader map[string]string
}

// hostLimiter tunes its rate from responses. A 429 halves the rate (down
// to a quarter of the initial), a success nudges it back up toward 2x.
type hostLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

func newHostLimiter(initial rate.Limit, burst int) *hostLimiter {
	return &hostLimiter{
		limiter: rate.NewLimiter(initial, burst),
		initial: initial,
		current: initial,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.limiter.Wait(ctx)
}

func (h *hostLimiter) onSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.current * 1.2
	if next > h.initial*2 {
		next = h.initial * 2
	}
	h.current = next
	h.limiter.SetLimit(next)
}

func (h *hostLimiter) onRateLimit(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.current * 0.5
	if next < h.initial/4 {
		next = h.initial / 4
	}
	h.current = next
	h.limiter.SetLimit(next)
	zap.L().Warn("reducing request rate after 429",
		zap.String("host", host),
		zap.Float64("rate", float64(next)),
	)
}

// HTTPFetcher implements Fetcher over net/http with one self-tuning rate
// limiter per host. Transient failures are wrapped in
// resilience.TransientError so the retry and breaker layers classify them.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*hostLimiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "funding-cli/1.0"
	}
	if opts.HostRate == 0 {
		opts.HostRate = 5
	}
	if opts.HostBurst == 0 {
		opts.HostBurst = 5
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*hostLimiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) (*hostLimiter, string) {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = newHostLimiter(f.opts.HostRate, f.opts.HostBurst)
		f.limiters[host] = lim
	}
	return lim, host
}

// do performs one rate-limited request. Retries belong to the caller's
// tier wrapper, not here, so a transient status becomes a TransientError
// immediately.
func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string, header map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, v := range f.opts.ExtraHeader {
		req.Header.Set(k, v)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	lim, host := f.limiterFor(rawURL)
	if err := lim.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &resilience.TransientError{Err: eris.Wrapf(err, "request %s", rawURL)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		lim.onRateLimit(host)
		return nil, &resilience.TransientError{
			Err:        eris.Errorf("http 429 from %s", rawURL),
			StatusCode: resp.StatusCode,
		}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		_ = resp.Body.Close()
		return nil, &resilience.TransientError{
			Err:        eris.Errorf("http %d from %s", resp.StatusCode, rawURL),
			StatusCode: resp.StatusCode,
		}
	}

	lim.onSuccess()
	return resp, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadBytes fetches the URL and returns the full body.
func (f *HTTPFetcher) DownloadBytes(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	bs, err := io.ReadAll(body)
	if err != nil {
		return nil, &resilience.TransientError{Err: eris.Wrapf(err, "read body from %s", rawURL)}
	}
	return bs, nil
}

// DownloadIfChanged fetches the URL only if the ETag differs. Feed polling
// uses this so unchanged feeds cost one conditional request.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	var header map[string]string
	if etag != "" {
		header = map[string]string{"If-None-Match": etag}
	}

	resp, err := f.do(ctx, http.MethodGet, rawURL, header)
	if err != nil {
		return nil, "", false, err
	}

	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return nil, etag, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", false, eris.Errorf("conditional get: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, resp.Header.Get("ETag"), true, nil
}

// GetJSON fetches the URL and decodes the response into out.
func (f *HTTPFetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	bs, err := f.DownloadBytes(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return eris.Wrapf(err, "decode json from %s", rawURL)
	}
	return nil
}
