package httpfetch

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewharvest/internal/adapters/observability"
)

// Client is the shared fetch primitive every source client goes
// through: one GET with timeout, retry on transient failures, and a
// fixed pacing interval between successful sequential calls.
type Client struct {
	hc         *http.Client
	rl         *rate.Limiter
	maxRetries int
	base       time.Duration
	source     string // metrics/log label
	uaPool     []string
}

type Options struct {
	Timeout     time.Duration
	Delay       time.Duration // min spacing between calls from this client
	MaxRetries  int
	BackoffBase time.Duration
	Source      string
	UserAgents  []string // optional override of the default pool
}

// Rotating desktop-browser pool; review sites answer bot UAs with
// challenge pages.
var defaultUAs = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	rl := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		rl = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	ua := opts.UserAgents
	if len(ua) == 0 {
		ua = defaultUAs
	}
	return &Client{
		hc:         &http.Client{Timeout: opts.Timeout},
		rl:         rl,
		maxRetries: opts.MaxRetries,
		base:       opts.BackoffBase,
		source:     opts.Source,
		uaPool:     ua,
	}
}

// FetchError is the terminal failure after retries are exhausted.
// Callers treat it as "stop paginating this source", never as a
// run-level abort.
type FetchError struct {
	URL    string
	Status int // last observed status, 0 for pure network failures
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Get performs a GET with pacing, retries, and backoff, returning the
// response body and the final status code.
//
// 429 and 5xx responses and network errors are retried, honoring
// Retry-After when provided; any other non-2xx status is terminal
// immediately.
func (c *Client) Get(ctx context.Context, url string, hdr http.Header) ([]byte, int, error) {
	return c.do(ctx, url, hdr, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// Post sends a request body under the same pacing, retry, and backoff
// policy as Get. The body is rebuilt for every attempt.
func (c *Client) Post(ctx context.Context, url, contentType string, hdr http.Header, body string) ([]byte, int, error) {
	return c.do(ctx, url, hdr, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, url string, hdr http.Header, mk func() (*http.Request, error)) ([]byte, int, error) {
	// pacing between sequential calls from the same client
	if err := c.rl.Wait(ctx); err != nil {
		return nil, 0, err
	}

	var lastErr error
	lastStatus := 0
	for i := 0; i < c.maxRetries; i++ {
		// fresh request each attempt
		req, err := mk()
		if err != nil {
			return nil, 0, err
		}
		for k, vs := range hdr {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.pickUA())
		}
		if req.Header.Get("Accept-Language") == "" {
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			observability.ObserveFetch(c.source, 0, time.Since(start))
			lastErr = err
			lastStatus = 0
			if i < c.maxRetries-1 && sleepCtx(ctx, c.backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			break
		}

		observability.ObserveFetch(c.source, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			b, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, resp.StatusCode, &FetchError{URL: url, Status: resp.StatusCode, Err: err}
			}
			return b, resp.StatusCode, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if wait == 0 {
				wait = c.backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			lastStatus = resp.StatusCode
			if i < c.maxRetries-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, resp.StatusCode, &FetchError{
				URL:    url,
				Status: resp.StatusCode,
				Err:    fmt.Errorf("bad status: %s", strings.TrimSpace(string(b))),
			}
		}
		break
	}

	return nil, lastStatus, &FetchError{URL: url, Status: lastStatus, Err: lastErr}
}

func (c *Client) pickUA() string {
	n, err := crand.Int(crand.Reader, big.NewInt(int64(len(c.uaPool))))
	if err != nil {
		return c.uaPool[0]
	}
	return c.uaPool[n.Int64()]
}

// backoff returns an exponential delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt, with up
// to +50% random jitter to avoid thundering herds.
func (c *Client) backoff(i int) time.Duration {
	base := c.base * time.Duration(1<<i)
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
