package trustpilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviewharvest/internal/adapters/httpfetch"
	"reviewharvest/internal/adapters/observability"
	"reviewharvest/internal/domain"
)

const metricSource = "trustpilot"

// Client walks numbered review pages. Page 1 is fetched alone to
// discover the page count; the remaining pages go through a bounded
// worker pool. This is the only component in the system doing
// concurrent I/O.
type Client struct {
	fetch    *httpfetch.Client
	baseURL  string
	maxPages int
	workers  int
	cutoff   time.Time
}

func New(f *httpfetch.Client, baseURL string, maxPages, workers int, cutoff time.Time) *Client {
	if workers <= 0 {
		workers = 1
	}
	return &Client{fetch: f, baseURL: baseURL, maxPages: maxPages, workers: workers, cutoff: cutoff}
}

func (c *Client) pageURL(page int) string {
	if page <= 1 {
		return c.baseURL
	}
	return fmt.Sprintf("%s?page=%d", c.baseURL, page)
}

// Harvest returns whatever pages succeeded. Only a dead page 1 is a
// terminal error; individual page failures inside the pool yield zero
// records for that page and nothing else. Cancellation lets in-flight
// workers finish and drops unscheduled pages.
func (c *Client) Harvest(ctx context.Context) ([]domain.SiteReview, int, error) {
	body, _, err := c.fetch.Get(ctx, c.pageURL(1), nil)
	if err != nil {
		observability.ObservePage(metricSource, "failed")
		return nil, 0, err
	}
	observability.ObservePage(metricSource, "ok")

	first, err := parsePage(body, 1)
	if err != nil {
		observability.ObserveParseFailure(metricSource)
		return nil, 1, err
	}
	if len(first) == 0 {
		return nil, 1, nil
	}

	out := c.windowed(first)
	observability.ObserveReviews(metricSource, len(out))

	total := totalPages(body)
	if total <= 0 || total > c.maxPages {
		total = c.maxPages
	}
	if total <= 1 {
		return out, 1, nil
	}

	// Bounded pool over pages 2..total. Acquire before launching the
	// goroutine; release inside it.
	sem := semaphore.NewWeighted(int64(c.workers))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fetched = 1
	)

	for page := 2; page <= total; page++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			// ctx done: unscheduled pages are dropped, in-flight finish
			log.Info().Int("next_page", page).Msg("trustpilot walk interrupted")
			break
		}

		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			defer sem.Release(1)

			rows, ok := c.fetchPage(ctx, page)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				fetched++
				out = append(out, rows...)
			}
		}(page)
	}

	wg.Wait()
	return out, fetched, nil
}

// fetchPage is one worker's unit: fetch with retries, parse, window.
// Failures are logged and swallowed; the page contributes nothing.
func (c *Client) fetchPage(ctx context.Context, page int) ([]domain.SiteReview, bool) {
	body, _, err := c.fetch.Get(ctx, c.pageURL(page), nil)
	if err != nil {
		observability.ObservePage(metricSource, "failed")
		log.Warn().Int("page", page).Err(err).Msg("trustpilot page fetch failed")
		return nil, false
	}
	observability.ObservePage(metricSource, "ok")

	rows, err := parsePage(body, page)
	if err != nil {
		observability.ObserveParseFailure(metricSource)
		log.Warn().Int("page", page).Err(err).Msg("trustpilot page parse failed")
		return nil, false
	}
	rows = c.windowed(rows)
	observability.ObserveReviews(metricSource, len(rows))
	return rows, true
}

func (c *Client) windowed(rows []domain.SiteReview) []domain.SiteReview {
	if c.cutoff.IsZero() {
		return rows
	}
	kept := rows[:0]
	for _, r := range rows {
		if t, ok := domain.ParseDate(r.Date); ok && t.Before(c.cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
