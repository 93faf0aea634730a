package googleplay

import (
	"context"
	"math"
	"time"

	"reviewharvest/internal/adapters/observability"
	"reviewharvest/internal/domain"
)

const metricSource = "googleplay"

// Client walks the Play reviews feed through the PlayReviewFeed
// helper. Same state machine as the App Store walk, but batches come
// from the helper abstraction instead of raw HTTP, and records carry
// a source review ID the client dedupes on across batches.
type Client struct {
	feed     domain.PlayReviewFeed
	maxPages int
	delay    time.Duration
	cutoff   time.Time
}

func New(feed domain.PlayReviewFeed, maxPages int, delay time.Duration, cutoff time.Time) *Client {
	return &Client{feed: feed, maxPages: maxPages, delay: delay, cutoff: cutoff}
}

func (c *Client) Harvest(ctx context.Context) ([]domain.PlayReview, int, error) {
	var out []domain.PlayReview
	seenIDs := map[string]struct{}{}
	seenTokens := map[string]struct{}{}
	token := ""
	pages := 0

	for pages < c.maxPages {
		if ctx.Err() != nil {
			return out, pages, ctx.Err()
		}

		batch, next, err := c.feed.Fetch(ctx, token)
		if err != nil {
			observability.ObservePage(metricSource, "failed")
			return out, pages, err
		}
		pages++
		observability.ObservePage(metricSource, "ok")

		if len(batch) == 0 {
			break
		}

		added := 0
		allOld := !c.cutoff.IsZero()
		for _, r := range batch {
			if !c.cutoff.IsZero() && !r.At.IsZero() && r.At.Before(c.cutoff) {
				continue
			}
			allOld = false
			if r.ReviewID != "" {
				if _, dup := seenIDs[r.ReviewID]; dup {
					continue // batches overlap across continuation retries
				}
				seenIDs[r.ReviewID] = struct{}{}
			}
			r.Score = normalizeScore(r.Score)
			out = append(out, r)
			added++
		}
		observability.ObserveReviews(metricSource, added)
		if allOld {
			break // newest-first feed; everything after is older
		}

		if next == "" {
			break
		}
		if _, dup := seenTokens[next]; dup {
			break
		}
		seenTokens[next] = struct{}{}
		token = next

		if c.delay > 0 && !sleepCtx(ctx, c.delay) {
			return out, pages, ctx.Err()
		}
	}

	return out, pages, nil
}

// normalizeScore maps whatever scale the feed used onto 1..5.
// Observed values are 1..5 already, but the web payload has shipped
// 0-based and 10-point variants.
func normalizeScore(s float64) float64 {
	if s > 5 && s <= 10 {
		s = s / 2
	}
	if s > 10 && s <= 100 {
		s = s / 20
	}
	return math.Round(s)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
