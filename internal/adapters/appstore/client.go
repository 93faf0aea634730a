package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"reviewharvest/internal/adapters/httpfetch"
	"reviewharvest/internal/adapters/observability"
	"reviewharvest/internal/domain"
)

const metricSource = "appstore"

// Client walks the iTunes customer-reviews feed. The feed paginates
// through rel=next links; that link is the opaque continuation token.
type Client struct {
	fetch    *httpfetch.Client
	appID    string
	country  string
	maxPages int
	cutoff   time.Time // zero disables the recency window
}

func New(f *httpfetch.Client, appID, country string, maxPages int, cutoff time.Time) *Client {
	if country == "" {
		country = "us"
	}
	return &Client{fetch: f, appID: appID, country: country, maxPages: maxPages, cutoff: cutoff}
}

func firstPageURL(country, appID string) string {
	return fmt.Sprintf("https://itunes.apple.com/%s/rss/customerreviews/page=1/id=%s/sortby=mostrecent/json", country, appID)
}

// Harvest paginates until the feed runs out of next links, a link
// repeats, a page comes back empty, the page limit is hit, or a fetch
// fails terminally. A terminal failure returns everything accumulated
// so far together with the error; the caller keeps the partial batch.
func (c *Client) Harvest(ctx context.Context) ([]domain.AppStoreReview, int, error) {
	return c.HarvestFrom(ctx, firstPageURL(c.country, c.appID))
}

// HarvestFrom walks the feed starting at an explicit first-page URL.
func (c *Client) HarvestFrom(ctx context.Context, url string) ([]domain.AppStoreReview, int, error) {
	var out []domain.AppStoreReview
	seen := map[string]struct{}{}
	pages := 0

	hdr := http.Header{}
	hdr.Set("Accept", "application/json")

	for pages < c.maxPages {
		seen[url] = struct{}{}

		body, _, err := c.fetch.Get(ctx, url, hdr)
		if err != nil {
			observability.ObservePage(metricSource, "failed")
			return out, pages, err
		}
		pages++
		observability.ObservePage(metricSource, "ok")

		entries, next, err := parseFeed(body)
		if err != nil {
			observability.ObserveParseFailure(metricSource)
			log.Warn().Err(err).Str("url", url).Msg("app store feed parse failed")
			break
		}
		if len(entries) == 0 {
			break
		}

		kept, allOld := c.window(entries)
		out = append(out, kept...)
		observability.ObserveReviews(metricSource, len(kept))
		if allOld {
			break // sorted most-recent-first; the rest is older still
		}

		if next == "" {
			break
		}
		if _, dup := seen[next]; dup {
			break // the feed points its last page at itself
		}
		url = next
	}

	return out, pages, nil
}

// window drops entries older than the cutoff. The second return is
// true when every entry on the page was too old, which terminates the
// walk.
func (c *Client) window(entries []domain.AppStoreReview) ([]domain.AppStoreReview, bool) {
	if c.cutoff.IsZero() {
		return entries, false
	}
	kept := make([]domain.AppStoreReview, 0, len(entries))
	for _, e := range entries {
		t, ok := domain.ParseDate(e.Updated)
		if !ok || !t.Before(c.cutoff) {
			kept = append(kept, e) // unparsable dates fail soft, kept
		}
	}
	return kept, len(kept) == 0
}

// ---- feed payload ----

// Every value in the iTunes JSON feed is wrapped in {"label": ...};
// a page with a single review serializes "entry" as an object rather
// than an array.

type label struct {
	Label string `json:"label"`
}

type feedEntry struct {
	ID     label `json:"id"`
	Author struct {
		Name label `json:"name"`
	} `json:"author"`
	Rating  label `json:"im:rating"`
	Title   label `json:"title"`
	Content label `json:"content"`
	Updated label `json:"updated"`
	Release label `json:"im:releaseDate"`
}

type entryList []feedEntry

func (e *entryList) UnmarshalJSON(b []byte) error {
	var many []feedEntry
	if err := json.Unmarshal(b, &many); err == nil {
		*e = many
		return nil
	}
	var one feedEntry
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*e = entryList{one}
	return nil
}

type feedLink struct {
	Attributes struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"attributes"`
}

type feedPayload struct {
	Feed struct {
		Entry entryList  `json:"entry"`
		Link  []feedLink `json:"link"`
	} `json:"feed"`
}

func parseFeed(body []byte) ([]domain.AppStoreReview, string, error) {
	var p feedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", fmt.Errorf("feed decode: %w", err)
	}

	out := make([]domain.AppStoreReview, 0, len(p.Feed.Entry))
	for _, e := range p.Feed.Entry {
		// the feed prepends an app-metadata entry carrying no rating or text
		if e.Rating.Label == "" && e.Content.Label == "" {
			continue
		}
		updated := e.Updated.Label
		if updated == "" {
			updated = e.Release.Label
		}
		out = append(out, domain.AppStoreReview{
			ID:      e.ID.Label,
			Author:  e.Author.Name.Label,
			Rating:  e.Rating.Label,
			Title:   e.Title.Label,
			Content: e.Content.Label,
			Updated: updated,
		})
	}

	var next string
	for _, l := range p.Feed.Link {
		if l.Attributes.Rel == "next" {
			next = l.Attributes.Href
		}
	}
	return out, next, nil
}
