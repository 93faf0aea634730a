package googleplay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"reviewharvest/internal/adapters/httpfetch"
	"reviewharvest/internal/domain"
)

const batchSize = 100

// BatchFeed is the default PlayReviewFeed: it speaks the Play web
// client's batchexecute RPC, which returns review batches of up to
// 100 plus a continuation token. The envelope is positional JSON
// arrays wrapped in an anti-XSSI prefix. Requests go through the
// shared fetch client, so a transient 429/5xx on one batch is retried
// with backoff instead of ending the walk.
type BatchFeed struct {
	fetch *httpfetch.Client
	appID string
	lang  string
	ctry  string
	base  string
}

func NewBatchFeed(f *httpfetch.Client, appID, lang, country string) *BatchFeed {
	return &BatchFeed{
		fetch: f,
		appID: appID,
		lang:  lang,
		ctry:  country,
		base:  "https://play.google.com/_/PlayStoreUi/data/batchexecute",
	}
}

// SetBaseURL points the feed at a different endpoint; tests use it.
func (f *BatchFeed) SetBaseURL(u string) { f.base = u }

func (f *BatchFeed) Fetch(ctx context.Context, token string) ([]domain.PlayReview, string, error) {
	payload := fmt.Sprintf(
		`[[["UsvDTd","[null,null,[2,null,[%d,null,%s],null,[]],[\"%s\",7]]",null,"generic"]]]`,
		batchSize, jsonToken(token), f.appID,
	)
	form := url.Values{"f.req": {payload}}

	u := fmt.Sprintf("%s?hl=%s&gl=%s", f.base, url.QueryEscape(f.lang), url.QueryEscape(f.ctry))
	body, _, err := f.fetch.Post(ctx, u, "application/x-www-form-urlencoded;charset=UTF-8", nil, form.Encode())
	if err != nil {
		return nil, "", err
	}

	return parseBatch(body)
}

func jsonToken(token string) string {
	if token == "" {
		return "null"
	}
	return fmt.Sprintf(`\"%s\"`, token)
}

// parseBatch unwraps the batchexecute envelope: strip the )]}' guard,
// decode the outer array, then decode the embedded JSON string at
// [0][2] which holds [reviews, [_, nextToken]].
func parseBatch(body []byte) ([]domain.PlayReview, string, error) {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '['); i > 0 {
		s = s[i:]
	}

	var outer []json.RawMessage
	if err := json.Unmarshal([]byte(s), &outer); err != nil {
		return nil, "", fmt.Errorf("play envelope decode: %w", err)
	}
	if len(outer) == 0 {
		return nil, "", nil
	}
	var frame []json.RawMessage
	if err := json.Unmarshal(outer[0], &frame); err != nil {
		return nil, "", fmt.Errorf("play frame decode: %w", err)
	}
	if len(frame) < 3 {
		return nil, "", nil
	}
	var inner string
	if err := json.Unmarshal(frame[2], &inner); err != nil || inner == "" {
		return nil, "", nil // empty frame means the feed is exhausted
	}

	var payload []any
	if err := json.Unmarshal([]byte(inner), &payload); err != nil {
		return nil, "", fmt.Errorf("play payload decode: %w", err)
	}

	var reviews []domain.PlayReview
	if len(payload) > 0 {
		if rows, ok := payload[0].([]any); ok {
			for _, row := range rows {
				if r, ok := parseReviewRow(row); ok {
					reviews = append(reviews, r)
				}
			}
		}
	}

	next := ""
	if len(payload) > 1 {
		if cont, ok := payload[1].([]any); ok && len(cont) > 1 {
			if tok, ok := cont[1].(string); ok {
				next = tok
			}
		}
	}
	return reviews, next, nil
}

// parseReviewRow picks the known positions out of one review array:
// 0 id, 1 [authorName, ...], 2 rating, 4 text, 5 [unixSeconds, ...].
func parseReviewRow(row any) (domain.PlayReview, bool) {
	fields, ok := row.([]any)
	if !ok || len(fields) < 6 {
		return domain.PlayReview{}, false
	}
	r := domain.PlayReview{}
	if id, ok := fields[0].(string); ok {
		r.ReviewID = id
	}
	if author, ok := fields[1].([]any); ok && len(author) > 0 {
		if name, ok := author[0].(string); ok {
			r.Author = name
		}
	}
	if score, ok := fields[2].(float64); ok {
		r.Score = score
	}
	if text, ok := fields[4].(string); ok {
		r.Text = text
	}
	if at, ok := fields[5].([]any); ok && len(at) > 0 {
		if secs, ok := at[0].(float64); ok {
			r.At = time.Unix(int64(secs), 0).UTC()
		}
	}
	if r.ReviewID == "" && r.Text == "" {
		return domain.PlayReview{}, false
	}
	return r, true
}
