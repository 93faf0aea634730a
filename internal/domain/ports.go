package domain

import "context"

// SourceResult is what one source client hands back to the pipeline.
// Err is the terminal fetch error for a source that stopped early; a
// source that genuinely has zero reviews returns an empty batch and a
// nil Err, so callers can tell the two apart.
type SourceResult struct {
	Platform Platform
	Reviews  int
	Pages    int
	Err      error
}

// PlayReviewFeed abstracts the third-party Play reviews retrieval
// helper: one call returns a batch plus an opaque continuation token,
// empty token meaning the feed is exhausted.
type PlayReviewFeed interface {
	Fetch(ctx context.Context, token string) (batch []PlayReview, next string, err error)
}

// Scorer computes a polarity score in [-1, 1] and its discrete label.
// Implementations must be deterministic for identical text and must
// never fail; a backend that can error wraps its own fallback.
type Scorer interface {
	Score(text string) (float64, string)
	Backend() string
}

// ReviewWriter consumes the final enriched records. Rows arrive
// already deduplicated and sorted; the writer must not reorder them.
type ReviewWriter interface {
	Write(rows []Review, withSentiment bool) error
}
