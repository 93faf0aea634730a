package domain

import "time"

// Platform identifies one of the supported review sources.
type Platform string

const (
	PlatformAppStore   Platform = "App Store"
	PlatformGooglePlay Platform = "Google Play Store"
	PlatformTrustpilot Platform = "Trustpilot"
)

// Review is the canonical, platform-agnostic record. Reviewer holds
// only the anonymized display form; full names never leave the raw
// source batches.
type Review struct {
	Date     time.Time // zero when the source date was unparsable
	Stars    int       // 1..5, or 0 when the source provides no rating
	Reviewer string    // e.g. "J. D." / "M." / "A."
	Text     string
	Platform Platform

	// Set by the scorer; nil/empty until then.
	Score *float64 // in [-1, 1]
	Label string   // good|neutral|bad
}

// Key returns the identity tuple used for deduplication. Pagination
// overlap across retries is expected; two records with the same key
// are the same review.
func (r Review) Key() ReviewKey {
	var d string
	if !r.Date.IsZero() {
		d = r.Date.Format("2006-01-02")
	}
	return ReviewKey{Platform: r.Platform, Reviewer: r.Reviewer, Date: d, Text: r.Text}
}

type ReviewKey struct {
	Platform Platform
	Reviewer string
	Date     string
	Text     string
}
