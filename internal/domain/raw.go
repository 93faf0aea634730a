package domain

import "time"

// Raw per-source records. Each variant lives only between its source
// client's pagination loop and the normalizer; nothing downstream of
// normalization sees them.

// AppStoreReview is one entry of the iTunes customer-reviews feed.
type AppStoreReview struct {
	ID      string
	Author  string // full name as published by the feed
	Rating  string // decimal string, may be out of range or empty
	Title   string
	Content string
	Updated string // timestamp string, format varies by storefront
}

// PlayReview is one record from the Play reviews feed helper.
type PlayReview struct {
	ReviewID string
	Author   string
	Score    float64 // source scale, not guaranteed 1..5
	Text     string
	At       time.Time
}

// SiteReview is one parsed review card from the consumer review site.
type SiteReview struct {
	Author string
	Rating int // 0 when the card exposes no numeric score
	Text   string
	Date   string // datetime attribute or visible text, unparsed
	Page   int
}

// SourceBatches carries every source's raw output into the normalizer.
type SourceBatches struct {
	AppStore   []AppStoreReview
	GooglePlay []PlayReview
	Site       []SiteReview
}
