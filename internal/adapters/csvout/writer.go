package csvout

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"reviewharvest/internal/domain"
)

var header = []string{"review_date", "star_rating", "reviewer_anonymized", "review_text", "platform"}
var sentimentHeader = append(append([]string{}, header...), "sentiment_score", "sentiment_label")

// Writer persists the unified records as delimited files: either one
// merged file or one file per platform. Row order is taken as given;
// the normalizer already sorted.
type Writer struct {
	dir    string
	prefix string
	single bool
}

func New(dir, prefix string, single bool) *Writer {
	if dir == "" {
		dir = "."
	}
	if prefix == "" {
		prefix = "app"
	}
	return &Writer{dir: dir, prefix: prefix, single: single}
}

func (w *Writer) Write(rows []domain.Review, withSentiment bool) error {
	if len(rows) == 0 {
		log.Info().Bool("sentiment", withSentiment).Msg("no rows to write")
		return nil
	}
	if w.single {
		return w.writeFile(w.fileName("", withSentiment), rows, withSentiment)
	}
	for _, pf := range []domain.Platform{domain.PlatformAppStore, domain.PlatformGooglePlay, domain.PlatformTrustpilot} {
		var part []domain.Review
		for _, r := range rows {
			if r.Platform == pf {
				part = append(part, r)
			}
		}
		if len(part) == 0 {
			continue
		}
		if err := w.writeFile(w.fileName(platformSlug(pf), withSentiment), part, withSentiment); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFile(name string, rows []domain.Review, withSentiment bool) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	h := header
	if withSentiment {
		h = sentimentHeader
	}
	if err := cw.Write(h); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(record(r, withSentiment)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	log.Info().Str("file", path).Int("rows", len(rows)).Msg("wrote output")
	return nil
}

func record(r domain.Review, withSentiment bool) []string {
	date := ""
	if !r.Date.IsZero() {
		date = r.Date.Format("2006-01-02")
	}
	stars := ""
	if r.Stars != 0 {
		stars = strconv.Itoa(r.Stars)
	}
	rec := []string{date, stars, r.Reviewer, r.Text, string(r.Platform)}
	if withSentiment {
		score := ""
		if r.Score != nil {
			score = fmt.Sprintf("%.4f", *r.Score)
		}
		rec = append(rec, score, r.Label)
	}
	return rec
}

func (w *Writer) fileName(slug string, withSentiment bool) string {
	parts := []string{w.prefix}
	if slug != "" {
		parts = append(parts, slug)
	}
	parts = append(parts, "reviews")
	if withSentiment {
		parts = append(parts, "analysis")
	}
	return strings.Join(parts, "_") + ".csv"
}

func platformSlug(pf domain.Platform) string {
	switch pf {
	case domain.PlatformAppStore:
		return "app_store"
	case domain.PlatformGooglePlay:
		return "google_play"
	case domain.PlatformTrustpilot:
		return "trustpilot"
	}
	return "unknown"
}
