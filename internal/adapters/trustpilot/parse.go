package trustpilot

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"reviewharvest/internal/domain"
)

var (
	ratedAltRe = regexp.MustCompile(`(?i)Rated\s+(\d)\s+out of 5`)
	starAriaRe = regexp.MustCompile(`(?i)(\d)\s*star`)
	nonNameRe  = regexp.MustCompile(`(?i)reviews?\s+written|company\s+replied`)
	lastPageRe = regexp.MustCompile(`page=(\d+)`)
)

// parsePage extracts review cards from one HTML page. Malformed cards
// are skipped, never fatal.
func parsePage(body []byte, page int) ([]domain.SiteReview, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	cards := doc.Find("section[data-testid='reviews-list'] article")
	if cards.Length() == 0 {
		cards = doc.Find("article[data-service-review-card-paper]")
	}

	var out []domain.SiteReview
	cards.Each(func(_ int, card *goquery.Selection) {
		date := cardDate(card)
		if date == "" {
			return
		}
		text := cardText(card)
		if text == "" {
			return
		}
		out = append(out, domain.SiteReview{
			Author: cardAuthor(card),
			Rating: cardRating(card),
			Text:   text,
			Date:   date,
			Page:   page,
		})
	})
	return out, nil
}

// cardDate prefers the machine-readable datetime attribute, falling
// back to the visible text (e.g. "Aug 15, 2025").
func cardDate(card *goquery.Selection) string {
	t := card.Find("time").First()
	if t.Length() == 0 {
		return ""
	}
	if iso := strings.TrimSpace(t.AttrOr("datetime", "")); iso != "" {
		return iso
	}
	return strings.TrimSpace(t.Text())
}

// cardRating reads "Rated N out of 5" alt text, falling back to any
// aria-label mentioning "N star". 0 means the card exposes no score.
func cardRating(card *goquery.Selection) int {
	rating := 0
	card.Find("img[alt]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if m := ratedAltRe.FindStringSubmatch(img.AttrOr("alt", "")); m != nil {
			rating, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})
	if rating != 0 {
		return rating
	}
	card.Find("[aria-label]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if m := starAriaRe.FindStringSubmatch(el.AttrOr("aria-label", "")); m != nil {
			rating, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})
	return rating
}

// cardAuthor tries the consumer-info block first, then any short span
// that does not look like review metadata.
func cardAuthor(card *goquery.Selection) string {
	var candidates []string
	card.Find("[data-testid='consumer-info'] span").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			candidates = append(candidates, t)
		}
	})
	if len(candidates) == 0 {
		card.Find("span").Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				candidates = append(candidates, t)
			}
		})
	}
	for _, c := range candidates {
		if nonNameRe.MatchString(c) {
			continue
		}
		if len(c) >= 1 && len(c) <= 60 {
			return c
		}
	}
	return "Anonymous"
}

// cardText joins the paragraphs of the review body.
func cardText(card *goquery.Selection) string {
	var parts []string
	card.Find("[data-testid='review-content'] p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		card.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := strings.TrimSpace(p.Text()); t != "" {
				parts = append(parts, t)
			}
		})
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// totalPages reads the pagination control on page 1. 0 means the
// control was absent; the caller falls back to its page cap.
func totalPages(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	last := doc.Find("a[name='pagination-button-last']").First()
	if last.Length() == 0 {
		return 0
	}
	if n, err := strconv.Atoi(strings.TrimSpace(last.Text())); err == nil && n > 0 {
		return n
	}
	if m := lastPageRe.FindStringSubmatch(last.AttrOr("href", "")); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}
