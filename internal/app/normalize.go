package app

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"reviewharvest/internal/domain"
)

/********** per-source mapping into the unified record **********/

// Normalize maps every raw batch into unified records, drops
// duplicates, and sorts by review date descending. It is idempotent:
// feeding it the same raw input twice yields the identical set.
func Normalize(b domain.SourceBatches) []domain.Review {
	rows := make([]domain.Review, 0, len(b.AppStore)+len(b.GooglePlay)+len(b.Site))
	for _, r := range b.AppStore {
		rows = append(rows, mapAppStore(r))
	}
	for _, r := range b.GooglePlay {
		rows = append(rows, mapPlay(r))
	}
	for _, r := range b.Site {
		rows = append(rows, mapSite(r))
	}

	rows = dedupe(rows)

	// Stable: ties and unparsable (zero) dates keep source order,
	// zero dates sink to the end.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})
	return rows
}

func mapAppStore(r domain.AppStoreReview) domain.Review {
	date, _ := domain.ParseDate(r.Updated) // fail soft: zero date kept
	text := collapseSpace(r.Content)
	if text == "" {
		text = collapseSpace(r.Title)
	}
	return domain.Review{
		Date:     date,
		Stars:    clampStars(r.Rating),
		Reviewer: initials(r.Author),
		Text:     text,
		Platform: domain.PlatformAppStore,
	}
}

func mapPlay(r domain.PlayReview) domain.Review {
	stars := 0
	if r.Score >= 1 && r.Score <= 5 {
		stars = int(r.Score)
	}
	return domain.Review{
		Date:     r.At,
		Stars:    stars,
		Reviewer: initials(r.Author),
		Text:     collapseSpace(r.Text),
		Platform: domain.PlatformGooglePlay,
	}
}

func mapSite(r domain.SiteReview) domain.Review {
	date, _ := domain.ParseDate(r.Date)
	stars := 0
	if r.Rating >= 1 && r.Rating <= 5 {
		stars = r.Rating
	}
	return domain.Review{
		Date:     date,
		Stars:    stars,
		Reviewer: initials(r.Author),
		Text:     collapseSpace(r.Text),
		Platform: domain.PlatformTrustpilot,
	}
}

func dedupe(rows []domain.Review) []domain.Review {
	seen := make(map[domain.ReviewKey]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

/********** field helpers **********/

var (
	wsRe        = regexp.MustCompile(`\s+`)
	hasLetterRe = regexp.MustCompile(`[A-Za-z]`)
	anonRe      = regexp.MustCompile(`(?i)anonymous|anon\b|google user|trustpilot user`)
)

// initials reduces a full author name to its privacy-safe display
// form: first-part and last-part initials, "J. D.". Anonymous-ish
// names and empty input collapse to "A.".
func initials(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || anonRe.MatchString(name) {
		return "A."
	}
	var parts []string
	for _, p := range wsRe.Split(name, -1) {
		if hasLetterRe.MatchString(p) {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "A."
	}
	first := strings.ToUpper(string([]rune(parts[0])[0])) + "."
	if len(parts) == 1 {
		return first
	}
	last := strings.ToUpper(string([]rune(parts[len(parts)-1])[0])) + "."
	return first + " " + last
}

// clampStars coerces a rating string into 1..5; anything non-numeric
// is absent (0), out-of-range numerics clamp to the boundary.
func clampStars(val string) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(val), 64); ferr == nil {
			n = int(f)
		} else {
			return 0
		}
	}
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

func collapseSpace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}
