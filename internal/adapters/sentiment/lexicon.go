package sentiment

import (
	"strings"

	"github.com/jonreiter/govader"
)

// Lexicon is the default scorer: a rule-based VADER analyzer needing
// no external model. Deterministic for identical input text.
type Lexicon struct {
	an   *govader.SentimentIntensityAnalyzer
	good float64
	bad  float64
}

func NewLexicon(goodThreshold, badThreshold float64) *Lexicon {
	return &Lexicon{
		an:   govader.NewSentimentIntensityAnalyzer(),
		good: goodThreshold,
		bad:  badThreshold,
	}
}

func (l *Lexicon) Score(text string) (float64, string) {
	if strings.TrimSpace(text) == "" {
		return 0, labelFor(0, l.good, l.bad)
	}
	score := l.an.PolarityScores(text).Compound
	return score, labelFor(score, l.good, l.bad)
}

func (l *Lexicon) Backend() string { return "lexicon/vader" }

// labelFor maps a compound score in [-1,1] onto the discrete label.
// The thresholds come from configuration; this is the only place they
// are applied.
func labelFor(score, good, bad float64) string {
	switch {
	case score > good:
		return "good"
	case score < bad:
		return "bad"
	default:
		return "neutral"
	}
}
