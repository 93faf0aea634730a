package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"reviewharvest/internal/domain"
	"reviewharvest/internal/shared"
)

// Source client ports. A nil source is a disabled one.
type AppStoreSource interface {
	Harvest(ctx context.Context) ([]domain.AppStoreReview, int, error)
}

type PlaySource interface {
	Harvest(ctx context.Context) ([]domain.PlayReview, int, error)
}

type SiteSource interface {
	Harvest(ctx context.Context) ([]domain.SiteReview, int, error)
}

// Pipeline sequences the source clients, normalizes and scores their
// output, and hands the rows to the writer. Source and page failures
// are contained per source; only a writer failure or "nothing to do"
// is fatal.
type Pipeline struct {
	cfg      shared.Config
	appStore AppStoreSource
	play     PlaySource
	site     SiteSource
	scorer   domain.Scorer
	writer   domain.ReviewWriter
}

func NewPipeline(cfg shared.Config, a AppStoreSource, p PlaySource, s SiteSource, scorer domain.Scorer, w domain.ReviewWriter) *Pipeline {
	return &Pipeline{cfg: cfg, appStore: a, play: p, site: s, scorer: scorer, writer: w}
}

// Summary reports what one run did, source by source.
type Summary struct {
	Sources []domain.SourceResult
	Total   int // unified records after dedupe
}

var ErrNoSources = errors.New("no source client configured")

// Run executes one harvest. A canceled ctx stops scheduling new work
// but whatever was accumulated is still normalized, scored, and
// written. Partial results beat total failure.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if p.appStore == nil && p.play == nil && p.site == nil {
		return Summary{}, ErrNoSources
	}

	var (
		batches domain.SourceBatches
		sum     Summary
	)

	if p.appStore != nil && ctx.Err() == nil {
		recs, pages, err := p.appStore.Harvest(ctx)
		batches.AppStore = recs
		sum.Sources = append(sum.Sources, sourceResult(domain.PlatformAppStore, len(recs), pages, err))
	}
	if p.play != nil && ctx.Err() == nil {
		recs, pages, err := p.play.Harvest(ctx)
		batches.GooglePlay = recs
		sum.Sources = append(sum.Sources, sourceResult(domain.PlatformGooglePlay, len(recs), pages, err))
	}
	if p.site != nil && ctx.Err() == nil {
		recs, pages, err := p.site.Harvest(ctx)
		batches.Site = recs
		sum.Sources = append(sum.Sources, sourceResult(domain.PlatformTrustpilot, len(recs), pages, err))
	}

	rows := Normalize(batches)
	sum.Total = len(rows)

	mode := p.cfg.OutputMode
	if mode == shared.OutputReviews || mode == shared.OutputBoth {
		if err := p.writer.Write(rows, false); err != nil {
			return sum, err
		}
	}
	if mode == shared.OutputAnalysis || mode == shared.OutputBoth {
		scored := p.score(rows)
		if err := p.writer.Write(scored, true); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// score enriches a copy of the rows; the input slice stays pristine
// for the unscored output file.
func (p *Pipeline) score(rows []domain.Review) []domain.Review {
	out := make([]domain.Review, len(rows))
	copy(out, rows)
	for i := range out {
		s, label := p.scorer.Score(out[i].Text)
		sc := s
		out[i].Score = &sc
		out[i].Label = label
	}
	return out
}

func sourceResult(pf domain.Platform, n, pages int, err error) domain.SourceResult {
	// Context cancellation is an interruption, not a source failure;
	// the partial batch stands on its own.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info().Str("platform", string(pf)).Int("reviews", n).Msg("source interrupted, keeping partial batch")
		err = nil
	}
	if err != nil {
		log.Warn().Str("platform", string(pf)).Int("reviews", n).Int("pages", pages).Err(err).
			Msg("source stopped early")
	} else {
		log.Info().Str("platform", string(pf)).Int("reviews", n).Int("pages", pages).Msg("source done")
	}
	return domain.SourceResult{Platform: pf, Reviews: n, Pages: pages, Err: err}
}
