package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"reviewharvest/internal/adapters/appstore"
	"reviewharvest/internal/adapters/csvout"
	"reviewharvest/internal/adapters/googleplay"
	"reviewharvest/internal/adapters/httpfetch"
	"reviewharvest/internal/adapters/observability"
	"reviewharvest/internal/adapters/sentiment"
	"reviewharvest/internal/adapters/trustpilot"
	"reviewharvest/internal/app"
	"reviewharvest/internal/domain"
	"reviewharvest/internal/shared"
)

func main() {
	_ = godotenv.Load() // optional .env, real env wins
	cfg := shared.Load()

	// global logger (console in dev, JSON otherwise), tagged per run
	log.Logger = observability.NewLogger(cfg.AppEnv).With().
		Str("run_id", uuid.NewString()).Logger()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	observability.Serve(cfg.MetricsAddr)

	// SIGINT/SIGTERM stop scheduling new fetches; accumulated records
	// are still normalized, scored, and written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now().UTC()
	cutoff := cfg.Cutoff(now)

	fetchOpts := func(source string) httpfetch.Options {
		return httpfetch.Options{
			Timeout:     cfg.RequestTimeout,
			Delay:       cfg.RequestDelay,
			MaxRetries:  cfg.MaxRetries,
			BackoffBase: cfg.BackoffBase,
			Source:      source,
		}
	}

	var (
		appSrc  app.AppStoreSource
		playSrc app.PlaySource
		siteSrc app.SiteSource
	)
	if cfg.ScrapeAppStore {
		appSrc = appstore.New(httpfetch.New(fetchOpts("appstore")),
			cfg.AppStoreID, cfg.AppStoreCountry, cfg.MaxPagesAppStore, cutoff)
	}
	if cfg.ScrapeGooglePlay {
		feed := googleplay.NewBatchFeed(httpfetch.New(fetchOpts("googleplay")),
			cfg.GooglePlayID, cfg.GooglePlayLang, cfg.GooglePlayCtry)
		playSrc = googleplay.New(feed, cfg.MaxPagesGooglePlay, cfg.RequestDelay, cutoff)
	}
	if cfg.ScrapeTrustpilot {
		siteSrc = trustpilot.New(httpfetch.New(fetchOpts("trustpilot")),
			cfg.TrustpilotURL, cfg.MaxPagesTrustpilot, cfg.Workers, cutoff)
	}

	var scorer domain.Scorer = sentiment.NewLexicon(cfg.GoodThreshold, cfg.BadThreshold)
	if cfg.SentimentAPIURL != "" {
		scorer = sentiment.NewModel(cfg.SentimentAPIURL, cfg.RequestTimeout, scorer, cfg.GoodThreshold, cfg.BadThreshold)
	}

	writer := csvout.New(cfg.OutputDir, cfg.OutputPrefix, cfg.SingleFile)

	log.Info().
		Bool("app_store", cfg.ScrapeAppStore).
		Bool("google_play", cfg.ScrapeGooglePlay).
		Bool("trustpilot", cfg.ScrapeTrustpilot).
		Int("workers", cfg.Workers).
		Str("sentiment", scorer.Backend()).
		Str("mode", cfg.OutputMode).
		Msg("harvester starting")

	start := time.Now()
	sum, err := app.NewPipeline(cfg, appSrc, playSrc, siteSrc, scorer, writer).Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}

	for _, s := range sum.Sources {
		ev := log.Info()
		if s.Err != nil {
			ev = log.Warn().Err(s.Err)
		}
		ev.Str("platform", string(s.Platform)).
			Int("reviews", s.Reviews).
			Int("pages", s.Pages).
			Msg("source summary")
	}
	log.Info().
		Int("total", sum.Total).
		Dur("elapsed", time.Since(start)).
		Bool("interrupted", ctx.Err() != nil).
		Msg("harvest completed")
}
