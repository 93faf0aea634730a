package shared

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// OutputMode selects which files a run produces.
const (
	OutputReviews  = "reviews"
	OutputAnalysis = "analysis"
	OutputBoth     = "both"
)

// Config is built once in main and passed by value into every
// constructor. Components never read the environment themselves.
type Config struct {
	AppEnv string

	AppStoreID      string
	AppStoreCountry string
	GooglePlayID    string
	GooglePlayLang  string
	GooglePlayCtry  string
	TrustpilotURL   string

	ScrapeAppStore   bool
	ScrapeGooglePlay bool
	ScrapeTrustpilot bool

	MaxPagesAppStore   int
	MaxPagesGooglePlay int
	MaxPagesTrustpilot int

	RequestTimeout time.Duration
	RequestDelay   time.Duration // pacing between successful calls
	MaxRetries     int
	BackoffBase    time.Duration
	Workers        int
	LookbackDays   int // 0 disables the recency window

	SentimentAPIURL string // empty => lexicon backend only
	GoodThreshold   float64
	BadThreshold    float64

	OutputDir    string
	OutputPrefix string
	SingleFile   bool
	OutputMode   string

	MetricsAddr string

	// malformed env values found by Load; Validate surfaces them
	loadErrs []error
}

// Load reads the environment. A malformed numeric, boolean, or float
// value is recorded rather than silently defaulted, so Validate can
// fail fast naming the field.
func Load() Config {
	var bad []error
	atoi := func(k string, def int) int {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			bad = append(bad, fmt.Errorf("%s must be an integer, got %q", k, v))
			return def
		}
		return n
	}
	envBool := func(k string, def bool) bool {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			bad = append(bad, fmt.Errorf("%s must be a boolean, got %q", k, v))
			return def
		}
		return b
	}
	envFloat := func(k string, def float64) float64 {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			bad = append(bad, fmt.Errorf("%s must be a number, got %q", k, v))
			return def
		}
		return f
	}

	c := Config{
		AppEnv: env("APP_ENV", "prod"),

		AppStoreID:      env("APP_STORE_ID", ""),
		AppStoreCountry: env("APP_STORE_COUNTRY", "us"),
		GooglePlayID:    env("GOOGLE_PLAY_ID", ""),
		GooglePlayLang:  env("GOOGLE_PLAY_LANG", "en"),
		GooglePlayCtry:  env("GOOGLE_PLAY_COUNTRY", "us"),
		TrustpilotURL:   env("TRUSTPILOT_URL", ""),

		ScrapeAppStore:   envBool("SCRAPE_APP_STORE", true),
		ScrapeGooglePlay: envBool("SCRAPE_GOOGLE_PLAY", true),
		ScrapeTrustpilot: envBool("SCRAPE_TRUSTPILOT", true),

		MaxPagesAppStore:   atoi("MAX_PAGES_APP_STORE", 20),
		MaxPagesGooglePlay: atoi("MAX_PAGES_GOOGLE_PLAY", 50),
		MaxPagesTrustpilot: atoi("MAX_PAGES_TRUSTPILOT", 50),

		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		RequestDelay:   time.Duration(atoi("REQUEST_DELAY_MS", 300)) * time.Millisecond,
		MaxRetries:     atoi("MAX_RETRIES", 3),
		BackoffBase:    time.Duration(atoi("BACKOFF_BASE_MS", 1200)) * time.Millisecond,
		Workers:        atoi("MAX_WORKERS", 4),
		LookbackDays:   atoi("LOOKBACK_DAYS", 365),

		SentimentAPIURL: env("SENTIMENT_API_URL", ""),
		GoodThreshold:   envFloat("SENTIMENT_GOOD_THRESHOLD", 0.05),
		BadThreshold:    envFloat("SENTIMENT_BAD_THRESHOLD", -0.05),

		OutputDir:    env("OUTPUT_DIR", "."),
		OutputPrefix: env("OUTPUT_PREFIX", "app"),
		SingleFile:   envBool("SINGLE_FILE", true),
		OutputMode:   env("OUTPUT_MODE", OutputBoth),

		MetricsAddr: env("METRICS_ADDR", ""),
	}
	c.loadErrs = bad
	return c
}

var playIDRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)

// Validate checks the whole config before any network activity and
// reports every offending field at once.
func (c Config) Validate() error {
	errs := append([]error(nil), c.loadErrs...)
	bad := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf(format, a...))
	}

	if !c.ScrapeAppStore && !c.ScrapeGooglePlay && !c.ScrapeTrustpilot {
		bad("no source enabled: set at least one of SCRAPE_APP_STORE, SCRAPE_GOOGLE_PLAY, SCRAPE_TRUSTPILOT")
	}
	if c.ScrapeAppStore {
		if strings.TrimSpace(c.AppStoreID) == "" {
			bad("APP_STORE_ID is required when SCRAPE_APP_STORE is enabled")
		} else if _, err := strconv.ParseUint(c.AppStoreID, 10, 64); err != nil {
			bad("APP_STORE_ID must be numeric, got %q", c.AppStoreID)
		}
	}
	if c.ScrapeGooglePlay {
		if strings.TrimSpace(c.GooglePlayID) == "" {
			bad("GOOGLE_PLAY_ID is required when SCRAPE_GOOGLE_PLAY is enabled")
		} else if !playIDRe.MatchString(c.GooglePlayID) {
			bad("GOOGLE_PLAY_ID must look like com.example.app, got %q", c.GooglePlayID)
		}
	}
	if c.ScrapeTrustpilot {
		if strings.TrimSpace(c.TrustpilotURL) == "" {
			bad("TRUSTPILOT_URL is required when SCRAPE_TRUSTPILOT is enabled")
		} else if !strings.HasPrefix(c.TrustpilotURL, "http://") && !strings.HasPrefix(c.TrustpilotURL, "https://") {
			bad("TRUSTPILOT_URL must start with http:// or https://, got %q", c.TrustpilotURL)
		}
	}
	for name, v := range map[string]int{
		"MAX_PAGES_APP_STORE":     c.MaxPagesAppStore,
		"MAX_PAGES_GOOGLE_PLAY":   c.MaxPagesGooglePlay,
		"MAX_PAGES_TRUSTPILOT":    c.MaxPagesTrustpilot,
		"MAX_RETRIES":             c.MaxRetries,
		"MAX_WORKERS":             c.Workers,
		"REQUEST_TIMEOUT_SECONDS": int(c.RequestTimeout / time.Second),
	} {
		if v <= 0 {
			bad("%s must be positive, got %d", name, v)
		}
	}
	if c.LookbackDays < 0 {
		bad("LOOKBACK_DAYS must be >= 0, got %d", c.LookbackDays)
	}
	for name, d := range map[string]time.Duration{
		"REQUEST_DELAY_MS": c.RequestDelay,
		"BACKOFF_BASE_MS":  c.BackoffBase,
	} {
		if d < 0 {
			bad("%s must be >= 0, got %v", name, d)
		}
	}
	if c.GoodThreshold <= c.BadThreshold {
		bad("SENTIMENT_GOOD_THRESHOLD (%v) must be greater than SENTIMENT_BAD_THRESHOLD (%v)", c.GoodThreshold, c.BadThreshold)
	}
	switch c.OutputMode {
	case OutputReviews, OutputAnalysis, OutputBoth:
	default:
		bad("OUTPUT_MODE must be one of reviews|analysis|both, got %q", c.OutputMode)
	}

	return errors.Join(errs...)
}

// Cutoff returns the oldest review date kept, or the zero time when
// the lookback window is disabled.
func (c Config) Cutoff(now time.Time) time.Time {
	if c.LookbackDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -c.LookbackDays)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
