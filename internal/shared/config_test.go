package shared_test

import (
	"strings"
	"testing"
	"time"

	"reviewharvest/internal/shared"
)

func valid() shared.Config {
	return shared.Config{
		AppStoreID:         "584606479",
		GooglePlayID:       "com.example.app",
		TrustpilotURL:      "https://example.com/review/some.app",
		ScrapeAppStore:     true,
		ScrapeGooglePlay:   true,
		ScrapeTrustpilot:   true,
		MaxPagesAppStore:   20,
		MaxPagesGooglePlay: 50,
		MaxPagesTrustpilot: 50,
		RequestTimeout:     10 * time.Second,
		MaxRetries:         3,
		Workers:            4,
		GoodThreshold:      0.05,
		BadThreshold:       -0.05,
		OutputMode:         shared.OutputBoth,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestValidate_ReportsEveryOffendingField(t *testing.T) {
	c := valid()
	c.AppStoreID = "not-a-number"
	c.GooglePlayID = "missing dots"
	c.TrustpilotURL = "ftp://nope"
	c.MaxRetries = 0

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	msg := err.Error()
	for _, field := range []string{"APP_STORE_ID", "GOOGLE_PLAY_ID", "TRUSTPILOT_URL", "MAX_RETRIES"} {
		if !strings.Contains(msg, field) {
			t.Errorf("validation error does not mention %s: %s", field, msg)
		}
	}
}

func TestValidate_NoSourceEnabled(t *testing.T) {
	c := valid()
	c.ScrapeAppStore = false
	c.ScrapeGooglePlay = false
	c.ScrapeTrustpilot = false

	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "no source enabled") {
		t.Fatalf("expected a no-source error, got %v", err)
	}
}

func TestValidate_DisabledSourceSkipsItsFields(t *testing.T) {
	c := valid()
	c.ScrapeGooglePlay = false
	c.GooglePlayID = "" // fine while the source is off

	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	c := valid()
	c.GoodThreshold = -0.3
	c.BadThreshold = 0.3

	if err := c.Validate(); err == nil {
		t.Fatal("expected inverted thresholds to fail")
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	c := valid()
	c.LookbackDays = 365
	if got := c.Cutoff(now); !got.Equal(now.AddDate(0, 0, -365)) {
		t.Fatalf("cutoff = %v", got)
	}
	c.LookbackDays = 0
	if !c.Cutoff(now).IsZero() {
		t.Fatal("zero lookback must disable the window")
	}
}

func TestLoad_MalformedEnvFailsValidation(t *testing.T) {
	t.Setenv("APP_STORE_ID", "584606479")
	t.Setenv("GOOGLE_PLAY_ID", "com.example.app")
	t.Setenv("TRUSTPILOT_URL", "https://example.com/review/some.app")
	t.Setenv("MAX_RETRIES", "plenty")
	t.Setenv("SCRAPE_TRUSTPILOT", "yep")
	t.Setenv("SENTIMENT_GOOD_THRESHOLD", "high")

	c := shared.Load()
	if c.MaxRetries != 3 {
		t.Fatalf("malformed value must leave the default in place, got %d", c.MaxRetries)
	}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected malformed env values to fail validation")
	}
	msg := err.Error()
	for _, field := range []string{"MAX_RETRIES", "SCRAPE_TRUSTPILOT", "SENTIMENT_GOOD_THRESHOLD"} {
		if !strings.Contains(msg, field) {
			t.Errorf("validation error does not mention %s: %s", field, msg)
		}
	}
}

func TestLoad_WellFormedEnvIsClean(t *testing.T) {
	t.Setenv("APP_STORE_ID", "584606479")
	t.Setenv("GOOGLE_PLAY_ID", "com.example.app")
	t.Setenv("TRUSTPILOT_URL", "https://example.com/review/some.app")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("SCRAPE_TRUSTPILOT", "true")

	c := shared.Load()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.MaxRetries != 5 {
		t.Fatalf("MAX_RETRIES not applied: %d", c.MaxRetries)
	}
}

func TestValidate_NegativeDurations(t *testing.T) {
	c := valid()
	c.RequestDelay = -time.Second
	c.BackoffBase = -time.Millisecond

	err := c.Validate()
	if err == nil {
		t.Fatal("expected negative durations to fail validation")
	}
	msg := err.Error()
	for _, field := range []string{"REQUEST_DELAY_MS", "BACKOFF_BASE_MS"} {
		if !strings.Contains(msg, field) {
			t.Errorf("validation error does not mention %s: %s", field, msg)
		}
	}
}
