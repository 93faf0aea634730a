package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reviewharvest/internal/domain"
)

// Keeps oversized reviews from blowing past model input limits.
const maxModelRunes = 4096

// Model delegates scoring to an external inference endpoint and falls
// back to the wrapped scorer on any failure. Scoring never aborts the
// pipeline.
type Model struct {
	url      string
	hc       *http.Client
	fallback domain.Scorer
	good     float64
	bad      float64
}

func NewModel(url string, timeout time.Duration, fallback domain.Scorer, goodThreshold, badThreshold float64) *Model {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Model{
		url:      url,
		hc:       &http.Client{Timeout: timeout},
		fallback: fallback,
		good:     goodThreshold,
		bad:      badThreshold,
	}
}

func (m *Model) Score(text string) (float64, string) {
	if strings.TrimSpace(text) == "" {
		return 0, labelFor(0, m.good, m.bad)
	}
	score, err := m.remoteScore(text)
	if err != nil {
		log.Warn().Err(err).Msg("model scorer failed, falling back to lexicon")
		return m.fallback.Score(text)
	}
	return score, labelFor(score, m.good, m.bad)
}

func (m *Model) Backend() string { return "model+" + m.fallback.Backend() }

func (m *Model) remoteScore(text string) (float64, error) {
	if r := []rune(text); len(r) > maxModelRunes {
		text = string(r[:maxModelRunes])
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.hc.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("model endpoint: status %d", resp.StatusCode)
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Score < -1 || out.Score > 1 {
		return 0, fmt.Errorf("model endpoint: score %v out of range", out.Score)
	}
	return out.Score, nil
}
