package trustpilot_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"reviewharvest/internal/adapters/httpfetch"
	"reviewharvest/internal/adapters/trustpilot"
)

func serverPage(page, lastPage, cards int) string {
	html := `<html><body><section data-testid="reviews-list">`
	for i := 0; i < cards; i++ {
		html += fmt.Sprintf(
			`<article><div data-testid="consumer-info"><span>Reviewer %d-%d</span></div>`+
				`<img alt="Rated 4 out of 5 stars"/><time datetime="2025-07-0%dT10:00:00.000Z"></time>`+
				`<div data-testid="review-content"><p>page %d review %d</p></div></article>`,
			page, i, (i%9)+1, page, i)
	}
	html += "</section>"
	if lastPage > 0 {
		html += fmt.Sprintf(`<a name="pagination-button-last" href="?page=%d">%d</a>`, lastPage, lastPage)
	}
	return html + "</body></html>"
}

func pageOf(r *http.Request) int {
	if p := r.URL.Query().Get("page"); p != "" {
		n, _ := strconv.Atoi(p)
		return n
	}
	return 1
}

func client(ts *httptest.Server, maxPages, workers int) *trustpilot.Client {
	f := httpfetch.New(httpfetch.Options{
		Timeout:     2 * time.Second,
		MaxRetries:  2,
		BackoffBase: 5 * time.Millisecond,
		Source:      "trustpilot",
	})
	return trustpilot.New(f, ts.URL, maxPages, workers, time.Time{})
}

func TestHarvest_AllPages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serverPage(pageOf(r), 3, 4)))
	}))
	defer ts.Close()

	rows, pages, err := client(ts, 50, 3).Harvest(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	if len(rows) != 12 {
		t.Fatalf("expected 12 reviews, got %d", len(rows))
	}
}

func TestHarvest_PageFailureDoesNotAbort(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pageOf(r) == 3 {
			w.WriteHeader(500) // fails all retries
			return
		}
		w.Write([]byte(serverPage(pageOf(r), 10, 2)))
	}))
	defer ts.Close()

	rows, pages, err := client(ts, 50, 4).Harvest(context.Background())
	if err != nil {
		t.Fatalf("a single dead page must not abort the walk: %v", err)
	}
	if pages != 9 {
		t.Fatalf("expected 9 successful pages out of 10, got %d", pages)
	}
	if len(rows) != 18 {
		t.Fatalf("expected 18 reviews from the surviving pages, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Page == 3 {
			t.Fatalf("page 3 failed yet contributed a record: %+v", r)
		}
	}
}

func TestHarvest_DeadFirstPageIsTerminal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer ts.Close()

	rows, _, err := client(ts, 50, 2).Harvest(context.Background())
	if err == nil {
		t.Fatal("expected a terminal error when page 1 never succeeds")
	}
	if len(rows) != 0 {
		t.Fatalf("expected no records, got %d", len(rows))
	}
}

func TestHarvest_MaxPagesCapsMissingPagination(t *testing.T) {
	var served int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&served, 1)
		w.Write([]byte(serverPage(pageOf(r), 0, 1))) // no pagination control
	}))
	defer ts.Close()

	_, pages, err := client(ts, 5, 2).Harvest(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if pages != 5 || atomic.LoadInt32(&served) != 5 {
		t.Fatalf("expected the max-page cap to bound the walk: pages=%d served=%d", pages, served)
	}
}

func TestHarvest_InterruptionKeepsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var served int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&served, 1) >= 4 {
			cancel() // stop mid-run; later acquisitions must drop their pages
			time.Sleep(30 * time.Millisecond)
		}
		w.Write([]byte(serverPage(pageOf(r), 10, 2)))
	}))
	defer ts.Close()

	rows, pages, err := client(ts, 50, 1).Harvest(ctx)
	if err != nil {
		t.Fatalf("interruption must not surface as an error: %v", err)
	}
	if pages >= 10 {
		t.Fatalf("expected unscheduled pages to be dropped, walked %d", pages)
	}
	if len(rows) == 0 {
		t.Fatal("expected the records accumulated before the stop to survive")
	}
	for _, r := range rows {
		if r.Text == "" {
			t.Fatalf("partial results must still be complete records: %+v", r)
		}
	}
}
