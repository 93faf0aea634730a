package googleplay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"reviewharvest/internal/adapters/googleplay"
	"reviewharvest/internal/adapters/httpfetch"
)

// canned batchexecute envelope: anti-XSSI prefix, outer frame, and an
// embedded JSON string holding [[review...], [null, nextToken]].
const envelope = ")]}'\n\n" +
	`[["wrb.fr","UsvDTd","[[[\"rev-1\",[\"Pat Example\",[]],5,null,\"love it\",[1717237800],null],` +
	`[\"rev-2\",[\"Sam Person\",[]],2,null,\"meh\",[1717151400],null]],[null,\"TOKEN-NEXT\"]]",null,null]]`

const emptyEnvelope = ")]}'\n\n" + `[["wrb.fr","UsvDTd",null,null,null]]`

func testFeed(ts *httptest.Server) *googleplay.BatchFeed {
	f := googleplay.NewBatchFeed(httpfetch.New(httpfetch.Options{
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		BackoffBase: 5 * time.Millisecond,
		Source:      "googleplay",
	}), "com.example.app", "en", "us")
	f.SetBaseURL(ts.URL)
	return f
}

func TestBatchFeed_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("f.req") == "" {
			t.Error("expected an f.req form payload")
		}
		w.Write([]byte(envelope))
	}))
	defer ts.Close()

	batch, next, err := testFeed(ts).Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(batch))
	}
	if next != "TOKEN-NEXT" {
		t.Fatalf("expected continuation token, got %q", next)
	}
	r := batch[0]
	if r.ReviewID != "rev-1" || r.Author != "Pat Example" || r.Score != 5 || r.Text != "love it" {
		t.Fatalf("unexpected first review: %+v", r)
	}
	if r.At.IsZero() {
		t.Fatal("expected the unix timestamp to be parsed")
	}
}

func TestBatchFeed_RetriesTransientFailure(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(500)
			return
		}
		w.Write([]byte(envelope))
	}))
	defer ts.Close()

	batch, next, err := testFeed(ts).Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("a transient 500 must be retried, got: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected the endpoint re-contacted after the 500, got %d hits", n)
	}
	if len(batch) != 2 || next != "TOKEN-NEXT" {
		t.Fatalf("expected the retried batch, got %d reviews, token %q", len(batch), next)
	}
}

func TestHarvest_SurvivesTransientFeedFailure(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(500)
		case 2:
			w.Write([]byte(envelope))
		default:
			w.Write([]byte(emptyEnvelope))
		}
	}))
	defer ts.Close()

	cl := googleplay.New(testFeed(ts), 50, 0, time.Time{})
	recs, pages, err := cl.Harvest(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected the batch behind the transient failure, got %d records", len(recs))
	}
	if pages != 2 {
		t.Fatalf("expected 2 batches walked, got %d", pages)
	}
}

func TestBatchFeed_EmptyFrameEndsFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyEnvelope))
	}))
	defer ts.Close()

	batch, next, err := testFeed(ts).Fetch(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(batch) != 0 || next != "" {
		t.Fatalf("expected an exhausted feed, got %d reviews, token %q", len(batch), next)
	}
}
