package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"wikimap/pkg/config"
	"wikimap/pkg/tracker"
)

func testConfig() config.RequestConfig {
	return config.RequestConfig{
		Retries: 3,
		Timeout: config.Duration(5 * time.Second),
		Backoff: config.BackoffConfig{
			Strategy:  StrategyFixed,
			BaseDelay: config.Duration(10 * time.Millisecond),
		},
	}
}

func TestGet_Sequential(t *testing.T) {
	// Handler sleeps to prove sequential execution per provider
	var conc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)

		if current > 1 {
			t.Errorf("Concurrency detected! Expected sequential.")
		}
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(200)
		if _, err := w.Write([]byte("ok")); err != nil {
			t.Logf("Write failed: %v", err)
		}
	}))
	defer svr.Close()

	client := New(testConfig(), tracker.New())

	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			if _, err := client.Get(context.Background(), svr.URL, nil); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
}

func TestGet_Retry(t *testing.T) {
	attempts := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(429)
			return
		}
		w.WriteHeader(200)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Logf("Write failed: %v", err)
		}
	}))
	defer svr.Close()

	client := New(testConfig(), tracker.New())

	body, err := client.Get(context.Background(), svr.URL, nil)
	if err != nil {
		t.Fatalf("Expected success after retry, got error: %v", err)
	}
	if string(body) != "success" {
		t.Errorf("Expected 'success', got '%s'", string(body))
	}
}

func TestGet_RetriesExhausted(t *testing.T) {
	attempts := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(500)
	}))
	defer svr.Close()

	tr := tracker.New()
	client := New(testConfig(), tr)

	if _, err := client.Get(context.Background(), svr.URL, nil); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	snap := tr.Snapshot()
	host, _ := url.Parse(svr.URL)
	stats := snap[normalizeProvider(host.Host)]
	if stats.APIFailures != 1 {
		t.Errorf("expected 1 tracked failure, got %d", stats.APIFailures)
	}
	if stats.Retries != 2 {
		t.Errorf("expected 2 tracked retries, got %d", stats.Retries)
	}
}

func TestPostForm_ReplaysBodyAcrossRetries(t *testing.T) {
	attempts := 0
	var lastBody string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		lastBody = r.FormValue("data")
		if attempts < 2 {
			w.WriteHeader(503)
			return
		}
		w.WriteHeader(200)
	}))
	defer svr.Close()

	client := New(testConfig(), tracker.New())

	form := url.Values{}
	form.Set("data", "[out:json];area(123);out;")
	if _, err := client.PostForm(context.Background(), svr.URL, form); err != nil {
		t.Fatalf("PostForm failed: %v", err)
	}
	if lastBody != "[out:json];area(123);out;" {
		t.Errorf("body not replayed on retry, got %q", lastBody)
	}
}

func TestGet_ContextCancelled(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer svr.Close()

	client := New(testConfig(), tracker.New())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := client.Get(ctx, svr.URL, nil); err == nil {
		t.Error("expected context error")
	}
}

func TestNormalizeProvider(t *testing.T) {
	cases := map[string]string{
		"query.wikidata.org":    "wikidata",
		"www.wikidata.org":      "wikidata",
		"wikidata.org":          "wikidata",
		"overpass-api.de":       "overpass",
		"overpass.kumi.systems": "overpass",
		"example.com":           "example.com",
	}
	for host, want := range cases {
		if got := normalizeProvider(host); got != want {
			t.Errorf("normalizeProvider(%q) = %q, want %q", host, got, want)
		}
	}
}
