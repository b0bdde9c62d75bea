// Package request provides the HTTP client shared by the catalog and map
// data fetchers. Requests are serialized per provider through a worker
// queue, with bounded retries and a politeness gap between calls so the
// third-party endpoints are never hammered.
package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"wikimap/pkg/config"
	"wikimap/pkg/tracker"
	"wikimap/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("wikimap region reconciler (wikimap/%s)", version.Version)

// Client handles HTTP requests with per-provider queuing and retries.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker

	retries    int
	politeness time.Duration
	backoff    config.BackoffConfig

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(cfg config.RequestConfig, t *tracker.Tracker) *Client {
	timeout := cfg.Timeout.D()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		tracker:    t,
		retries:    retries,
		politeness: cfg.Politeness.D(),
		backoff:    cfg.Backoff,
		queues:     make(map[string]chan job),
	}
}

// Get performs a GET request with custom headers through the provider queue.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(ctx, req, headers)
}

// PostForm performs a form-encoded POST request through the provider queue.
func (c *Client) PostForm(ctx context.Context, u string, form url.Values) ([]byte, error) {
	body := []byte(form.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	return c.do(ctx, req, headers)
}

func (c *Client) do(ctx context.Context, req *http.Request, headers map[string]string) ([]byte, error) {
	provider := normalizeProvider(req.URL.Host)

	respChan := make(chan jobResult, 1)
	c.dispatch(provider, job{req: req, headers: headers, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	// Group all wikidata subdomains (www, query, etc.) into one provider
	if strings.HasSuffix(host, ".wikidata.org") || host == "wikidata.org" {
		return "wikidata"
	}
	if strings.Contains(host, "overpass") {
		return "overpass"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}

	// We block here if the queue is full, effectively throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", j.req.Context().Err())
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		// Apply User-Agent (Default if not provided)
		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		body, err := c.executeWithRetry(provider, j.req)

		if err == nil {
			c.tracker.TrackAPISuccess(provider)
		} else {
			c.tracker.TrackAPIFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}

		// Politeness gap between remote calls
		if c.politeness > 0 {
			time.Sleep(c.politeness)
		}
	}
}

// executeWithRetry attempts the request up to c.retries times, pausing
// between attempts according to the configured backoff strategy.
func (c *Client) executeWithRetry(provider string, req *http.Request) ([]byte, error) {
	var body []byte
	var err error

	for attempt := 0; attempt < c.retries; attempt++ {
		// Verify context is still alive before dialing
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		if attempt > 0 {
			c.tracker.TrackRetry(provider)
			sleepDur := delayFor(c.backoff.Strategy, c.backoff.BaseDelay.D(), c.backoff.MaxDelay.D(), attempt-1)
			slog.Warn("Retrying request", "provider", provider, "url", req.URL, "attempt", attempt+1, "pause", sleepDur)
			select {
			case <-time.After(sleepDur):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		// Bodies of POST requests must be replayable across attempts
		if req.GetBody != nil {
			if rc, berr := req.GetBody(); berr == nil {
				req.Body = rc
			}
		}

		body, err = c.executeOnce(req)
		if err == nil {
			return body, nil
		}

		// Context cancellation is not retryable
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		slog.Debug("Request attempt failed", "provider", provider, "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("%s: retries exhausted: %w", provider, err)
}

func (c *Client) executeOnce(req *http.Request) ([]byte, error) {
	slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 429 and 5xx are transient; 4xx is a hard error but we retry it too,
	// since Overpass occasionally serves 400 under load for valid queries.
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return body, nil
}
