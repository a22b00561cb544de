package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/chartrank/pkg/logger"
)

// Submission outcomes.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends a request with an optional JSON body.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// getJSON performs a GET and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// discoverUnits lists the visible chart difficulties as unit IDs.
func discoverUnits(ctx context.Context, client *HTTPClient, stats *Stats) ([]string, error) {
	var list chartList
	if err := client.getJSON(ctx, "/charts", &list); err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	var units []string
	for _, c := range list.Charts {
		for code, view := range c.Difficulties {
			if view != nil {
				units = append(units, c.ID+":"+code)
			}
		}
	}
	sort.Strings(units)
	stats.UnitsDiscovered = len(units)
	return units, nil
}

// registerUsers creates every user; a user that already exists is an error.
func registerUsers(ctx context.Context, config *Config, client *HTTPClient, users []User, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "registering users", logger.Int("count", len(users)))
	for _, u := range users {
		resp, err := client.do(ctx, http.MethodPost, "/users", u)
		if err != nil {
			return fmt.Errorf("register %s: %w", u.ID, err)
		}
		body, _ := readResponseBody(resp)
		if resp.StatusCode != StatusCreated {
			return fmt.Errorf("register %s: HTTP %d: %s", u.ID, resp.StatusCode, string(body))
		}
		stats.UsersRegistered++
		if config.Verbose {
			log.Debug(ctx, "user registered", logger.String("user_id", u.ID))
		}
	}
	return nil
}

// submitSkills sends submissions concurrently using a worker pool.
func submitSkills(ctx context.Context, config *Config, client *HTTPClient, subs []Submission, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting skills", logger.Int("count", len(subs)), logger.Int("workers", config.Workers))

	var ok, rejected, failed, sent int64

	subChan := make(chan Submission, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range subChan {
				switch submitSingle(ctx, client, sub) {
				case resultOK:
					atomic.AddInt64(&ok, 1)
				case resultRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if n := atomic.AddInt64(&sent, 1); config.Verbose && n%1000 == 0 {
					log.Debug(ctx, "submission progress", logger.Int64("sent", n), logger.Int("total", len(subs)))
				}
			}
		}()
	}

	go func() {
		defer close(subChan)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case subChan <- sub:
			}
		}
	}()

	wg.Wait()

	stats.SubmissionsSent = int(atomic.LoadInt64(&sent))
	stats.SubmissionsOK = int(atomic.LoadInt64(&ok))
	stats.SubmissionsRejected = int(atomic.LoadInt64(&rejected))
	stats.SubmissionsFailed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "skill submission completed",
		logger.Int("ok", stats.SubmissionsOK),
		logger.Int("rejected", stats.SubmissionsRejected),
		logger.Int("failed", stats.SubmissionsFailed),
	)
}

// submitSingle sends one submission and classifies the response. A 4xx is
// a rejection by the service; anything else that is not 200 is a failure.
func submitSingle(ctx context.Context, client *HTTPClient, sub Submission) string {
	path := "/users/" + url.PathEscape(sub.UserID) + "/skills/" + url.PathEscape(sub.UnitID)
	resp, err := client.do(ctx, http.MethodPut, path, map[string]int{"score": sub.Score})
	if err != nil {
		return resultFailed
	}
	if _, err := readResponseBody(resp); err != nil {
		return resultFailed
	}
	switch {
	case resp.StatusCode == StatusOK:
		return resultOK
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resultRejected
	default:
		return resultFailed
	}
}
