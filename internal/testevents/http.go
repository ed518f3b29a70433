package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Get performs a GET request and decodes a JSON response into out when set.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// createAttempts registers every planned attempt and fills in its id.
func createAttempts(ctx context.Context, client *HTTPClient, config *Config, attempts []Attempt) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	forEach(ctx, config.Workers, len(attempts), func(i int) {
		var created struct {
			ID string `json:"id"`
		}
		status, err := client.Post(ctx, "/attempts", map[string]string{
			"athleteId": attempts[i].AthleteID,
			"workoutId": config.WorkoutID,
			"scaleCode": config.Scale,
		}, &created)
		if err == nil && status != http.StatusCreated {
			err = fmt.Errorf("create attempt for %s: status %d", attempts[i].AthleteID, status)
		}
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return
		}
		attempts[i].ID = created.ID
	})
	if len(errs) > 0 {
		return fmt.Errorf("%d attempts failed, first: %w", len(errs), errs[0])
	}
	return nil
}

// postEvents sends events concurrently and returns accepted and failed counts.
func postEvents(ctx context.Context, client *HTTPClient, workers int, events []Event) (accepted, failed int) {
	var ok, bad int64
	forEach(ctx, workers, len(events), func(i int) {
		status, err := client.Post(ctx, "/events", events[i], nil)
		if err != nil || status != http.StatusAccepted {
			atomic.AddInt64(&bad, 1)
			return
		}
		atomic.AddInt64(&ok, 1)
	})
	return int(ok), int(bad)
}

// processedEvents reads the worker counters from /stats.
func processedEvents(ctx context.Context, client *HTTPClient) (int, error) {
	var stats struct {
		Processed float64 `json:"eventsProcessed"`
		Failed    float64 `json:"eventsFailed"`
	}
	status, err := client.Get(ctx, "/stats", &stats)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("stats returned status %d", status)
	}
	return int(stats.Processed + stats.Failed), nil
}

func getLeaderboard(ctx context.Context, client *HTTPClient, config *Config) (Leaderboard, error) {
	var lb Leaderboard
	q := url.Values{"scope": {"COMMUNITY"}, "period": {"ALL_TIME"}, "scale": {config.Scale}}
	status, err := client.Get(ctx, "/rankings/"+url.PathEscape(config.WorkoutID)+"?"+q.Encode(), &lb)
	if err != nil {
		return Leaderboard{}, err
	}
	if status != http.StatusOK {
		return Leaderboard{}, fmt.Errorf("leaderboard returned status %d", status)
	}
	return lb, nil
}

// forEach runs fn for indexes [0,n) on a bounded number of goroutines.
func forEach(ctx context.Context, workers, n int, fn func(i int)) {
	workers = max(workers, 1)
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
send:
	for i := range n {
		select {
		case <-ctx.Done():
			break send
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}
