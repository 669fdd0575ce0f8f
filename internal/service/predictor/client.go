package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/medtrack/adherence-api/pkg/circuitbreaker"
)

// Client calls the external risk-prediction service. Responses are cached
// for a short TTL keyed by (hour, weekday, delay bucket) since the model is
// deterministic per context, and a circuit breaker keeps a flapping
// predictor from slowing down every reminder operation. Fallback to the
// neutral risk value is the caller's responsibility.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *circuitbreaker.CircuitBreaker
	cache   *cache.Cache
}

type Config struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type predictRequest struct {
	Hour         int     `json:"hour"`
	DayOfWeek    int     `json:"day_of_week"`
	DelayMinutes float64 `json:"delay_minutes"`
}

type predictResponse struct {
	Risk float64 `json:"risk"`
}

func NewClient(cfg Config) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Client{
		baseURL: cfg.URL,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:             "risk-predictor",
			FailureThreshold: 5,
			Interval:         30 * time.Second,
			Timeout:          15 * time.Second,
		}),
		cache: cache.New(ttl, 2*ttl),
	}
}

// Predict returns the miss probability for the given dose context.
func (c *Client) Predict(ctx context.Context, hour, weekday int, delayMinutes float64) (float64, error) {
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range: %d", hour)
	}
	if weekday < 0 || weekday > 6 {
		return 0, fmt.Errorf("weekday out of range: %d", weekday)
	}
	if delayMinutes < 0 {
		delayMinutes = 0
	}

	key := cacheKey(hour, weekday, delayMinutes)
	if v, ok := c.cache.Get(key); ok {
		return v.(float64), nil
	}

	var risk float64
	err := c.cb.Execute(func() error {
		var callErr error
		risk, callErr = c.call(ctx, hour, weekday, delayMinutes)
		return callErr
	})
	if err != nil {
		return 0, err
	}

	c.cache.SetDefault(key, risk)
	return risk, nil
}

func (c *Client) call(ctx context.Context, hour, weekday int, delayMinutes float64) (float64, error) {
	body, err := json.Marshal(predictRequest{
		Hour:         hour,
		DayOfWeek:    weekday,
		DelayMinutes: delayMinutes,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("predictor returned status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode predict response: %w", err)
	}

	if out.Risk < 0 || out.Risk > 1 {
		return 0, fmt.Errorf("predictor returned risk out of range: %f", out.Risk)
	}
	return out.Risk, nil
}

// cacheKey buckets delay into 5-minute steps so near-identical contexts
// share a cache entry.
func cacheKey(hour, weekday int, delayMinutes float64) string {
	return fmt.Sprintf("%d:%d:%d", hour, weekday, int(delayMinutes)/5)
}
