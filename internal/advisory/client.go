package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
	"github.com/denisok6893-rgb/building-insights/internal/observability"
)

var (
	// ErrUnavailable covers transport failures and non-2xx responses.
	ErrUnavailable = errors.New("advisory service unavailable")
	// ErrServiceReported is returned when a response carries an error field.
	ErrServiceReported = errors.New("advisory service reported an error")
	ErrInvalidOutcome  = errors.New("unknown recommendation outcome")
)

const (
	endpointSuitability    = "/check_suitability"
	endpointRecommendation = "/recommend_area"
	endpointMetrics        = "/model_metrics"
)

// Client talks to the external prediction/recommendation service. Calls are
// single attempts; there is no retry.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	metrics *observability.Metrics
}

func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger, m *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
		metrics: m,
	}
}

func (c *Client) CheckSuitability(ctx context.Context, q domain.SuitabilityQuery) (domain.Suitability, error) {
	var resp struct {
		domain.Suitability
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, endpointSuitability, q, &resp); err != nil {
		return domain.Suitability{}, err
	}
	if resp.Error != "" {
		return domain.Suitability{}, fmt.Errorf("%w: %s", ErrServiceReported, resp.Error)
	}
	return resp.Suitability, nil
}

func (c *Client) RecommendAreas(ctx context.Context, q domain.RecommendationQuery) (domain.Recommendation, error) {
	if !ValidOutcome(q.Outcome) {
		return domain.Recommendation{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, q.Outcome)
	}
	var resp struct {
		domain.Recommendation
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, endpointRecommendation, q, &resp); err != nil {
		return domain.Recommendation{}, err
	}
	if resp.Error != "" {
		return domain.Recommendation{}, fmt.Errorf("%w: %s", ErrServiceReported, resp.Error)
	}
	if resp.Areas == nil {
		resp.Areas = []string{}
	}
	return resp.Recommendation, nil
}

func (c *Client) ModelMetrics(ctx context.Context) (domain.ModelMetrics, error) {
	var resp struct {
		domain.ModelMetrics
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodGet, endpointMetrics, nil, &resp); err != nil {
		return domain.ModelMetrics{}, err
	}
	if resp.Error != "" {
		return domain.ModelMetrics{}, fmt.Errorf("%w: %s", ErrServiceReported, resp.Error)
	}
	return resp.ModelMetrics, nil
}

// ValidOutcome reports whether the service knows how to rank areas by o.
func ValidOutcome(o string) bool {
	switch o {
	case domain.OutcomeOccupancy, domain.OutcomeEnergy, domain.OutcomeMaintenance:
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.AdvisoryRequest(endpoint, time.Since(start), err == nil)
		if err != nil {
			c.log.Warn("advisory request failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rdr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.CopyN(io.Discard, resp.Body, 512)
		return fmt.Errorf("%w: %s status %d", ErrUnavailable, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, endpoint, err)
	}
	return nil
}
