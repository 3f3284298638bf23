// backend/src/services/aegis_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/username/aegisnode/backend/src/models"
)

// aegisClientImpl implements the AegisClient interface over plain
// JSON-over-HTTP against the aegis-ai model service.
type aegisClientImpl struct {
	baseURL    string
	httpClient http.Client
}

// NewAegisClient creates the HTTP client for the aegis-ai service. Every
// call carries the configured timeout; callers treat any error as "upstream
// unavailable" and degrade locally.
func NewAegisClient(baseURL string, timeout time.Duration) AegisClient {
	return &aegisClientImpl{
		baseURL:    baseURL,
		httpClient: http.Client{Timeout: timeout},
	}
}

// ModelInfo fetches the model metadata from GET /model/info.
func (c *aegisClientImpl) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	var info ModelInfo
	if err := c.getJSON(ctx, "/model/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ScoreTransactions posts a batch to POST /model/score.
func (c *aegisClientImpl) ScoreTransactions(ctx context.Context, txns []ScoreRequest) (*ScoreResponse, error) {
	body := struct {
		Transactions []ScoreRequest `json:"transactions"`
	}{txns}
	var resp ScoreResponse
	if err := c.postJSON(ctx, "/model/score", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("aegis-ai score: empty results for %d transactions", len(txns))
	}
	return &resp, nil
}

// ExplainTransaction posts to POST /model/explain and returns the ordered
// feature importances.
func (c *aegisClientImpl) ExplainTransaction(ctx context.Context, req ExplainRequest) ([]models.XAIFeature, error) {
	var resp struct {
		Features []models.XAIFeature `json:"features"`
	}
	if err := c.postJSON(ctx, "/model/explain", req, &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}

// HealthCheck reports whether aegis-ai answers GET /health.
func (c *aegisClientImpl) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *aegisClientImpl) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("aegis-ai GET %s: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *aegisClientImpl) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("aegis-ai POST %s: marshal: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("aegis-ai POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *aegisClientImpl) do(req *http.Request, path string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("aegis-ai %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("aegis-ai %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("aegis-ai %s: decode response: %w", path, err)
	}
	return nil
}
