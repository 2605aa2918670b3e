// Package recommend implements the natural-language recommendation search
// session against the remote recommendation service.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"thecrate/internal/core"
)

// ServiceError is an error reported inside an otherwise well-formed
// response envelope.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("recommendation service error: %s", e.Message)
}

type requestBody struct {
	Prompt      string `json:"prompt"`
	RefreshSeed int64  `json:"refresh_seed,omitempty"`
}

type envelope struct {
	Tracks      []core.Track `json:"tracks"`
	TotalFound  int          `json:"total_found"`
	QueriesUsed []string     `json:"queries_used"`
	Analysis    *analysis    `json:"analysis"`
	IsRefresh   bool         `json:"is_refresh"`
	RefreshSeed int64        `json:"refresh_seed"`
	Error       string       `json:"error"`
}

type analysis struct {
	Approach string `json:"approach"`
}

type Client struct {
	config *core.RecommendConfig
	logger *zap.Logger
	http   *http.Client
}

func NewClient(config *core.RecommendConfig, logger *zap.Logger) *Client {
	return &Client{
		config: config,
		logger: logger,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// Recommend posts the prompt to the service and normalizes the two response
// shapes: a bare track array (no metadata) and a metadata envelope. A
// refreshSeed of zero means a fresh query; any other value asks the service
// for best-effort different results.
func (c *Client) Recommend(ctx context.Context, prompt string, refreshSeed int64) (*core.RecommendResult, error) {
	payload, err := json.Marshal(requestBody{Prompt: prompt, RefreshSeed: refreshSeed})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/recommend", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommendation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommendation service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading recommendation response: %w", err)
	}

	result, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}

	if c.config.MaxResults > 0 && len(result.Tracks) > c.config.MaxResults {
		result.Tracks = result.Tracks[:c.config.MaxResults]
	}

	c.logger.Debug("Recommendation response decoded",
		zap.Int("tracks", len(result.Tracks)),
		zap.Bool("enveloped", result.Meta != nil),
		zap.Int64("refreshSeed", refreshSeed))

	return result, nil
}

// decodeResponse sniffs the payload shape. A bare array yields tracks with
// no metadata; an envelope yields tracks plus metadata, or a ServiceError
// when the envelope carries an error field.
func decodeResponse(body []byte) (*core.RecommendResult, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty recommendation response")
	}

	if trimmed[0] == '[' {
		var tracks []core.Track
		if err := json.Unmarshal(trimmed, &tracks); err != nil {
			return nil, fmt.Errorf("decoding track array: %w", err)
		}
		return &core.RecommendResult{Tracks: tracks}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}

	if env.Error != "" {
		return nil, &ServiceError{Message: env.Error}
	}

	meta := &core.SearchMetadata{
		TotalFound:  env.TotalFound,
		QueriesUsed: env.QueriesUsed,
		IsRefresh:   env.IsRefresh,
		RefreshSeed: env.RefreshSeed,
	}
	if env.Analysis != nil {
		meta.Approach = env.Analysis.Approach
	}

	return &core.RecommendResult{Tracks: env.Tracks, Meta: meta}, nil
}
