package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	domain "github.com/claimdesk/incident-api/internal/domain/detection"
)

// Client talks to the external detection service over HTTP. Calls are
// single synchronous waits with no retry; timeouts are left to the
// caller's context and the platform defaults.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{endpoint: endpoint, apiKey: apiKey, http: http.DefaultClient}
}

// Analyze POSTs the image references and returns the parsed result. An
// error envelope in the response body surfaces as ErrServiceFailure with
// the service's own message.
func (c *Client) Analyze(ctx context.Context, req domain.Request) (*domain.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode detection request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("detection service call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read detection response: %w", err)
	}

	var envelope domain.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode detection response (status %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceFailure, envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrServiceFailure, resp.StatusCode)
	}
	if envelope.Result == nil {
		return nil, fmt.Errorf("%w: empty result", domain.ErrServiceFailure)
	}
	return envelope.Result, nil
}
