package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/infra/metrics"
)

const maxResponseBytes = 4 << 20

type client struct {
	http    *http.Client
	baseURL string
	metrics *metrics.Metrics
}

// post sends env to path and decodes the provider's outer reply. Transport
// failures, timeouts and non-2xx statuses are reported as ErrProviderUnavailable.
func (c *client) post(ctx context.Context, endpoint, path string, env codec.Envelope, timeout time.Duration) (providerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()

	resp, err := c.do(ctx, path, env)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "unavailable"
	case resp.Code != 0:
		outcome = "rejected"
	}

	c.metrics.RecordProviderRequest(endpoint, outcome, time.Since(started).Seconds())

	return resp, err
}

func (c *client) do(ctx context.Context, path string, env codec.Envelope) (providerResponse, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return providerResponse{}, fmt.Errorf("marshal envelope: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return providerResponse{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return providerResponse{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	//nolint:errcheck
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return providerResponse{}, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return providerResponse{}, fmt.Errorf("%w: http status %d", ErrProviderUnavailable, res.StatusCode)
	}

	var out providerResponse

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return providerResponse{}, fmt.Errorf("%w: decode reply: %v", ErrBadProviderResponse, err)
	}

	return out, nil
}
