package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

// doJSON sends a request and decodes a 200 JSON response into out.
// source labels upstream error metrics.
func doJSON(ctx context.Context, hc *http.Client, method, url string, body any, source string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(source).Inc()
		return fmt.Errorf("%w: %s request: %v", domain.ErrTransientFetch, source, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(source).Inc()
		return fmt.Errorf("%w: %s read body: %v", domain.ErrTransientFetch, source, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrorsTotal.WithLabelValues(source).Inc()
		return fmt.Errorf("%w: %s http %d: %s", domain.ErrTransientFetch, source, resp.StatusCode, truncate(respBody, 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues(source).Inc()
		return fmt.Errorf("%w: %s decode: %v", domain.ErrDataShape, source, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
