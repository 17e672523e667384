package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kjstillabower/weather-companion/internal/client"
)

// HTTPClient is the subset of *http.Client the providers use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// getJSON issues a GET and decodes a 2xx JSON body into out. Non-2xx statuses
// map to the client package's sentinel errors.
func getJSON(ctx context.Context, hc HTTPClient, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := client.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := client.CheckResponse(resp); err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", client.ErrMalformedPayload, err)
	}
	return nil
}

func defaultHTTPClient(hc HTTPClient) HTTPClient {
	if hc == nil {
		return &http.Client{}
	}
	return hc
}
