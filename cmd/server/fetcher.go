package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/S-Corkum/external-adapter/internal/responsecache"
	"github.com/S-Corkum/external-adapter/internal/transport"
)

// newExampleFetcher wires an HttpTransport to a generic "?base=...&quote=..."
// price provider, demonstrating the Fetcher contract end to end. A real
// deployment would replace this with the provider's own request shape.
func newExampleFetcher(baseURL string) transport.Fetcher {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, host string, group []map[string]interface{}) ([]responsecache.Result, error) {
		streamEstablished := time.Now().UnixMilli()
		results := make([]responsecache.Result, 0, len(group))

		for _, params := range group {
			reqURL := baseURL
			if v, ok := params["base"].(string); ok {
				q := url.Values{}
				q.Set("base", v)
				if quote, ok := params["quote"].(string); ok {
					q.Set("quote", quote)
				}
				reqURL = fmt.Sprintf("%s?%s", baseURL, q.Encode())
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}

			results = append(results, responsecache.Result{
				Params:                        params,
				Value:                         json.RawMessage(body),
				StatusCode:                    resp.StatusCode,
				ProviderDataStreamEstablished: streamEstablished,
				ProviderDataReceived:          time.Now().UnixMilli(),
			})
		}
		return results, nil
	}
}
