package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// postJSON sends a JSON POST with transport-level retry. Transport errors
// and 429/5xx responses are retried with exponential backoff; any other
// non-2xx status is permanent. The engine itself never retries; transport
// retry is the adapter's own concern, bounded by the caller's context.
func postJSON(ctx context.Context, backendID, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Backend: backendID, Err: fmt.Errorf("encode request: %w", err)}
	}

	var out []byte
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(&Error{Backend: backendID, Err: err})
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := defaultClient.Do(httpReq)
		if err != nil {
			// Transport failure: retryable unless the context is done.
			if ctx.Err() != nil {
				return backoff.Permanent(&Error{Backend: backendID, Err: err})
			}
			return &Error{Backend: backendID, Err: err}
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			log.Debug().
				Str("backend", backendID).
				Int("status", resp.StatusCode).
				Msg("Retryable backend response")
			return &Error{Backend: backendID, Status: resp.StatusCode, Err: fmt.Errorf("%s", truncate(respBody, 200))}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&Error{Backend: backendID, Status: resp.StatusCode, Err: fmt.Errorf("%s", truncate(respBody, 200))})
		}

		out = respBody
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
