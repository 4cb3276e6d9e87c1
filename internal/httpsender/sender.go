// Package httpsender is the production RequestSender: a thin net/http
// client wrapper. No example in the corpus wraps outbound arbitrary-method
// HTTP calls in a third-party client, so this stays on the standard
// library rather than reaching for an unrelated transport.
package httpsender

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/restbench/core/internal/script"
)

// Sender implements script.RequestSender over net/http.
type Sender struct {
	client *http.Client
}

// New constructs a Sender with the given timeout (0 means no timeout).
func New(timeout time.Duration) *Sender {
	return &Sender{client: &http.Client{Timeout: timeout}}
}

func (s *Sender) Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (script.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return script.Response{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return script.Response{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return script.Response{}, err
	}

	respHeaders := map[string]string{}
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return script.Response{Status: resp.StatusCode, Headers: respHeaders, Body: respBody}, nil
}
