// Package extract turns attachment URLs into text. The actual PDF machinery
// lives in a separate extraction service; this package owns the HTTP client,
// the per-meeting document cache, and the filters that decide which
// attachments and which extracted texts are worth summarizing.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencivics/gavel/pkg/config"
)

// ErrBadDocument marks a document the extraction service rejected outright.
// Retrying cannot fix the document, so callers treat it as permanently absent
// rather than as a service outage.
var ErrBadDocument = errors.New("document rejected by extractor")

// Result is one extracted document.
type Result struct {
	Text      string  `json:"text"`
	PageCount int     `json:"page_count"`
	OCRRatio  float64 `json:"ocr_ratio"`
}

// Extractor converts a document URL into text.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Result, error)
}

// HTTPExtractor calls the extraction service's POST /extract endpoint.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExtractor builds the client from processing config.
func NewHTTPExtractor(cfg *config.ProcessConfig) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: cfg.ExtractorURL,
		client:  &http.Client{Timeout: cfg.ExtractTimeout},
	}
}

// Extract requests extraction of one URL, retrying transient failures with
// capped exponential backoff. 4xx responses are permanent: the document
// itself is bad and retrying cannot fix it.
func (e *HTTPExtractor) Extract(ctx context.Context, url string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, fmt.Errorf("marshaling extract request: %w", err)
	}

	var result *Result
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("extractor returned %d for %s", resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%w: %s returned status %d", ErrBadDocument, url, resp.StatusCode))
		}

		var r Result
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&r); err != nil {
			return fmt.Errorf("decoding extractor response for %s: %w", url, err)
		}
		result = &r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newExtractBackoff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func newExtractBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return b
}
