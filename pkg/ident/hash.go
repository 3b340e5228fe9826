package ident

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/opencivics/gavel/pkg/models"
)

// headTimeout bounds each HEAD request in enhanced hashing mode.
const headTimeout = 3 * time.Second

// AttachmentHasher produces a stable content address for a set of
// attachments, used both for matter change detection and meeting-level
// deduplication. The hash is order-independent.
type AttachmentHasher struct {
	client *http.Client
}

// NewAttachmentHasher returns a hasher. httpClient may be nil, in which case
// a default client is used for enhanced-mode HEAD requests.
func NewAttachmentHasher(httpClient *http.Client) *AttachmentHasher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: headTimeout}
	}
	return &AttachmentHasher{client: httpClient}
}

// Hash computes the fast (URL-only) attachment-set hash.
func (h *AttachmentHasher) Hash(attachments []models.Attachment) string {
	return h.hash(attachments, nil)
}

// HashEnhanced additionally issues HEAD requests per attachment and folds
// Content-Length and Last-Modified into the hash. A failed HEAD falls back to
// the URL-only tuple for that attachment; it never fails the overall hash.
func (h *AttachmentHasher) HashEnhanced(ctx context.Context, attachments []models.Attachment) string {
	meta := make(map[string]string, len(attachments))
	for _, a := range attachments {
		if m, err := h.headMeta(ctx, a.URL); err != nil {
			slog.Debug("HEAD failed, falling back to URL-only tuple", "url", a.URL, "error", err)
		} else {
			meta[a.URL] = m
		}
	}
	return h.hash(attachments, meta)
}

func (h *AttachmentHasher) hash(attachments []models.Attachment, meta map[string]string) string {
	sorted := make([]models.Attachment, len(attachments))
	copy(sorted, attachments)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].URL != sorted[j].URL {
			return sorted[i].URL < sorted[j].URL
		}
		return sorted[i].Name < sorted[j].Name
	})

	digest := sha256.New()
	for i, a := range sorted {
		// The same document attached to several items counts once.
		if i > 0 && a.URL == sorted[i-1].URL && a.Name == sorted[i-1].Name {
			continue
		}
		fmt.Fprintf(digest, "%s|%s", a.URL, a.Name)
		if m, ok := meta[a.URL]; ok {
			fmt.Fprintf(digest, "|%s", m)
		}
		digest.Write([]byte{0})
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// headMeta fetches (Content-Length, Last-Modified) for one URL.
func (h *AttachmentHasher) headMeta(ctx context.Context, url string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HEAD %s: status %d", url, resp.StatusCode)
	}
	return fmt.Sprintf("%d:%s", resp.ContentLength, resp.Header.Get("Last-Modified")), nil
}
