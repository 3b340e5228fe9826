package ident

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivics/gavel/pkg/models"
)

func TestAttachmentHasher_Hash(t *testing.T) {
	h := NewAttachmentHasher(nil)

	atts := []models.Attachment{
		{URL: "https://example.org/b.pdf", Name: "Staff Report"},
		{URL: "https://example.org/a.pdf", Name: "Ordinance"},
	}

	t.Run("order independent", func(t *testing.T) {
		reversed := []models.Attachment{atts[1], atts[0]}
		assert.Equal(t, h.Hash(atts), h.Hash(reversed))
	})

	t.Run("sensitive to url and name", func(t *testing.T) {
		renamed := []models.Attachment{
			{URL: "https://example.org/b.pdf", Name: "Staff Report v2"},
			{URL: "https://example.org/a.pdf", Name: "Ordinance"},
		}
		assert.NotEqual(t, h.Hash(atts), h.Hash(renamed))
	})

	t.Run("empty set hashes consistently", func(t *testing.T) {
		assert.Equal(t, h.Hash(nil), h.Hash([]models.Attachment{}))
	})
}

func TestAttachmentHasher_HashEnhanced(t *testing.T) {
	ctx := context.Background()

	t.Run("head metadata changes the hash", func(t *testing.T) {
		lastModified := "Mon, 10 Nov 2025 00:00:00 GMT"
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodHead, r.Method)
			w.Header().Set("Last-Modified", lastModified)
			w.Header().Set("Content-Length", "1024")
		}))
		defer srv.Close()

		h := NewAttachmentHasher(srv.Client())
		atts := []models.Attachment{{URL: srv.URL + "/doc.pdf", Name: "Packet"}}

		first := h.HashEnhanced(ctx, atts)
		lastModified = "Tue, 11 Nov 2025 00:00:00 GMT"
		second := h.HashEnhanced(ctx, atts)
		assert.NotEqual(t, first, second)
	})

	t.Run("failed HEAD falls back to URL-only tuple", func(t *testing.T) {
		h := NewAttachmentHasher(nil)
		atts := []models.Attachment{{URL: "http://127.0.0.1:1/nowhere.pdf", Name: "Packet"}}
		assert.Equal(t, h.Hash(atts), h.HashEnhanced(ctx, atts))
	})
}
