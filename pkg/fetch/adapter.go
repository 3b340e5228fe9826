package fetch

import (
	"context"
	"time"

	"github.com/opencivics/gavel/pkg/models"
)

// VendorAdapter fetches meeting drafts from one civic-tech platform. Adapters
// own all per-vendor parsing; the fetcher only schedules and paces them.
type VendorAdapter interface {
	FetchMeetings(ctx context.Context, city *models.City, since time.Time) ([]models.MeetingDraft, error)
}

// AdapterFunc adapts a function to the VendorAdapter interface.
type AdapterFunc func(ctx context.Context, city *models.City, since time.Time) ([]models.MeetingDraft, error)

// FetchMeetings implements VendorAdapter.
func (f AdapterFunc) FetchMeetings(ctx context.Context, city *models.City, since time.Time) ([]models.MeetingDraft, error) {
	return f(ctx, city, since)
}
