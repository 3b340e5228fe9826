package fetch

import (
	"sort"
	"time"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/models"
)

// cityActivity pairs a city with its meeting count over the last 30 days.
type cityActivity struct {
	city     *models.City
	activity int
}

// syncInterval maps an activity count onto the tier's re-sync interval.
func syncInterval(cfg *config.FetchConfig, activity int) time.Duration {
	switch {
	case activity >= cfg.HighActivityMeetings:
		return cfg.HighActivityInterval
	case activity >= cfg.MediumActivityMeetings:
		return cfg.MediumActivityInterval
	default:
		return cfg.LowActivityInterval
	}
}

// syncDue reports whether a city is eligible for sync. Never-synced cities
// are always due.
func syncDue(cfg *config.FetchConfig, lastSynced *time.Time, activity int, now time.Time) bool {
	if lastSynced == nil {
		return true
	}
	return now.Sub(*lastSynced) >= syncInterval(cfg, activity)
}

// orderByActivity sorts cities high-activity first, slug order breaking ties
// so passes are deterministic.
func orderByActivity(cities []cityActivity) {
	sort.Slice(cities, func(i, j int) bool {
		if cities[i].activity != cities[j].activity {
			return cities[i].activity > cities[j].activity
		}
		return cities[i].city.Banana < cities[j].city.Banana
	})
}
