// Package models contains the domain types shared across the ingestion
// pipeline: cities, meetings, agenda items, matters, and queue jobs.
package models

import (
	"regexp"
	"time"
)

// bananaPattern matches a city slug: lowercase city name followed by an
// uppercase two-letter state code, e.g. "paloaltoCA".
var bananaPattern = regexp.MustCompile(`^[a-z0-9]+[A-Z]{2}$`)

// ValidBanana reports whether s is a well-formed city slug.
func ValidBanana(s string) bool {
	return bananaPattern.MatchString(s)
}

// City is a municipality whose legislative platform we harvest.
// Rows are provisioned externally; the pipeline treats them read-mostly,
// updating only sync bookkeeping.
type City struct {
	Banana       string
	Name         string
	Vendor       string
	Config       map[string]any
	Active       bool
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EnhancedHashing reports whether this city opts into HEAD-request attachment
// hashing (for platforms that rotate CDN URLs).
func (c *City) EnhancedHashing() bool {
	if c.Config == nil {
		return false
	}
	v, ok := c.Config["enhanced_hashing"].(bool)
	return ok && v
}
