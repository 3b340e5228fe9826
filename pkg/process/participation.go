package process

import (
	"regexp"

	"github.com/opencivics/gavel/pkg/models"
)

// Agendas bury the how-to-participate details in the first or last items
// (call-in numbers, comment email, stream link). Plain pattern scans are
// enough; no LLM required.
var (
	phonePattern  = regexp.MustCompile(`(?:\+1[\s.-]?)?(?:\(\d{3}\)\s?|\d{3}[\s.-])\d{3}[\s.-]\d{4}`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	streamPattern = regexp.MustCompile(`https?://[^\s)>"]*(?:zoom\.us|youtube\.com|youtu\.be|granicus\.com|webex\.com|teams\.microsoft\.com)[^\s)>"]*`)
)

// ParseParticipation scans document text for participation details. Returns
// nil when nothing was found.
func ParseParticipation(text string) *models.Participation {
	p := &models.Participation{
		Phone:     phonePattern.FindString(text),
		Email:     emailPattern.FindString(text),
		StreamURL: streamPattern.FindString(text),
	}
	if p.IsEmpty() {
		return nil
	}
	return p
}
