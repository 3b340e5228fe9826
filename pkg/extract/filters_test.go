package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencivics/gavel/pkg/models"
)

func TestSkipAttachment(t *testing.T) {
	tests := []struct {
		name   string
		banana string
		skip   bool
		reason string
	}{
		{"Public Comment Batch 3", "sfCA", true, "public comment"},
		{"Written Communications", "sfCA", true, "public comment"},
		{"Parcel Table Exhibit", "sfCA", true, "parcel table"},
		{"Standard Terms and Conditions", "sfCA", true, "boilerplate contract"},
		{"Insurance Requirements Rider", "sfCA", true, "boilerplate contract"},
		{"Draft EIR Volume 2", "sfCA", true, "environmental impact report"},
		{"Ethics Form 126", "sfCA", true, "city-specific"},
		{"Ethics Form 126", "paloaltoCA", false, ""}, // city filter is scoped
		{"Staff Report", "sfCA", false, ""},
		{"Ordinance Text", "sfCA", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, reason := SkipAttachment(tt.name, tt.banana)
			assert.Equal(t, tt.skip, skip)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestSelectAttachments_VersionSupersedence(t *testing.T) {
	atts := []models.Attachment{
		{URL: "https://x/1.pdf", Name: "Legislation Ver1"},
		{URL: "https://x/3.pdf", Name: "Legislation Ver3"},
		{URL: "https://x/2.pdf", Name: "Legislation Ver2"},
		{URL: "https://x/r.pdf", Name: "Staff Report"},
		{URL: "https://x/pc.pdf", Name: "Public Comment"},
	}

	got := SelectAttachments(atts, "sfCA")
	assert.Len(t, got, 2)
	assert.Equal(t, "Legislation Ver3", got[0].Name)
	assert.Equal(t, "Staff Report", got[1].Name)
}

func TestSelectAttachments_UnversionedSurvive(t *testing.T) {
	atts := []models.Attachment{
		{URL: "https://x/a.pdf", Name: "Resolution"},
		{URL: "https://x/b.pdf", Name: "Budget Exhibit"},
	}
	assert.Len(t, SelectAttachments(atts, "sfCA"), 2)
}

func TestPartitionShared(t *testing.T) {
	shared := PartitionShared(map[string][]string{
		"i1": {"https://x/staff.pdf", "https://x/shared.pdf"},
		"i2": {"https://x/shared.pdf"},
		"i3": {"https://x/own.pdf", "https://x/own.pdf"}, // duplicate within one item
	})
	assert.True(t, shared["https://x/shared.pdf"])
	assert.False(t, shared["https://x/staff.pdf"])
	assert.False(t, shared["https://x/own.pdf"])
}

func TestDiscardText(t *testing.T) {
	longText := make([]byte, 6000)
	for i := range longText {
		longText[i] = 'a'
	}
	formLetters := string(longText)
	for i := 0; i < 25; i++ {
		formLetters += " Sincerely,"
	}

	tests := []struct {
		name   string
		result Result
		drop   bool
	}{
		{"normal", Result{Text: "hello", PageCount: 12}, false},
		{"too many pages", Result{PageCount: 1500}, true},
		{"scanned dump", Result{PageCount: 80, OCRRatio: 0.6}, true},
		{"scanned but short", Result{PageCount: 30, OCRRatio: 0.9}, false},
		{"form letters", Result{Text: formLetters, PageCount: 40}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drop, _ := DiscardText(&tt.result)
			assert.Equal(t, tt.drop, drop)
		})
	}
}
