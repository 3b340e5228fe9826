package extract

import "strings"

// Content heuristics: even after name filtering, some extractions are junk —
// thousand-page scan dumps, OCR noise, or form-letter campaigns. Discard the
// text rather than burn LLM tokens on it.
const (
	maxPages            = 1000
	ocrPageThreshold    = 50
	ocrRatioThreshold   = 0.3
	formLetterMinLength = 5000
	formLetterMarker    = "Sincerely,"
	formLetterMaxCount  = 20
)

// DiscardText reports whether an extraction result should be dropped, with
// the reason.
func DiscardText(r *Result) (bool, string) {
	if r.PageCount > maxPages {
		return true, "document too large"
	}
	if r.PageCount > ocrPageThreshold && r.OCRRatio > ocrRatioThreshold {
		return true, "mostly scanned pages"
	}
	if len(r.Text) > formLetterMinLength && strings.Count(r.Text, formLetterMarker) > formLetterMaxCount {
		return true, "form-letter campaign"
	}
	return false, ""
}
