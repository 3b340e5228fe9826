package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opencivics/gavel/pkg/models"
)

// Attachment-name filters. These documents are huge, repetitive, and add
// nothing a summary needs: raw public-comment dumps, parcel tables,
// boilerplate contract riders, and environmental impact reports.
var (
	publicCommentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)public\s+comment`),
		regexp.MustCompile(`(?i)written\s+communications?`),
		regexp.MustCompile(`(?i)correspondence\s+received`),
	}
	parcelTablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)parcel\s+(list|table)`),
		regexp.MustCompile(`(?i)\bAPN\s+list\b`),
		regexp.MustCompile(`(?i)assessor.?s\s+parcel`),
	}
	boilerplateContractPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)standard\s+(terms|agreement|conditions)`),
		regexp.MustCompile(`(?i)insurance\s+requirements`),
		regexp.MustCompile(`(?i)exhibit\s+[A-Z]\s*[-–]\s*general\s+provisions`),
	}
	eirPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bEIR\b`),
		regexp.MustCompile(`(?i)environmental\s+impact\s+report`),
		regexp.MustCompile(`(?i)\bCEQA\s+appendix`),
	}
)

// cityPatterns holds per-city attachment exclusions for local boilerplate the
// generic filters miss.
var cityPatterns = map[string][]*regexp.Regexp{
	"sfCA": {
		regexp.MustCompile(`(?i)ethics\s+form\s+126`),
	},
	"nashvilleTN": {
		regexp.MustCompile(`(?i)grant\s+exhibit\s+packet`),
	},
}

// SkipAttachment reports whether an attachment is excluded by name, and which
// filter family matched.
func SkipAttachment(name, banana string) (bool, string) {
	families := []struct {
		reason   string
		patterns []*regexp.Regexp
	}{
		{"public comment", publicCommentPatterns},
		{"parcel table", parcelTablePatterns},
		{"boilerplate contract", boilerplateContractPatterns},
		{"environmental impact report", eirPatterns},
		{"city-specific", cityPatterns[banana]},
	}
	for _, f := range families {
		for _, p := range f.patterns {
			if p.MatchString(name) {
				return true, f.reason
			}
		}
	}
	return false, ""
}

// versionPattern recognizes "Ver2", "Ver. 3", "v2" style suffixes vendors
// append when a document is re-uploaded.
var versionPattern = regexp.MustCompile(`(?i)\b(?:ver\.?|v)\s*(\d+)\b`)

// SelectAttachments applies the name filters and versioned-name supersedence:
// of a group of attachments differing only in version token, only the highest
// version survives.
func SelectAttachments(attachments []models.Attachment, banana string) []models.Attachment {
	type candidate struct {
		att     models.Attachment
		version int
		order   int
	}
	best := make(map[string]candidate)
	var order []string

	for i, a := range attachments {
		if skip, _ := SkipAttachment(a.Name, banana); skip {
			continue
		}
		version := 0
		if m := versionPattern.FindStringSubmatch(a.Name); m != nil {
			version, _ = strconv.Atoi(m[1])
		}
		base := strings.TrimSpace(versionPattern.ReplaceAllString(a.Name, ""))
		key := strings.ToLower(base)

		cur, seen := best[key]
		if !seen {
			best[key] = candidate{att: a, version: version, order: i}
			order = append(order, key)
			continue
		}
		if version > cur.version {
			cur.att, cur.version = a, version
			best[key] = cur
		}
	}

	out := make([]models.Attachment, 0, len(order))
	for _, key := range order {
		out = append(out, best[key].att)
	}
	return out
}

// PartitionShared reports which URLs are shared documents: referenced by at
// least two of the given items. itemURLs maps item id to that item's
// (already filtered) attachment URLs.
func PartitionShared(itemURLs map[string][]string) map[string]bool {
	refs := make(map[string]int)
	for _, urls := range itemURLs {
		seen := make(map[string]bool, len(urls))
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				refs[u]++
			}
		}
	}
	shared := make(map[string]bool)
	for u, n := range refs {
		if n >= 2 {
			shared[u] = true
		}
	}
	return shared
}
