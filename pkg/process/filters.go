package process

import "regexp"

// Item-title filters. These agenda entries carry no substance worth an LLM
// call; the row is kept with a filter_reason so the absence of a summary is
// explainable.
var titleFilters = []struct {
	reason   string
	patterns []*regexp.Regexp
}{
	{
		reason: "procedural",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\broll\s*call\b`),
			regexp.MustCompile(`(?i)\bcall\s+to\s+order\b`),
			regexp.MustCompile(`(?i)\bpledge\s+of\s+allegiance\b`),
			regexp.MustCompile(`(?i)\badjournment?\b`),
			regexp.MustCompile(`(?i)\bapproval\s+of\s+(the\s+)?(minutes|agenda)\b`),
			regexp.MustCompile(`(?i)\bpublic\s+comment\b`),
			regexp.MustCompile(`(?i)\bclosed\s+session\b`),
		},
	},
	{
		reason: "ceremonial",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bproclamation\b`),
			regexp.MustCompile(`(?i)\bcommendation\b`),
			regexp.MustCompile(`(?i)\brecognition\s+of\b`),
			regexp.MustCompile(`(?i)\boath\s+of\s+office\b`),
			regexp.MustCompile(`(?i)\bswearing[-\s]in\b`),
		},
	},
	{
		reason: "administrative",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bannouncements?\b`),
			regexp.MustCompile(`(?i)\bcommunications?\s+received\b`),
			regexp.MustCompile(`(?i)\bcity\s+manager.?s\s+report\b`),
			regexp.MustCompile(`(?i)\bcommittee\s+reports?\b`),
			regexp.MustCompile(`(?i)\bfuture\s+agenda\s+items\b`),
		},
	},
}

// FilterReason classifies an item title, returning the filter family or ""
// when the item is substantive.
func FilterReason(title string) string {
	for _, f := range titleFilters {
		for _, p := range f.patterns {
			if p.MatchString(title) {
				return f.reason
			}
		}
	}
	return ""
}
