package llm

import "strings"

// The topic taxonomy. Models are prompted to use these, but replies drift;
// NormalizeTopics folds whatever comes back onto the canonical vocabulary.
var canonicalTopics = map[string]struct{}{
	"housing":        {},
	"land use":       {},
	"transportation": {},
	"budget":         {},
	"public safety":  {},
	"environment":    {},
	"utilities":      {},
	"parks":          {},
	"contracts":      {},
	"personnel":      {},
	"health":         {},
	"education":      {},
	"events":         {},
	"governance":     {},
	"economic development": {},
}

var topicSynonyms = map[string]string{
	"affordable housing":  "housing",
	"zoning":              "land use",
	"planning":            "land use",
	"rezoning":            "land use",
	"transit":             "transportation",
	"streets":             "transportation",
	"traffic":             "transportation",
	"bike lanes":          "transportation",
	"finance":             "budget",
	"appropriations":      "budget",
	"fiscal":              "budget",
	"police":              "public safety",
	"fire":                "public safety",
	"emergency services":  "public safety",
	"climate":             "environment",
	"sustainability":      "environment",
	"water":               "utilities",
	"sewer":               "utilities",
	"recreation":          "parks",
	"open space":          "parks",
	"procurement":         "contracts",
	"agreements":          "contracts",
	"staffing":            "personnel",
	"labor":               "personnel",
	"public health":       "health",
	"schools":             "education",
	"libraries":           "education",
	"elections":           "governance",
	"ethics":              "governance",
	"business":            "economic development",
	"development":         "economic development",
}

// NormalizeTopics lowercases, maps synonyms onto the canonical taxonomy,
// drops anything still unrecognized, and deduplicates preserving order.
func NormalizeTopics(topics []string) []string {
	var out []string
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if canonical, ok := topicSynonyms[t]; ok {
			t = canonical
		}
		if _, ok := canonicalTopics[t]; !ok {
			continue
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// MergeTopics aggregates per-item topic sets into one deduplicated,
// order-preserving meeting-level set.
func MergeTopics(sets ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, set := range sets {
		for _, t := range set {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
