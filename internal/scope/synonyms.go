package scope

import (
	"sort"
	"strings"
)

// domainSynonyms maps a keyword family to the curriculum phrases it implies.
// When an enrolled course or topic mentions the family key, the members are
// added to the allowed phrase bag so that a student asking about "daily
// standups" is in scope for an "Agile Fundamentals" course.
//
// The table is hand-curated for the platform's current course catalogue.
var domainSynonyms = map[string][]string{
	"agile": {
		"scrum", "sprint planning", "daily standup", "kanban",
		"retrospective", "product backlog", "user stories", "velocity",
	},
	"data analytics": {
		"sql", "data visualization", "descriptive statistics",
		"regression", "dashboards", "spreadsheets", "data cleaning",
	},
	"project management": {
		"gantt chart", "critical path", "work breakdown structure",
		"stakeholder management", "risk register", "milestones",
	},
	"cloud computing": {
		"aws", "azure", "kubernetes", "docker",
		"virtual machines", "object storage", "serverless",
	},
	"machine learning": {
		"supervised learning", "neural networks", "feature engineering",
		"model evaluation", "overfitting", "gradient descent",
	},
	"web development": {
		"html", "css", "javascript", "rest apis",
		"responsive design", "accessibility",
	},
}

// strongKeywords are domain-specific tokens that get a score bonus in the
// fuzzy topic matcher: their presence in a message is a much stronger signal
// than common English words like "planning" or "design".
var strongKeywords = map[string]struct{}{
	"scrum":         {},
	"sprint":        {},
	"kanban":        {},
	"standup":       {},
	"retrospective": {},
	"backlog":       {},
	"velocity":      {},
	"sql":           {},
	"regression":    {},
	"dashboards":    {},
	"gantt":         {},
	"aws":           {},
	"azure":         {},
	"kubernetes":    {},
	"docker":        {},
	"serverless":    {},
	"overfitting":   {},
	"html":          {},
	"css":           {},
	"javascript":    {},
}

// synonymFamilies holds the family names in sorted order so expansion is
// deterministic regardless of map iteration order.
var synonymFamilies = func() []string {
	families := make([]string, 0, len(domainSynonyms))
	for family := range domainSynonyms {
		families = append(families, family)
	}
	sort.Strings(families)
	return families
}()

// expandSynonyms returns the synonym-family members implied by phrase, or nil
// when the phrase mentions no known family.
func expandSynonyms(phrase string) []string {
	lower := strings.ToLower(phrase)
	var out []string
	for _, family := range synonymFamilies {
		if strings.Contains(lower, family) {
			out = append(out, domainSynonyms[family]...)
		}
	}
	return out
}

// isStrongKeyword reports whether token is a domain-specific keyword.
func isStrongKeyword(token string) bool {
	_, ok := strongKeywords[strings.ToLower(token)]
	return ok
}
