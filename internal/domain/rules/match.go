package rules

import "strings"

// absent is the sentinel the graph uses for an unanswered profile question.
const absent = "na"

// ContainsAny reports whether field contains any keyword, ignoring case.
// Empty keywords never match.
func ContainsAny(field string, keywords []string) bool {
	if field == "" || len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(field)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Present reports whether a profile field carries a real answer.
func Present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, absent)
}
