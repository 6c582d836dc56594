package llmfilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

var fenced = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON isolates the JSON payload of a model reply: a fenced code
// block first, then the outermost bracketed array, then the whole reply.
func ExtractJSON(reply string) string {
	if m := fenced.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	if i, j := strings.Index(reply, "["), strings.LastIndex(reply, "]"); i >= 0 && j > i {
		return reply[i : j+1]
	}
	return strings.TrimSpace(reply)
}

type returned struct {
	SessionID string `json:"session_id"`
}

// ParseSessionIDs decodes the session ids listed in a model reply.
func ParseSessionIDs(reply string) ([]string, error) {
	var items []returned
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONArray, err)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if id := strings.TrimSpace(it.SessionID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
