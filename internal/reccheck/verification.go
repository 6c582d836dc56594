package reccheck

import (
	"fmt"

	"github.com/okian/sessionrec/internal/domain/types"
)

// Verify returns every invariant res breaks. maxRecs bounds the raw list
// when positive.
func Verify(res types.Result, maxRecs int) []string {
	var v []string
	md := res.Metadata

	if md.Error != "" {
		if len(res.RawRecommendations) != 0 || len(res.FilteredRecommendations) != 0 {
			v = append(v, "failed result carries recommendations")
		}
		if md.ErrorKind == types.ErrorKindNone {
			v = append(v, "failed result has no error kind")
		}
		return v
	}

	if md.RawCount != len(res.RawRecommendations) {
		v = append(v, fmt.Sprintf("raw_count %d != %d raw recommendations", md.RawCount, len(res.RawRecommendations)))
	}
	if md.FilteredCount != len(res.FilteredRecommendations) {
		v = append(v, fmt.Sprintf("filtered_count %d != %d filtered recommendations", md.FilteredCount, len(res.FilteredRecommendations)))
	}
	if maxRecs > 0 && len(res.RawRecommendations) > maxRecs {
		v = append(v, fmt.Sprintf("%d raw recommendations exceed max %d", len(res.RawRecommendations), maxRecs))
	}
	if len(res.FilteredRecommendations) > len(res.RawRecommendations) {
		v = append(v, "filtered list is longer than raw list")
	}

	raw := make(map[string]struct{}, len(res.RawRecommendations))
	for i, r := range res.RawRecommendations {
		if _, dup := raw[r.SessionID]; dup {
			v = append(v, fmt.Sprintf("raw session %s repeated", r.SessionID))
		}
		raw[r.SessionID] = struct{}{}
		if r.Similarity < 0 || r.Similarity > 1 {
			v = append(v, fmt.Sprintf("raw session %s similarity %.4f outside [0,1]", r.SessionID, r.Similarity))
		}
		if i > 0 && r.Similarity > res.RawRecommendations[i-1].Similarity {
			v = append(v, fmt.Sprintf("raw list not descending at %d", i))
		}
	}

	seen := make(map[string]struct{}, len(res.FilteredRecommendations))
	for i, r := range res.FilteredRecommendations {
		if _, ok := raw[r.SessionID]; !ok {
			v = append(v, fmt.Sprintf("filtered session %s not in raw list", r.SessionID))
		}
		if _, dup := seen[r.SessionID]; dup {
			v = append(v, fmt.Sprintf("filtered session %s repeated", r.SessionID))
		}
		seen[r.SessionID] = struct{}{}
		if i > 0 && r.Similarity > res.FilteredRecommendations[i-1].Similarity {
			v = append(v, fmt.Sprintf("filtered list not descending at %d", i))
		}
	}
	return v
}
