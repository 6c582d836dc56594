package llmfilter

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/rules"
)

const systemPrompt = `You filter conference session recommendations for a veterinary show visitor.
Apply the business rules exactly as written. Never invent sessions. Answer with a JSON array only.`

type candidate struct {
	SessionID  string  `json:"session_id"`
	Title      string  `json:"title"`
	Stream     string  `json:"stream"`
	Theatre    string  `json:"theatre,omitempty"`
	Date       string  `json:"date,omitempty"`
	StartTime  string  `json:"start_time,omitempty"`
	EndTime    string  `json:"end_time,omitempty"`
	Similarity float64 `json:"similarity"`
}

// BuildPrompt renders the system and user messages for one filter call.
func BuildPrompt(v model.Visitor, recs []model.Recommendation, cfg rules.Config) (string, string, error) {
	cands := make([]candidate, len(recs))
	for i, r := range recs {
		cands[i] = candidate{
			SessionID:  r.SessionID,
			Title:      r.Title,
			Stream:     r.Stream,
			Theatre:    r.Theatre,
			Date:       r.Date,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
			Similarity: r.Similarity,
		}
	}
	payload, err := json.MarshalIndent(cands, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode candidates: %w", err)
	}

	var b strings.Builder
	b.WriteString("Visitor profile:\n")
	for _, kv := range v.Profile() {
		if kv[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", kv[0], kv[1])
	}

	b.WriteString("\nCandidate sessions:\n")
	b.Write(payload)

	b.WriteString("\n\nBusiness rules:\n")
	fmt.Fprintf(&b, "1. If the practice type mentions %s, remove sessions whose stream mentions any of: %s.\n",
		quoteList(cfg.EquineMixedTriggers), quoteList(cfg.EquineMixedExclusions))
	fmt.Fprintf(&b, "2. Otherwise, if the practice type mentions %s, remove sessions whose stream mentions any of: %s.\n",
		quoteList(cfg.SmallAnimalTriggers), quoteList(cfg.SmallAnimalExclusions))
	fmt.Fprintf(&b, "3. If the job role is one of %s (veterinarians), remove sessions whose stream mentions any of: %s.\n",
		quoteList(cfg.VetRoles), quoteList(cfg.VetExclusions))
	fmt.Fprintf(&b, "4. If the job role is one of %s (nurses), keep only sessions whose stream mentions any of: %s.\n",
		quoteList(cfg.NurseRoles), quoteList(cfg.NurseAllowed))
	b.WriteString("5. Skip any rule whose profile field is empty or NA. Keep every field of the sessions you return unchanged.\n")
	b.WriteString("\nReturn the remaining sessions as a JSON array of objects with the same fields as the candidates.")

	return systemPrompt, b.String(), nil
}

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = `"` + s + `"`
	}
	return strings.Join(q, ", ")
}
