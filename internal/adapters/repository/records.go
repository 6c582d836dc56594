package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/okian/sessionrec/internal/domain/model"
)

// Graph property names.
const (
	propBadgeID          = "BadgeId"
	propJobRole          = "job_role"
	propPracticeType     = "what_type_does_your_practice_specialise_in"
	propOrganisationType = "organisation_type"
	propCountry          = "Country"
	propReturning        = "assist_year_before"

	propSessionID   = "session_id"
	propTitle       = "title"
	propStream      = "stream"
	propTheatre     = "theatre__name"
	propDate        = "date"
	propStartTime   = "start_time"
	propEndTime     = "end_time"
	propSponsored   = "sponsored_session"
	propSponsoredBy = "sponsored_by"
	propEmbedding   = "embedding"
)

var visitorCoreProps = map[string]struct{}{
	propBadgeID: {}, propJobRole: {}, propPracticeType: {}, propOrganisationType: {},
	propCountry: {}, propReturning: {}, propEmbedding: {},
}

// DecodeEmbedding parses an embedding stored either as a JSON array string
// or as a native list property.
func DecodeEmbedding(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out []float64
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		return out, nil
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, len(v))
		for i, x := range v {
			switch n := x.(type) {
			case float64:
				out[i] = n
			case int64:
				out[i] = float64(n)
			default:
				return nil, fmt.Errorf("decode embedding: element %d has type %T", i, x)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode embedding: unsupported type %T", raw)
	}
}

func propsOf(record *neo4j.Record) map[string]any {
	if record == nil {
		return nil
	}
	raw, ok := record.Get("props")
	if !ok {
		return nil
	}
	props, _ := raw.(map[string]any)
	return props
}

func intFromRecord(record *neo4j.Record, key string) int {
	raw, ok := record.Get(key)
	if !ok {
		return 0
	}
	switch n := raw.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func boolProp(props map[string]any, key string) bool {
	switch v := props[key].(type) {
	case bool:
		return v
	case int64:
		return v == 1
	case float64:
		return v == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}

func visitorFromProps(props map[string]any) model.Visitor {
	v := model.Visitor{
		BadgeID:          stringProp(props, propBadgeID),
		JobRole:          stringProp(props, propJobRole),
		PracticeType:     stringProp(props, propPracticeType),
		OrganisationType: stringProp(props, propOrganisationType),
		Country:          stringProp(props, propCountry),
		Returning:        boolProp(props, propReturning),
	}
	for k := range props {
		if _, core := visitorCoreProps[k]; core {
			continue
		}
		if s := stringProp(props, k); s != "" {
			if v.Extra == nil {
				v.Extra = make(map[string]string)
			}
			v.Extra[k] = s
		}
	}
	return v
}

func sessionFromProps(props map[string]any) (model.Session, error) {
	emb, err := DecodeEmbedding(props[propEmbedding])
	if err != nil {
		return model.Session{}, fmt.Errorf("session %s: %w", stringProp(props, propSessionID), err)
	}
	return model.Session{
		SessionID:        stringProp(props, propSessionID),
		Title:            stringProp(props, propTitle),
		Stream:           stringProp(props, propStream),
		Theatre:          stringProp(props, propTheatre),
		Date:             stringProp(props, propDate),
		StartTime:        stringProp(props, propStartTime),
		EndTime:          stringProp(props, propEndTime),
		SponsoredSession: boolProp(props, propSponsored),
		SponsoredBy:      stringProp(props, propSponsoredBy),
		Embedding:        emb,
	}, nil
}

// sessionsFromRecords decodes session rows, skipping those without an id or
// a usable embedding. It returns how many rows were skipped.
func sessionsFromRecords(records []*neo4j.Record) ([]model.Session, int) {
	out := make([]model.Session, 0, len(records))
	skipped := 0
	for _, r := range records {
		s, err := sessionFromProps(propsOf(r))
		if err != nil || s.SessionID == "" || len(s.Embedding) == 0 {
			skipped++
			continue
		}
		out = append(out, s)
	}
	return out, skipped
}

// queryValue maps an absent profile answer to the empty string so Cypher
// comparisons never match it.
func queryValue(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "na") {
		return ""
	}
	return s
}
