package model

// Session is a talk at the show, either this year's (a recommendation target)
// or last year's (attendance history).
type Session struct {
	SessionID        string    `json:"session_id"`
	Title            string    `json:"title"`
	Stream           string    `json:"stream"` // semicolon separated tags
	Theatre          string    `json:"theatre"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	SponsoredSession bool      `json:"sponsored_session"`
	SponsoredBy      string    `json:"sponsored_by,omitempty"`
	Embedding        []float64 `json:"-"`
}

// Recommendation is a scored this-year session. Never persisted.
type Recommendation struct {
	SessionID        string  `json:"session_id"`
	Title            string  `json:"title"`
	Stream           string  `json:"stream"`
	Theatre          string  `json:"theatre"`
	Date             string  `json:"date"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	SponsoredSession bool    `json:"sponsored_session"`
	SponsoredBy      string  `json:"sponsored_by,omitempty"`
	Similarity       float64 `json:"similarity"`
}

// Recommend builds a recommendation for s with the given score.
func (s Session) Recommend(score float64) Recommendation {
	return Recommendation{
		SessionID:        s.SessionID,
		Title:            s.Title,
		Stream:           s.Stream,
		Theatre:          s.Theatre,
		Date:             s.Date,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		SponsoredSession: s.SponsoredSession,
		SponsoredBy:      s.SponsoredBy,
		Similarity:       score,
	}
}
