package llmfilter

import "errors"

var (
	// ErrNoJSONArray is returned when a response holds no decodable array.
	ErrNoJSONArray = errors.New("no JSON array in response")
)
