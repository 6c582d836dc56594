package similarity

import "errors"

var (
	// ErrEmbedderUnavailable is returned when visitor matching has no embedder.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
	// ErrEmbeddingMismatch is returned when an embedder answers with the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
