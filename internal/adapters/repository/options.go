package repository

import "github.com/okian/sessionrec/pkg/logger"

// Option applies a configuration option to the Neo4jStore.
type Option func(*Neo4jStore)

// WithDatabase selects the Neo4j database. Empty uses the server default.
func WithDatabase(name string) Option {
	return func(s *Neo4jStore) {
		s.database = name
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Neo4jStore) {
		if l != nil {
			s.logger = l
		}
	}
}
