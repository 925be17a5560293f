package repository

import "time"

// Option applies a configuration option to the PostgresStore.
type Option func(*PostgresStore)

// WithTable sets the records table name.
func WithTable(name string) Option {
	return func(s *PostgresStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithStatementTimeout bounds every statement issued by the store.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *PostgresStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}
