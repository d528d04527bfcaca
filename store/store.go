// Package store provides the SQLite persistence layer for the greenlight
// core: targets, DNA snapshots, learning events, request logs, and
// green-light state history. The core consumes only the operations
// exposed here; the concrete backing engine is an implementation concern.
package store

import (
	"database/sql"
	"testing"

	"github.com/wrenfield/greenlight/dbopen"
)

// Store is the greenlight database handle.
type Store struct {
	DB *sql.DB

	gls    *glsCache
	cipher *SessionCipher
}

// OpenOption configures Open beyond the underlying dbopen.Options.
type OpenOption func(*Store)

// WithSessionCipher encrypts Target.SessionCookie at rest using the given
// key. Without this option the field is stored in plaintext.
func WithSessionCipher(c *SessionCipher) OpenOption {
	return func(s *Store) { s.cipher = c }
}

// Open opens (or creates) the greenlight SQLite database at path, applies
// HOROS pragmas and the greenlight schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	return OpenWith(path, nil, opts...)
}

// OpenWith is Open plus greenlight-specific OpenOptions (currently just
// WithSessionCipher).
func OpenWith(path string, storeOpts []OpenOption, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db, gls: newGLSCache()}
	for _, o := range storeOpts {
		o(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// OpenMemory builds a Store over an in-memory SQLite database, for use by
// other packages' tests. t.Cleanup closes the database automatically.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return &Store{DB: db, gls: newGLSCache()}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
