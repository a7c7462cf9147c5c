package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/ecowatch/internal/species"
)

// All returns every entry, newest id first.
//
// Returns an empty slice (not nil) when the table is empty.
func (s *Store) All(ctx context.Context) ([]species.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM species
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, storageError("query", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, storageError("query", err)
	}
	return entries, nil
}

// ByID returns the entry with the given id, or nil if there is none.
func (s *Store) ByID(ctx context.Context, id int64) (*species.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM species
		WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("query", err)
	}
	return &e, nil
}

// Search returns entries whose name contains text, ignoring case, ordered
// by name ascending (case-insensitive) then id.
//
// Matching compares Unicode case-folded forms, so "fr" finds "Frog" and
// "él" finds "Élan".
func (s *Store) Search(ctx context.Context, text string) ([]species.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM species
		WHERE instr(fold(name), fold(?)) > 0
		ORDER BY fold(name) ASC, id ASC
	`, text)
	if err != nil {
		return nil, storageError("query", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, storageError("query", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM species").Scan(&n); err != nil {
		return 0, storageError("query", err)
	}
	return n, nil
}
