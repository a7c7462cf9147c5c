package store

import (
	"context"
	"fmt"

	"github.com/roach88/ecowatch/internal/species"
)

// Upsert inserts or replaces an entry and returns the stored record.
//
// An entry with ID 0 is inserted under a freshly assigned id with CreatedAt
// set to the current time. Any other id replaces the row with that id, or
// inserts it when absent; on replace the stored CreatedAt is kept, on insert
// a zero CreatedAt is stamped with the current time.
//
// Repeating an upsert with identical input leaves storage unchanged.
// Constraint violations are returned as *StorageError with Constraint set.
func (s *Store) Upsert(ctx context.Context, e species.Entry) (species.Entry, error) {
	stored, err := s.upsert(ctx, e)
	s.record("upsert", err)
	if err != nil {
		return species.Entry{}, err
	}
	s.notify()
	return stored, nil
}

func (s *Store) upsert(ctx context.Context, e species.Entry) (species.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return species.Entry{}, storageError("upsert", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	if e.ID == 0 {
		e.CreatedAt = s.clock.NowMillis()
		result, err := tx.ExecContext(ctx, `
			INSERT INTO species
			(name, habitat, status, population, min_temp, max_temp,
			 min_humidity, max_humidity, lat, lng, address, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.Name,
			toNull(e.Habitat),
			toNull(e.Status),
			toNull(e.Population),
			toNull(e.MinTemp),
			toNull(e.MaxTemp),
			toNull(e.MinHumidity),
			toNull(e.MaxHumidity),
			toNull(e.Lat),
			toNull(e.Lng),
			toNull(e.Address),
			e.CreatedAt,
		)
		if err != nil {
			return species.Entry{}, storageError("upsert", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return species.Entry{}, storageError("upsert", fmt.Errorf("last insert id: %w", err))
		}
		e.ID = id
	} else {
		if e.CreatedAt == 0 {
			e.CreatedAt = s.clock.NowMillis()
		}
		// created_at is deliberately absent from the update list.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO species
			(id, name, habitat, status, population, min_temp, max_temp,
			 min_humidity, max_humidity, lat, lng, address, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				habitat = excluded.habitat,
				status = excluded.status,
				population = excluded.population,
				min_temp = excluded.min_temp,
				max_temp = excluded.max_temp,
				min_humidity = excluded.min_humidity,
				max_humidity = excluded.max_humidity,
				lat = excluded.lat,
				lng = excluded.lng,
				address = excluded.address
		`,
			e.ID,
			e.Name,
			toNull(e.Habitat),
			toNull(e.Status),
			toNull(e.Population),
			toNull(e.MinTemp),
			toNull(e.MaxTemp),
			toNull(e.MinHumidity),
			toNull(e.MaxHumidity),
			toNull(e.Lat),
			toNull(e.Lng),
			toNull(e.Address),
			e.CreatedAt,
		)
		if err != nil {
			return species.Entry{}, storageError("upsert", err)
		}
	}

	stored, err := scanEntry(tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM species
		WHERE id = ?
	`, e.ID))
	if err != nil {
		return species.Entry{}, storageError("upsert", fmt.Errorf("read back: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return species.Entry{}, storageError("upsert", fmt.Errorf("commit: %w", err))
	}
	return stored, nil
}

// DeleteByID removes the entry with the given id. Deleting an absent id is
// a no-op and does not wake observers.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM species WHERE id = ?", id)
	if err != nil {
		s.record("delete", err)
		return storageError("delete", err)
	}
	s.record("delete", nil)

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	s.notify()
	return nil
}

// DeleteAll removes every entry.
func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM species")
	s.record("delete_all", err)
	if err != nil {
		return storageError("delete_all", err)
	}
	s.notify()
	return nil
}
