package store

import (
	"database/sql"

	"github.com/roach88/ecowatch/internal/species"
)

const entryColumns = `id, name, habitat, status, population, min_temp, max_temp,
	min_humidity, max_humidity, lat, lng, address, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one row selected with entryColumns.
func scanEntry(row rowScanner) (species.Entry, error) {
	var (
		e          species.Entry
		habitat    sql.Null[string]
		status     sql.Null[string]
		population sql.Null[int]
		minTemp    sql.Null[float64]
		maxTemp    sql.Null[float64]
		minHum     sql.Null[float64]
		maxHum     sql.Null[float64]
		lat        sql.Null[float64]
		lng        sql.Null[float64]
		address    sql.Null[string]
	)

	err := row.Scan(&e.ID, &e.Name, &habitat, &status, &population,
		&minTemp, &maxTemp, &minHum, &maxHum, &lat, &lng, &address, &e.CreatedAt)
	if err != nil {
		return species.Entry{}, err
	}

	e.Habitat = fromNull(habitat)
	e.Status = fromNull(status)
	e.Population = fromNull(population)
	e.MinTemp = fromNull(minTemp)
	e.MaxTemp = fromNull(maxTemp)
	e.MinHumidity = fromNull(minHum)
	e.MaxHumidity = fromNull(maxHum)
	e.Lat = fromNull(lat)
	e.Lng = fromNull(lng)
	e.Address = fromNull(address)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]species.Entry, error) {
	entries := []species.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func fromNull[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}

// toNull binds an optional field; nil becomes SQL NULL.
func toNull[T any](p *T) sql.Null[T] {
	if p == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *p, Valid: true}
}
