package replication

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/ecowatch/internal/species"
)

// Remote field names. Every push writes all of them; absent optional values
// are written as null.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldHabitat     = "habitat"
	FieldStatus      = "status"
	FieldPopulation  = "population"
	FieldMinTemp     = "minTemp"
	FieldMaxTemp     = "maxTemp"
	FieldMinHumidity = "minHumidity"
	FieldMaxHumidity = "maxHumidity"
	FieldLat         = "lat"
	FieldLng         = "lng"
	FieldAddress     = "address"
	FieldCreatedAt   = "createdAt"
)

// Document is one remote record. Field values use the JSON data model:
// nil, string, bool, a numeric type, or nested maps and slices.
type Document struct {
	Key    string
	Fields map[string]any
}

// Key returns the remote key for an assigned id.
func Key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Encode returns the full field set of e. A zero CreatedAt is replaced
// with now.
func Encode(e species.Entry, now int64) map[string]any {
	createdAt := e.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}
	return map[string]any{
		FieldID:          e.ID,
		FieldName:        e.Name,
		FieldHabitat:     nullable(e.Habitat),
		FieldStatus:      nullable(e.Status),
		FieldPopulation:  nullable(e.Population),
		FieldMinTemp:     nullable(e.MinTemp),
		FieldMaxTemp:     nullable(e.MaxTemp),
		FieldMinHumidity: nullable(e.MinHumidity),
		FieldMaxHumidity: nullable(e.MaxHumidity),
		FieldLat:         nullable(e.Lat),
		FieldLng:         nullable(e.Lng),
		FieldAddress:     nullable(e.Address),
		FieldCreatedAt:   createdAt,
	}
}

// nullable unwraps p so a nil pointer becomes an untyped nil.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Decode turns a remote document into an entry. A document without a
// non-blank string name is a DecodeError. Optional fields of the wrong type decode as
// absent. A missing id decodes as 0, a missing createdAt as now.
func Decode(doc Document, now int64) (species.Entry, error) {
	name, ok := doc.Fields[FieldName].(string)
	if !ok {
		reason := "is missing"
		if v, present := doc.Fields[FieldName]; present && v != nil {
			reason = "is not a string"
		}
		return species.Entry{}, &DecodeError{Key: doc.Key, Field: FieldName, Reason: reason}
	}
	if strings.TrimSpace(name) == "" {
		return species.Entry{}, &DecodeError{Key: doc.Key, Field: FieldName, Reason: "is blank"}
	}

	e := species.Entry{
		Name:        name,
		Habitat:     stringField(doc.Fields, FieldHabitat),
		Status:      stringField(doc.Fields, FieldStatus),
		Address:     stringField(doc.Fields, FieldAddress),
		MinTemp:     floatField(doc.Fields, FieldMinTemp),
		MaxTemp:     floatField(doc.Fields, FieldMaxTemp),
		MinHumidity: floatField(doc.Fields, FieldMinHumidity),
		MaxHumidity: floatField(doc.Fields, FieldMaxHumidity),
		Lat:         floatField(doc.Fields, FieldLat),
		Lng:         floatField(doc.Fields, FieldLng),
		CreatedAt:   now,
	}
	if id, ok := intField(doc.Fields, FieldID); ok {
		e.ID = id
	}
	if pop, ok := intField(doc.Fields, FieldPopulation); ok {
		p := int(pop)
		e.Population = &p
	}
	if ts, ok := intField(doc.Fields, FieldCreatedAt); ok {
		e.CreatedAt = ts
	}
	return e, nil
}

func stringField(fields map[string]any, name string) *string {
	if s, ok := fields[name].(string); ok {
		return &s
	}
	return nil
}

func floatField(fields map[string]any, name string) *float64 {
	if f, ok := number(fields[name]); ok {
		return &f
	}
	return nil
}

// intField truncates toward zero, like a numeric-to-long conversion.
func intField(fields map[string]any, name string) (int64, bool) {
	switch v := fields[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	}
	f, ok := number(fields[name])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
