package species

import "time"

// Entry is a single tracked species observation with its ecological
// thresholds and the place it was recorded.
type Entry struct {
	// ID is assigned by the store. Zero means not yet assigned.
	ID int64 `json:"id" yaml:"id,omitempty"`

	// Name is required and never blank once validated.
	Name string `json:"name" yaml:"name"`

	Habitat *string `json:"habitat" yaml:"habitat,omitempty"`
	Status  *string `json:"status" yaml:"status,omitempty"` // conservation status, e.g. "vulnerable"

	// Population is the estimated head count.
	Population *int `json:"population" yaml:"population,omitempty"`

	// Thresholds in °C and % relative humidity.
	MinTemp     *float64 `json:"minTemp" yaml:"minTemp,omitempty"`
	MaxTemp     *float64 `json:"maxTemp" yaml:"maxTemp,omitempty"`
	MinHumidity *float64 `json:"minHumidity" yaml:"minHumidity,omitempty"`
	MaxHumidity *float64 `json:"maxHumidity" yaml:"maxHumidity,omitempty"`

	Lat     *float64 `json:"lat" yaml:"lat,omitempty"`
	Lng     *float64 `json:"lng" yaml:"lng,omitempty"`
	Address *string  `json:"address" yaml:"address,omitempty"` // reverse geocoded, human readable

	// CreatedAt is epoch milliseconds, stamped once on first insert.
	CreatedAt int64 `json:"createdAt" yaml:"createdAt,omitempty"`
}

// HasThreshold reports whether at least one of the four threshold fields is set.
func (e Entry) HasThreshold() bool {
	return e.MinTemp != nil || e.MaxTemp != nil || e.MinHumidity != nil || e.MaxHumidity != nil
}

// HasLocation reports whether both coordinates are set.
func (e Entry) HasLocation() bool {
	return e.Lat != nil && e.Lng != nil
}

// Created returns CreatedAt as a time.Time (zero time when unset).
func (e Entry) Created() time.Time {
	if e.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.CreatedAt)
}

// Equal reports whether two entries hold the same values field for field.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID &&
		e.Name == o.Name &&
		equalPtr(e.Habitat, o.Habitat) &&
		equalPtr(e.Status, o.Status) &&
		equalPtr(e.Population, o.Population) &&
		equalPtr(e.MinTemp, o.MinTemp) &&
		equalPtr(e.MaxTemp, o.MaxTemp) &&
		equalPtr(e.MinHumidity, o.MinHumidity) &&
		equalPtr(e.MaxHumidity, o.MaxHumidity) &&
		equalPtr(e.Lat, o.Lat) &&
		equalPtr(e.Lng, o.Lng) &&
		equalPtr(e.Address, o.Address) &&
		e.CreatedAt == o.CreatedAt
}

// EqualLists reports whether two entry lists are equal element by element.
func EqualLists(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Ptr returns a pointer to v. Handy for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}
