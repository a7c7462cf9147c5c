// Package species defines the species entry record tracked by ecowatch and
// the domain validation applied before an entry is persisted.
//
// This package imports nothing internal. The store, query, threshold and
// replication packages all build on it.
//
// Optional fields are pointers: nil means "not recorded", which is distinct
// from a recorded zero (a population of 0, a minimum temperature of 0°C).
package species
