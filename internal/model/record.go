// Package model defines the domain types for address resolution: source
// records, per-provider geocoding results, distances, and final decisions.
package model

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AddressRecord is one row of the source registry. The ingest collaborator
// owns these fields; the resolution engine never mutates them.
type AddressRecord struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	RawAddress   string `json:"raw_address"`
	Query        string `json:"query"`        // normalized full-address query string
	Locality     string `json:"locality"`     // trusted settlement name, e.g. "ГРАД БУРГАС"
	Municipality string `json:"municipality"` // trusted parent administrative area
	Source       *Coordinate `json:"source,omitempty"`
}

// Record is an AddressRecord together with everything the engine has
// computed for it so far.
type Record struct {
	AddressRecord

	Primary   *ProviderResult `json:"primary,omitempty"`
	Secondary *ProviderResult `json:"secondary,omitempty"`
	Distances DistanceSet     `json:"distances"`
	Decision  *Decision       `json:"decision,omitempty"`
}

// Resolved reports whether the primary provider has already been attempted
// for this record. Resolved records are skipped on re-runs.
func (r *Record) Resolved() bool {
	return r.Primary != nil && !r.Primary.QueriedAt.IsZero()
}
