// Package strategy decides which provider queries to attempt for a record
// and in what order.
//
// Structured queries that omit the street disambiguate small places well but
// collapse to a coarse administrative centroid in large, densely-mapped
// cities. For those configured "high-density" localities the free-form full
// address goes first, since it is the only query shape carrying street-level
// signal.
package strategy

import (
	"fmt"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/translit"
)

// Attempt is one planned provider query.
type Attempt struct {
	Kind  model.QueryKind
	Query string // free-form text, or the encoded structured query string

	// Structured query parts, set when Kind is QueryStructured.
	Locality string
	Parent   string
	Country  string

	// Validate routes a successful result through the result validator
	// before acceptance. Only the free-form full-address attempt in the
	// high-density path needs it; narrower shapes are inherently less
	// ambiguous.
	Validate bool
}

// Selector plans query attempts. It is pure: the plan for a record depends
// only on the record's trusted fields and the configured locality set.
type Selector struct {
	highDensity map[string]bool
	country     string
}

// New builds a Selector. Locality names are matched after settlement-prefix
// stripping, so "ГРАД БУРГАС" and "БУРГАС" configure the same place.
func New(highDensityLocalities []string, country string) *Selector {
	set := make(map[string]bool, len(highDensityLocalities))
	for _, l := range highDensityLocalities {
		set[translit.CleanLocality(l)] = true
	}
	if country == "" {
		country = "България"
	}
	return &Selector{highDensity: set, country: country}
}

// IsHighDensity reports whether a trusted locality name is configured as
// high-density.
func (s *Selector) IsHighDensity(locality string) bool {
	return s.highDensity[translit.CleanLocality(locality)]
}

// Plan returns the ordered attempts for a record. Query shapes whose
// required trusted fields are missing are skipped, not errors.
func (s *Selector) Plan(rec model.AddressRecord) []Attempt {
	locality := translit.CleanLocality(rec.Locality)
	parent := translit.Normalize(rec.Municipality)

	var fullAddress, structured, localityParent, localityOnly *Attempt

	if rec.Query != "" {
		fullAddress = &Attempt{
			Kind:     model.QueryFreeform,
			Query:    rec.Query,
			Validate: s.IsHighDensity(rec.Locality),
		}
	}
	if locality != "" && parent != "" {
		structured = &Attempt{
			Kind:     model.QueryStructured,
			Query:    model.EncodeStructuredQuery(locality, parent, s.country),
			Locality: locality,
			Parent:   parent,
			Country:  s.country,
		}
		localityParent = &Attempt{
			Kind:  model.QueryFreeform,
			Query: fmt.Sprintf("%s, %s, %s", locality, parent, s.country),
		}
	}
	if locality != "" {
		localityOnly = &Attempt{
			Kind:  model.QueryFreeform,
			Query: fmt.Sprintf("%s, %s", locality, s.country),
		}
	}

	var order []*Attempt
	if s.IsHighDensity(rec.Locality) {
		order = []*Attempt{fullAddress, structured, localityParent, localityOnly}
	} else {
		order = []*Attempt{structured, fullAddress, localityParent, localityOnly}
	}

	attempts := make([]Attempt, 0, len(order))
	for _, a := range order {
		if a != nil {
			attempts = append(attempts, *a)
		}
	}
	return attempts
}
