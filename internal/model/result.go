package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QueryKind distinguishes how a provider query was built.
type QueryKind string

const (
	QueryStructured QueryKind = "structured"
	QueryFreeform   QueryKind = "freeform"
)

// ResultKind is a coarse classification of the feature a provider matched.
type ResultKind string

const (
	KindBuilding ResultKind = "building"
	KindStreet   ResultKind = "street"
	KindPlace    ResultKind = "place"
	KindAdmin    ResultKind = "admin"
	KindUnknown  ResultKind = "unknown"
)

// ProviderResult is one provider's answer for one record. Results are
// write-once: a record already bearing a result for a provider is never
// re-queried.
type ProviderResult struct {
	Success     bool            `json:"success"`
	Coord       *Coordinate     `json:"coord,omitempty"`
	Kind        ResultKind      `json:"kind"`
	DisplayName string          `json:"display_name,omitempty"`
	Importance  float64         `json:"importance,omitempty"` // provider relevance signal in [0,1]
	HouseNumber string          `json:"house_number,omitempty"`
	Road        string          `json:"road,omitempty"`
	Locality    string          `json:"locality,omitempty"` // locality claimed by the provider
	Confidence  int             `json:"confidence"`
	Raw         json.RawMessage `json:"raw,omitempty"` // opaque provider payload, kept even on failure
	Query       string          `json:"query"`         // exact query that produced this result
	QueryKind   QueryKind       `json:"query_kind"`
	QueriedAt   time.Time       `json:"queried_at"`
	Attempted   []string        `json:"attempted,omitempty"` // all queries tried, recorded on exhaustion
}

// Failed builds a ProviderResult for an attempt sequence that produced no
// usable answer. Failed results always carry confidence 0 and no coordinate.
func Failed(raw json.RawMessage, attempted []string) *ProviderResult {
	return &ProviderResult{
		Success:   false,
		Kind:      KindUnknown,
		Raw:       raw,
		QueriedAt: time.Now().UTC(),
		Attempted: attempted,
	}
}

// StructuredPrefix marks a persisted query string as a structured query.
// The payload after the colon is "locality,parent,country".
const StructuredPrefix = "structured:"

// EncodeStructuredQuery renders a structured query for persistence.
func EncodeStructuredQuery(locality, parent, country string) string {
	return StructuredPrefix + fmt.Sprintf("%s,%s,%s", locality, parent, country)
}

// DecodeStructuredQuery splits a persisted structured query string back into
// its parts. ok is false when q is not a structured query.
func DecodeStructuredQuery(q string) (locality, parent, country string, ok bool) {
	if !strings.HasPrefix(q, StructuredPrefix) {
		return "", "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(q, StructuredPrefix), ",", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
