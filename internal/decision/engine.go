// Package decision computes pairwise distances between source and provider
// coordinates and classifies each record's final outcome. It is a pure
// second pass over persisted results: decisions derive deterministically
// from stored inputs and may be recomputed when thresholds change.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/store"
	"github.com/sells-group/geocode-cli/internal/translit"
)

// Thresholds tune outcome classification.
type Thresholds struct {
	// OKDistanceM is the maximum source distance for a confirmed match.
	OKDistanceM float64

	// SuspiciousDistanceM is the maximum source distance that still earns
	// human review rather than an outright mismatch.
	SuspiciousDistanceM float64

	// MinConfidence is the minimum provider confidence for a confirmed match.
	MinConfidence int
}

// DefaultThresholds returns the engine defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{OKDistanceM: 1000, SuspiciousDistanceM: 5000, MinConfidence: 60}
}

// Engine assigns a final coordinate and status per record.
type Engine struct {
	t Thresholds
}

// NewEngine builds an Engine, filling zero thresholds with defaults.
func NewEngine(t Thresholds) *Engine {
	def := DefaultThresholds()
	if t.OKDistanceM <= 0 {
		t.OKDistanceM = def.OKDistanceM
	}
	if t.SuspiciousDistanceM <= 0 {
		t.SuspiciousDistanceM = def.SuspiciousDistanceM
	}
	if t.MinConfidence <= 0 {
		t.MinConfidence = def.MinConfidence
	}
	return &Engine{t: t}
}

// candidate is one usable provider answer under evaluation.
type candidate struct {
	provider     model.ProviderName
	coord        *model.Coordinate
	confidence   int
	distM        *float64 // distance to source, nil without source coords
	localityOK   bool
	claimedLocal string
}

// Decide classifies one record from its stored results and source fields.
func (e *Engine) Decide(rec *model.Record) (model.DistanceSet, model.Decision) {
	set := Distances(rec.Source, coordOf(rec.Primary), coordOf(rec.Secondary))

	var cands []candidate
	if c := newCandidate(model.ProviderPrimary, rec.Primary, set.SourcePrimaryM, rec.Locality); c != nil {
		cands = append(cands, *c)
	}
	if c := newCandidate(model.ProviderSecondary, rec.Secondary, set.SourceSecondaryM, rec.Locality); c != nil {
		cands = append(cands, *c)
	}

	if len(cands) == 0 {
		return set, e.notFound(rec)
	}
	if rec.Source == nil {
		return set, e.decideWithoutSource(cands)
	}
	return set, e.decideWithSource(cands)
}

// notFound covers records where no provider produced a usable coordinate.
// With source coordinates present, the source point is kept as the chosen
// coordinate so downstream consumers still have something to plot.
func (e *Engine) notFound(rec *model.Record) model.Decision {
	dec := model.Decision{
		Provider: model.ProviderNone,
		Status:   model.StatusNotFound,
		Notes:    "no provider produced a usable coordinate",
	}
	if rec.Source != nil {
		dec.Provider = model.ProviderSource
		dec.Coord = rec.Source
		dec.Notes = "no provider produced a usable coordinate; keeping source coordinate"
	}
	return dec
}

// decideWithoutSource ranks candidates by confidence alone; ties go to the
// primary provider, which is listed first.
func (e *Engine) decideWithoutSource(cands []candidate) model.Decision {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.confidence > best.confidence {
			best = c
		}
	}

	status := model.StatusOK
	notes := []string{"no source coordinate to verify against"}
	if best.confidence < e.t.MinConfidence {
		status = model.StatusNeedsReview
		notes = append(notes, fmt.Sprintf("confidence %d below %d", best.confidence, e.t.MinConfidence))
	}
	if !best.localityOK {
		status = model.StatusNeedsReview
		notes = append(notes, fmt.Sprintf("provider locality %q does not match trusted locality", best.claimedLocal))
	}
	return model.Decision{
		Provider: best.provider,
		Coord:    best.coord,
		Status:   status,
		Notes:    strings.Join(notes, "; "),
	}
}

func (e *Engine) decideWithSource(cands []candidate) model.Decision {
	// Confirmed match: close, confident, and in the right locality. The
	// primary provider is evaluated first.
	for _, c := range cands {
		if c.distM != nil && *c.distM <= e.t.OKDistanceM && c.confidence >= e.t.MinConfidence && c.localityOK {
			return model.Decision{
				Provider: c.provider,
				Coord:    c.coord,
				Status:   model.StatusOK,
				Notes:    fmt.Sprintf("confirmed %.0f m from source", *c.distM),
			}
		}
	}

	// Close enough for review. A locality mismatch on a nearby result lands
	// here too: coincidental proximity with a wrong administrative match is
	// not trustworthy.
	var best *candidate
	for i := range cands {
		c := &cands[i]
		if c.distM == nil || *c.distM > e.t.SuspiciousDistanceM {
			continue
		}
		if best == nil || *c.distM < *best.distM ||
			(*c.distM == *best.distM && c.confidence > best.confidence) {
			best = c
		}
	}
	if best != nil {
		notes := []string{fmt.Sprintf("%.0f m from source", *best.distM)}
		if !best.localityOK {
			notes = append(notes, fmt.Sprintf("provider locality %q does not match trusted locality", best.claimedLocal))
		}
		if best.confidence < e.t.MinConfidence {
			notes = append(notes, fmt.Sprintf("confidence %d below %d", best.confidence, e.t.MinConfidence))
		}
		return model.Decision{
			Provider: best.provider,
			Coord:    best.coord,
			Status:   model.StatusNeedsReview,
			Notes:    strings.Join(notes, "; "),
		}
	}

	// Everything usable is far away (or lacks a measurable distance):
	// mismatch, keeping the most confident answer for inspection.
	top := cands[0]
	for _, c := range cands[1:] {
		if c.confidence > top.confidence {
			top = c
		}
	}
	notes := []string{"all provider coordinates exceed the suspicious distance threshold"}
	if top.distM != nil {
		notes[0] = fmt.Sprintf("nearest provider coordinate %.0f m from source", *top.distM)
	}
	if !top.localityOK {
		notes = append(notes, fmt.Sprintf("provider locality %q does not match trusted locality", top.claimedLocal))
	}
	return model.Decision{
		Provider: top.provider,
		Coord:    top.coord,
		Status:   model.StatusMismatch,
		Notes:    strings.Join(notes, "; "),
	}
}

func newCandidate(p model.ProviderName, r *model.ProviderResult, distM *float64, trustedLocality string) *candidate {
	if r == nil || !r.Success || r.Coord == nil {
		return nil
	}
	return &candidate{
		provider:     p,
		coord:        r.Coord,
		confidence:   r.Confidence,
		distM:        distM,
		localityOK:   localityMatches(r.Locality, trustedLocality),
		claimedLocal: r.Locality,
	}
}

// localityMatches is lenient when either side is unknown: only an actual
// conflicting claim counts against a candidate.
func localityMatches(claimed, trusted string) bool {
	if claimed == "" || trusted == "" {
		return true
	}
	return translit.Match(claimed, trusted)
}

func coordOf(r *model.ProviderResult) *model.Coordinate {
	if r == nil || !r.Success {
		return nil
	}
	return r.Coord
}

// Stats summarizes a decision pass.
type Stats struct {
	Decided    int
	ByStatus   map[model.Status]int
	ByProvider map[model.ProviderName]int
}

// DecideAll recomputes distances and decisions for every record matching
// the filter and persists them. The pass is idempotent.
func (e *Engine) DecideAll(ctx context.Context, st store.Store, f store.Filter) (*Stats, error) {
	recs, err := st.ListRecords(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "decision: list records")
	}

	stats := &Stats{
		ByStatus:   make(map[model.Status]int),
		ByProvider: make(map[model.ProviderName]int),
	}
	for i := range recs {
		rec := &recs[i]
		set, dec := e.Decide(rec)
		if err := st.SaveDecision(ctx, rec.ID, set, dec); err != nil {
			return stats, eris.Wrapf(err, "decision: save decision %d", rec.ID)
		}
		stats.Decided++
		stats.ByStatus[dec.Status]++
		stats.ByProvider[dec.Provider]++
	}

	zap.L().Info("decision pass finished",
		zap.Int("decided", stats.Decided),
		zap.Any("by_status", stats.ByStatus),
		zap.Any("by_provider", stats.ByProvider),
	)
	return stats, nil
}
