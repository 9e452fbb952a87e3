// Package score derives a 0–100 confidence value from a single provider
// result. The score is independent of any distance to source coordinates;
// it only measures how precise and specific the provider's own answer is.
package score

import (
	"strings"

	"github.com/sells-group/geocode-cli/internal/model"
)

const base = 50

// Result scores a structured/free-form provider result. Failed results
// always score 0.
func Result(r *model.ProviderResult) int {
	if r == nil || !r.Success {
		return 0
	}

	s := base

	// Provider relevance signal, up to +20.
	imp := r.Importance
	if imp < 0 {
		imp = 0
	}
	if imp > 1 {
		imp = 1
	}
	s += int(imp * 20)

	switch r.Kind {
	case model.KindBuilding:
		s += 15
	case model.KindStreet:
		s += 10
	case model.KindPlace:
		s += 5
	case model.KindAdmin:
		s -= 15
	}

	// A long hierarchical display name means the provider matched something
	// specific, not a bare settlement.
	switch seps := strings.Count(r.DisplayName, ","); {
	case seps >= 4:
		s += 10
	case seps >= 3:
		s += 5
	}

	if r.HouseNumber != "" {
		s += 10
	}
	if r.Road != "" {
		s += 5
	}

	return clamp(s)
}

// precisionScores maps the single-shot provider's location_type onto the
// same 0–100 scale.
var precisionScores = map[string]int{
	"ROOFTOP":            95,
	"RANGE_INTERPOLATED": 80,
	"GEOMETRIC_CENTER":   60,
	"APPROXIMATE":        40,
}

// Precision scores a single-shot provider result by its native precision
// classification. Unknown classifications score as approximate.
func Precision(locationType string) int {
	if s, ok := precisionScores[strings.ToUpper(locationType)]; ok {
		return s
	}
	return precisionScores["APPROXIMATE"]
}

// FallbackPenalty reduces confidence for a result obtained from a fallback
// (non-first) query attempt, floored at 30. A coarser query succeeding says
// less about the full address.
func FallbackPenalty(confidence int) int {
	c := confidence - 20
	if c < 30 {
		c = 30
	}
	return c
}

func clamp(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
