// Package validate judges whether a free-form full-address result from the
// high-density-locality path is trustworthy enough to accept. Narrower
// query shapes bypass validation entirely.
package validate

import (
	"fmt"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/translit"
)

// Config holds validator thresholds.
type Config struct {
	// RejectAdminOnly treats an administrative-boundary answer as proof the
	// provider fell back to a centroid and never located the address.
	RejectAdminOnly bool

	// MinConfidence is the secondary confidence floor for results that are
	// neither buildings nor streets.
	MinConfidence int
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{RejectAdminOnly: true, MinConfidence: 70}
}

// Accept reports whether a successful result passes validation against the
// trusted locality name. The returned reason explains a rejection; it is
// empty on acceptance. A rejection is normal control flow, advancing the
// orchestrator to the next query, never a record failure.
func Accept(r *model.ProviderResult, trustedLocality string, cfg Config) (bool, string) {
	if r == nil || !r.Success {
		return false, "no result"
	}

	if cfg.RejectAdminOnly && r.Kind == model.KindAdmin {
		return false, "administrative-boundary match rejected"
	}

	if r.Kind != model.KindBuilding && r.Kind != model.KindStreet && r.Confidence < cfg.MinConfidence {
		return false, fmt.Sprintf("kind %s with confidence %d below %d", r.Kind, r.Confidence, cfg.MinConfidence)
	}

	// Only reject on locality when the provider actually claimed one.
	if r.Locality != "" && trustedLocality != "" && !translit.Match(r.Locality, trustedLocality) {
		return false, fmt.Sprintf("locality %q does not match trusted %q", r.Locality, trustedLocality)
	}

	return true, ""
}
