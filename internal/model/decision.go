package model

// ProviderName identifies where a decided coordinate came from.
type ProviderName string

const (
	ProviderSource    ProviderName = "source"
	ProviderPrimary   ProviderName = "nominatim"
	ProviderSecondary ProviderName = "google"
	ProviderNone      ProviderName = "none"
)

// Status classifies the final outcome for downstream review.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNeedsReview Status = "needs_review"
	StatusMismatch    Status = "mismatch"
	StatusNotFound    Status = "not_found"
)

// DistanceSet holds pairwise great-circle distances in meters. A nil entry
// means one of the endpoint coordinates is absent.
type DistanceSet struct {
	SourcePrimaryM    *float64 `json:"dist_src_nom_m,omitempty"`
	SourceSecondaryM  *float64 `json:"dist_src_g_m,omitempty"`
	PrimarySecondaryM *float64 `json:"dist_nom_g_m,omitempty"`
}

// Decision is the final per-record outcome. It derives deterministically
// from the record, both provider results, and the distance set, so it can be
// recomputed whenever thresholds change.
type Decision struct {
	Provider ProviderName `json:"provider"`
	Coord    *Coordinate  `json:"coord,omitempty"`
	Status   Status       `json:"status"`
	Notes    string       `json:"notes,omitempty"`
}
