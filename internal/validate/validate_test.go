package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geocode-cli/internal/model"
)

func result(kind model.ResultKind, confidence int, locality string) *model.ProviderResult {
	return &model.ProviderResult{
		Success:    true,
		Kind:       kind,
		Confidence: confidence,
		Locality:   locality,
	}
}

func TestAccept_AdminAlwaysRejectedWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	ok, reason := Accept(result(model.KindAdmin, 100, "Бургас"), "ГРАД БУРГАС", cfg)
	assert.False(t, ok)
	assert.Contains(t, reason, "administrative")

	cfg.RejectAdminOnly = false
	ok, _ = Accept(result(model.KindAdmin, 90, "Бургас"), "ГРАД БУРГАС", cfg)
	assert.True(t, ok)
}

func TestAccept_LowConfidenceNonStreet(t *testing.T) {
	ok, _ := Accept(result(model.KindPlace, 65, "Бургас"), "ГРАД БУРГАС", DefaultConfig())
	assert.False(t, ok)

	ok, _ = Accept(result(model.KindPlace, 75, "Бургас"), "ГРАД БУРГАС", DefaultConfig())
	assert.True(t, ok)

	// Buildings and streets skip the secondary confidence floor.
	ok, _ = Accept(result(model.KindBuilding, 40, "Бургас"), "ГРАД БУРГАС", DefaultConfig())
	assert.True(t, ok)
	ok, _ = Accept(result(model.KindStreet, 40, "Бургас"), "ГРАД БУРГАС", DefaultConfig())
	assert.True(t, ok)
}

func TestAccept_LocalityMatching(t *testing.T) {
	cfg := DefaultConfig()

	ok, _ := Accept(result(model.KindBuilding, 80, "Burgas"), "ГРАД БУРГАС", cfg)
	assert.True(t, ok, "transliterated match")

	ok, _ = Accept(result(model.KindBuilding, 80, "Крайморие, Бургас"), "ГРАД БУРГАС", cfg)
	assert.True(t, ok, "compound containment match")

	ok, reason := Accept(result(model.KindBuilding, 80, "Варна"), "ГРАД БУРГАС", cfg)
	assert.False(t, ok)
	assert.Contains(t, reason, "does not match")

	// No claimed locality: nothing to compare, accept.
	ok, _ = Accept(result(model.KindBuilding, 80, ""), "ГРАД БУРГАС", cfg)
	assert.True(t, ok)
}

func TestAccept_FailedResult(t *testing.T) {
	ok, _ := Accept(&model.ProviderResult{Success: false}, "БУРГАС", DefaultConfig())
	assert.False(t, ok)
	ok, _ = Accept(nil, "БУРГАС", DefaultConfig())
	assert.False(t, ok)
}
