package translit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ГРАД БУРГАС", Normalize("  град   Бургас "))
	assert.Equal(t, "SOFIA", Normalize("sofia"))
	assert.Equal(t, "", Normalize("   "))
}

func TestCleanLocality(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ГРАД БУРГАС", "БУРГАС"},
		{"СЕЛО ИЗВОР", "ИЗВОР"},
		{"гр. Варна", "ВАРНА"},
		{"с. Равда", "РАВДА"},
		{"БУРГАС", "БУРГАС"},
		{"Градец", "ГРАДЕЦ"}, // prefix requires a following space or dot
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanLocality(tt.in), tt.in)
	}
}

func TestLatinize(t *testing.T) {
	assert.Equal(t, "BURGAS", Latinize("Бургас"))
	assert.Equal(t, "SHTARKOVO", Latinize("Щърково"))
	assert.Equal(t, "YAMBOL 25", Latinize("Ямбол 25"))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"ГРАД БУРГАС", "Бургас", true},
		{"БУРГАС", "Burgas", true},          // cross-script
		{"Бургас", "Крайморие, Бургас", true}, // compound containment
		{"СЕЛО ИЗВОР", "Izvor", true},
		{"БУРГАС", "ВАРНА", false},
		{"", "Бургас", false},
		{"Бургас", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
