package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orovista/backoffice/internal/watchlist/normalize"
)

func TestNormalize_AccentEquivalence(t *testing.T) {
	assert.Equal(t, normalize.Normalize("jose garcia"), normalize.Normalize("José García"))
	assert.Equal(t, normalize.Normalize("ESPANA"), normalize.Normalize("España"))
	assert.Equal(t, "jose garcia", normalize.Normalize("José García"))
}

func TestNormalize_StripsQuotesAndPunctuation(t *testing.T) {
	assert.Equal(t, "anillo de oro 18k", normalize.Normalize(`"Anillo" de oro - 18k.`))
	assert.Equal(t, "o connor", normalize.Normalize("O'Connor"))
}

func TestNormalize_PreservesCommas(t *testing.T) {
	// commas delimit compound locations and must survive
	assert.Equal(t, "madrid, espana", normalize.Normalize("Madrid, España"))
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "maria lopez", normalize.Normalize("  María   López\t"))
	assert.Equal(t, "", normalize.Normalize("   \t\n"))
}

func TestNormalize_GenericDecompositionFallback(t *testing.T) {
	// a-macron is not in the explicit table; the NFD pass handles it
	assert.Equal(t, "maori", normalize.Normalize("Māori"))
}

func TestNormalize_Idempotent(t *testing.T) {
	samples := []string{
		"José García",
		`"Anillo" de oro - 18k.`,
		"Madrid, España",
		"ABC-123 / XYZ",
		"",
	}
	for _, s := range samples {
		once := normalize.Normalize(s)
		assert.Equal(t, once, normalize.Normalize(once), "input %q", s)
	}
}
