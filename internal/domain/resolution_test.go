package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches_ExactAndCaseInsensitive(t *testing.T) {
	assert.True(t, Matches("Up", "up"))
	assert.True(t, Matches("DOWN", "Down"))
	assert.True(t, Matches(" Yes ", "yes"))
}

func TestMatches_PolaritySynonyms(t *testing.T) {
	// Gamma dice "Yes"/"No", los updown dicen "Up"/"Down", el campo crudo a
	// veces trae "1"/"0" o "p1"/"p2". Todos equivalen por polaridad.
	for _, declared := range []string{"up", "Yes", "1", "p1"} {
		assert.True(t, Matches("Up", declared), "declared %q", declared)
	}
	for _, declared := range []string{"down", "No", "0", "p2"} {
		assert.True(t, Matches("Down", declared), "declared %q", declared)
	}
}

func TestMatches_OppositePolarity(t *testing.T) {
	assert.False(t, Matches("Up", "Down"))
	assert.False(t, Matches("Yes", "0"))
	assert.False(t, Matches("p1", "no"))
}

func TestMatches_EmptyNeverMatches(t *testing.T) {
	assert.False(t, Matches("", "up"))
	assert.False(t, Matches("up", ""))
	assert.False(t, Matches("", ""))
}

func TestMatches_UnknownLabelsNeedExactEquality(t *testing.T) {
	// Mercados multi-outcome: sin sinónimos, solo igualdad normalizada.
	assert.True(t, Matches("$90k-$95k", "$90K-$95K"))
	assert.False(t, Matches("$90k-$95k", "$95k-$100k"))
}
