package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseState(t *testing.T) {
	t.Run("known wire values round-trip", func(t *testing.T) {
		s, ok := ParseState(1)
		assert.True(t, ok)
		assert.Equal(t, StateAnonymous, s)

		s, ok = ParseState(2)
		assert.True(t, ok)
		assert.Equal(t, StateRegistered, s)
	})

	t.Run("values outside the closed set are rejected", func(t *testing.T) {
		for _, raw := range []int{0, 3, -1, 99} {
			_, ok := ParseState(raw)
			assert.False(t, ok, "raw=%d", raw)
		}
	})
}

func TestStateRegistered(t *testing.T) {
	assert.False(t, StateAnonymous.Registered())
	assert.True(t, StateRegistered.Registered())
}
