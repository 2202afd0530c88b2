package mapsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	m := map[string]any{
		"width":    384,
		"steps":    float64(12),
		"cfg":      1,
		"language": "en",
		"convert":  true,
		"nil":      nil,
	}

	assert.Equal(t, 384, Get(m, "width", 0))
	assert.Equal(t, 12, Get(m, "steps", 0))
	assert.Equal(t, int64(384), Get(m, "width", int64(0)))
	assert.Equal(t, 1.0, Get(m, "cfg", 0.0))
	assert.Equal(t, "en", Get(m, "language", ""))
	assert.True(t, Get(m, "convert", false))

	assert.Equal(t, "fallback", Get(m, "missing", "fallback"))
	assert.Equal(t, 7, Get(m, "nil", 7))
	assert.Equal(t, 5, Get(m, "language", 5), "type mismatch falls back")
	assert.Equal(t, "x", Get[string](nil, "language", "x"))
}
