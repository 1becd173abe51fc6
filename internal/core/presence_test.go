package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresence_RegisterIsIdempotent(t *testing.T) {
	p := NewPresence()

	assert.True(t, p.Register("a", "Ada"))
	assert.False(t, p.Register("a", "Someone Else"))

	name, ok := p.Name("a")
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)
	assert.Equal(t, 1, p.Count())
}

func TestPresence_RemoveOnce(t *testing.T) {
	p := NewPresence()
	p.Register("a", "Ada")

	assert.True(t, p.Remove("a"))
	assert.False(t, p.Remove("a"))

	_, ok := p.Name("a")
	assert.False(t, ok)
	assert.Zero(t, p.Count())
}
