package godem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContactKeyIsOrderIndependent(t *testing.T) {
	k1 := NewContactKey(5, 2)
	k2 := NewContactKey(2, 5)
	assert.Equal(t, k1, k2)
	assert.Equal(t, GeometryID(2), k1.A)
	assert.Equal(t, GeometryID(5), k1.B)
}

func TestContactHistorySweepsUntouchedContacts(t *testing.T) {
	h := NewContactHistory()

	h.BeginStep()
	key1 := NewContactKey(1, 2)
	key2 := NewContactKey(3, 4)
	h.Touch(key1, PairSphereSphere, 0.001, [3]float64{0, 0, 1})
	h.Touch(key2, PairSphereSphere, 0.002, [3]float64{0, 0, 1})
	assert.Equal(t, 2, h.Count())
	removed := h.EndSweep()
	assert.Equal(t, 0, removed)

	h.BeginStep()
	h.Touch(key1, PairSphereSphere, 0.001, [3]float64{0, 0, 1})
	removed = h.EndSweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, h.Count())

	_, ok := h.Lookup(key2)
	assert.False(t, ok)
	c1, ok := h.Lookup(key1)
	assert.True(t, ok)
	assert.NotNil(t, c1)
}

func TestContactHistoryPreservesWildcardsAcrossSteps(t *testing.T) {
	h := NewContactHistory()
	key := NewContactKey(1, 2)

	h.BeginStep()
	c := h.Touch(key, PairSphereSphere, 0.001, [3]float64{0, 0, 1})
	c.Wildcards["tangentDispX"] = 0.5
	h.EndSweep()

	h.BeginStep()
	c2 := h.Touch(key, PairSphereSphere, 0.001, [3]float64{0, 0, 1})
	assert.Equal(t, 0.5, c2.Wildcards["tangentDispX"])
	h.EndSweep()
}
