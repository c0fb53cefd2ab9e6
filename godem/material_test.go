package godem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaterialTablePairIsCachedAndSymmetric(t *testing.T) {
	tab := NewMaterialTable()
	a := tab.Load(MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.6, Mu: 0.4, Crr: 0.01})
	b := tab.Load(MaterialProps{E: 2e7, Nu: 0.25, CoR: 0.8, Mu: 0.2, Crr: 0.02})

	pAB := tab.Pair(a, b)
	pBA := tab.Pair(b, a)
	assert.Equal(t, pAB, pBA)

	// cached: a second call returns the identical values
	pAB2 := tab.Pair(a, b)
	assert.Equal(t, pAB, pAB2)

	assert.Greater(t, pAB.EffectiveE, 0.0)
	assert.Greater(t, pAB.EffectiveCoR, 0.0)
}

func TestMaterialTableSelfPairUsesSameMaterialTwice(t *testing.T) {
	tab := NewMaterialTable()
	a := tab.Load(MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.5, Mu: 0.3, Crr: 0.01})
	p := tab.Pair(a, a)
	assert.InDelta(t, 0.5, p.EffectiveCoR, 1e-9)
	assert.InDelta(t, 0.3, p.EffectiveMu, 1e-9)
}
