package godem

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestInertiaTensorApplyAndApplyInvAreInverses(t *testing.T) {
	it := NewDiagonalInertia(mgl64.Vec3{2, 3, 4})
	w := mgl64.Vec3{1, 1, 1}

	applied := it.Apply(w)
	recovered := it.ApplyInv(applied)

	assert.InDelta(t, w.X(), recovered.X(), 1e-9)
	assert.InDelta(t, w.Y(), recovered.Y(), 1e-9)
	assert.InDelta(t, w.Z(), recovered.Z(), 1e-9)
}

func TestInertiaTensorDegenerateFallsBackToZero(t *testing.T) {
	it := NewDiagonalInertia(mgl64.Vec3{0, 0, 0})
	w := mgl64.Vec3{1, 2, 3}
	assert.Equal(t, mgl64.Vec3{}, it.Apply(w))
	assert.Equal(t, mgl64.Vec3{}, it.ApplyInv(w))
}
