package godem

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestTestSphereSphereOverlap(t *testing.T) {
	res := TestSphereSphere(mgl64.Vec3{0, 0, 0}, 1.0, mgl64.Vec3{1.5, 0, 0}, 1.0)
	assert.True(t, res.Overlap)
	assert.InDelta(t, 0.5, res.Depth, 1e-9)
	assert.InDelta(t, 1.0, res.Normal.X(), 1e-9)
}

func TestTestSphereSphereNoOverlap(t *testing.T) {
	res := TestSphereSphere(mgl64.Vec3{0, 0, 0}, 1.0, mgl64.Vec3{3, 0, 0}, 1.0)
	assert.False(t, res.Overlap)
}

func TestTestSphereTriangleOverlap(t *testing.T) {
	v0 := mgl64.Vec3{-1, -1, 0}
	v1 := mgl64.Vec3{1, -1, 0}
	v2 := mgl64.Vec3{0, 1, 0}

	res := TestSphereTriangle(mgl64.Vec3{0, 0, 0.5}, 1.0, v0, v1, v2)
	assert.True(t, res.Overlap)
	assert.InDelta(t, 0.5, res.Depth, 1e-9)
}

func TestTestSphereTriangleNoOverlap(t *testing.T) {
	v0 := mgl64.Vec3{-1, -1, 0}
	v1 := mgl64.Vec3{1, -1, 0}
	v2 := mgl64.Vec3{0, 1, 0}

	res := TestSphereTriangle(mgl64.Vec3{0, 0, 5}, 1.0, v0, v1, v2)
	assert.False(t, res.Overlap)
}

func TestTestSphereAnalyticalPlane(t *testing.T) {
	plane := Analytical{Kind: AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}}
	res := TestSphereAnalytical(mgl64.Vec3{0, 0, 0.5}, 1.0, plane)
	assert.True(t, res.Overlap)
	assert.InDelta(t, 0.5, res.Depth, 1e-9)
}

func TestTestSphereAnalyticalPlaneNoOverlap(t *testing.T) {
	plane := Analytical{Kind: AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}}
	res := TestSphereAnalytical(mgl64.Vec3{0, 0, 5}, 1.0, plane)
	assert.False(t, res.Overlap)
}

func TestTestSphereAnalyticalCylinderInner(t *testing.T) {
	drum := Analytical{Kind: AnalyticalCylinderInner, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Radius: 1.0}
	// sphere near the wall, inside the bore
	res := TestSphereAnalytical(mgl64.Vec3{0.95, 0, 0}, 0.1, drum)
	assert.True(t, res.Overlap)
}

func TestIsFiniteDetectsNaNAndInf(t *testing.T) {
	assert.True(t, isFinite(mgl64.Vec3{1, 2, 3}))
	assert.False(t, isFinite(mgl64.Vec3{math64NaN(), 0, 0}))
}

func math64NaN() float64 {
	var zero float64
	return zero / zero
}
