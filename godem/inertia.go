package godem

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// InertiaTensor caches a 3x3 inertia matrix and its inverse so DI's
// per-step torque integration (spec.md §4.3, step 5) is a matrix-vector
// multiply rather than a re-solve. Clump templates build this from a
// diagonal principal-axis MOI vector (spec.md §3, "inertia tensor is a
// diagonal in principal axes"); kept as a general 3x3 gonum matrix (not
// hand-unrolled reciprocals) so the same machinery also serves any future
// non-diagonal composition without a second code path.
type InertiaTensor struct {
	m   *mat.Dense
	inv *mat.Dense
}

// NewDiagonalInertia builds an InertiaTensor from principal moments of
// inertia (Ix, Iy, Iz).
func NewDiagonalInertia(moi mgl64.Vec3) *InertiaTensor {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, moi.X())
	m.Set(1, 1, moi.Y())
	m.Set(2, 2, moi.Z())

	inv := mat.NewDense(3, 3, nil)
	if moi.X() > 0 && moi.Y() > 0 && moi.Z() > 0 {
		if err := inv.Inverse(m); err != nil {
			inv = mat.NewDense(3, 3, nil)
		}
	}
	return &InertiaTensor{m: m, inv: inv}
}

func (it *InertiaTensor) mulVec(mx *mat.Dense, v mgl64.Vec3) mgl64.Vec3 {
	in := mat.NewVecDense(3, []float64{v.X(), v.Y(), v.Z()})
	var out mat.VecDense
	out.MulVec(mx, in)
	return mgl64.Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Apply computes I·v.
func (it *InertiaTensor) Apply(v mgl64.Vec3) mgl64.Vec3 { return it.mulVec(it.m, v) }

// ApplyInv computes I⁻¹·v.
func (it *InertiaTensor) ApplyInv(v mgl64.Vec3) mgl64.Vec3 { return it.mulVec(it.inv, v) }
