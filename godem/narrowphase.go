package godem

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NarrowPhaseResult holds the exact overlap geometry computed for a
// broad-phase candidate, passed to the force model when positive
// (spec.md §4.3, "exact overlap tests").
type NarrowPhaseResult struct {
	Overlap bool
	Depth   float64 // penetration depth, positive when touching
	// Normal is a unit normal: from A toward B for sphere-sphere, and from
	// the boundary (triangle or analytical) toward the sphere otherwise.
	Normal mgl64.Vec3
	// Point is the world-frame contact point: the middle of the overlap for
	// sphere-sphere, the point on the boundary surface otherwise.
	Point mgl64.Vec3
}

// worldSphereOf, worldTriangleOf and worldAnalyticalOf resolve a
// geometry's world-frame shape from committed owner state, shared by
// broad- and narrow-phase.
func worldSphereOf(states []OwnerState, geometry *GeometryStore, frame WorldFrame, gid GeometryID) (center mgl64.Vec3, radius float64) {
	owner := geometry.OwnerOf(gid)
	sp := geometry.Sphere(gid)
	st := states[owner]
	return st.Ori.Rotate(sp.RelPos).Add(frame.Decode(st.Pos)), sp.Radius
}

func worldTriangleOf(states []OwnerState, geometry *GeometryStore, frame WorldFrame, gid GeometryID) (v0, v1, v2 mgl64.Vec3) {
	owner := geometry.OwnerOf(gid)
	tri := geometry.Triangle(gid)
	st := states[owner]
	origin := frame.Decode(st.Pos)
	v0 = st.Ori.Rotate(tri.V0).Add(origin)
	v1 = st.Ori.Rotate(tri.V1).Add(origin)
	v2 = st.Ori.Rotate(tri.V2).Add(origin)
	return
}

func worldAnalyticalOf(states []OwnerState, geometry *GeometryStore, frame WorldFrame, gid GeometryID) Analytical {
	owner := geometry.OwnerOf(gid)
	a := geometry.Analytical(gid)
	st := states[owner]
	origin := frame.Decode(st.Pos)
	a.Point = st.Ori.Rotate(a.Point).Add(origin)
	a.Normal = st.Ori.Rotate(a.Normal).Normalize()
	return a
}

// TestSphereSphere performs the exact overlap test between two spheres.
func TestSphereSphere(c1 mgl64.Vec3, r1 float64, c2 mgl64.Vec3, r2 float64) NarrowPhaseResult {
	delta := c2.Sub(c1)
	dist := delta.Len()
	depth := r1 + r2 - dist
	if depth <= 0 {
		return NarrowPhaseResult{}
	}
	var normal mgl64.Vec3
	if dist > 1e-12 {
		normal = delta.Mul(1.0 / dist)
	} else {
		normal = mgl64.Vec3{0, 0, 1}
	}
	point := c1.Add(normal.Mul(r1 - depth/2))
	return NarrowPhaseResult{Overlap: true, Depth: depth, Normal: normal, Point: point}
}

// TestSphereTriangle performs an exact sphere-triangle overlap test using
// closest-point-on-triangle projection (the standard exact test; spec.md
// §4.3 leaves the precise algorithm unspecified beyond "exact, not
// bounding-volume approximate").
func TestSphereTriangle(center mgl64.Vec3, radius float64, v0, v1, v2 mgl64.Vec3) NarrowPhaseResult {
	closest := closestPointOnTriangle(center, v0, v1, v2)
	delta := center.Sub(closest)
	dist := delta.Len()
	depth := radius - dist
	if depth <= 0 {
		return NarrowPhaseResult{}
	}
	var normal mgl64.Vec3
	if dist > 1e-12 {
		normal = delta.Mul(1.0 / dist)
	} else {
		e1 := v1.Sub(v0)
		e2 := v2.Sub(v0)
		normal = e1.Cross(e2).Normalize()
	}
	point := closest
	return NarrowPhaseResult{Overlap: true, Depth: depth, Normal: normal, Point: point}
}

func closestPointOnTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

// TestSphereAnalytical performs the exact overlap test between a sphere
// and an analytical boundary primitive (spec.md §3 "Analytical objects").
func TestSphereAnalytical(center mgl64.Vec3, radius float64, a Analytical) NarrowPhaseResult {
	switch a.Kind {
	case AnalyticalPlane:
		d := center.Sub(a.Point).Dot(a.Normal)
		depth := radius - d
		if depth <= 0 {
			return NarrowPhaseResult{}
		}
		point := center.Sub(a.Normal.Mul(d))
		return NarrowPhaseResult{Overlap: true, Depth: depth, Normal: a.Normal, Point: point}

	case AnalyticalCylinderInner, AnalyticalCylinderOuter:
		axis := a.Normal.Normalize()
		rel := center.Sub(a.Point)
		alongAxis := rel.Dot(axis)
		radial := rel.Sub(axis.Mul(alongAxis))
		radialDist := radial.Len()

		var normal mgl64.Vec3
		if radialDist > 1e-12 {
			normal = radial.Mul(1.0 / radialDist)
		} else {
			normal = mgl64.Vec3{1, 0, 0}
		}
		radialDir := normal

		var depth float64
		if a.Kind == AnalyticalCylinderInner {
			// sphere inside a bore: wall is at radius a.Radius, normal
			// points inward (toward the axis).
			depth = radius - (a.Radius - radialDist)
			normal = normal.Mul(-1)
		} else {
			// sphere outside a solid shell/pillar.
			depth = radius - (radialDist - a.Radius)
		}
		if depth <= 0 {
			return NarrowPhaseResult{}
		}
		point := a.Point.Add(axis.Mul(alongAxis)).Add(radialDir.Mul(a.Radius))
		return NarrowPhaseResult{Overlap: true, Depth: depth, Normal: normal, Point: point}
	}
	return NarrowPhaseResult{}
}

// ResolveContact dispatches a broad-phase candidate to the matching exact
// overlap test, resolving both geometries' world-frame shapes from the
// current committed state first (spec.md §4.3 step order: "resolve, then
// test, then force").
func ResolveContact(pair ContactPair, states []OwnerState, geometry *GeometryStore, frame WorldFrame) NarrowPhaseResult {
	switch pair.Kind {
	case PairSphereSphere:
		c1, r1 := worldSphereOf(states, geometry, frame, pair.Key.A)
		c2, r2 := worldSphereOf(states, geometry, frame, pair.Key.B)
		return TestSphereSphere(c1, r1, c2, r2)

	case PairSphereTriangle:
		sphereID, triID := pair.Key.A, pair.Key.B
		if geometry.Kind(sphereID) != GeometrySphere {
			sphereID, triID = triID, sphereID
		}
		c, r := worldSphereOf(states, geometry, frame, sphereID)
		v0, v1, v2 := worldTriangleOf(states, geometry, frame, triID)
		return TestSphereTriangle(c, r, v0, v1, v2)

	case PairSphereAnalytical:
		sphereID, analyticalID := pair.Key.A, pair.Key.B
		if geometry.Kind(sphereID) != GeometrySphere {
			sphereID, analyticalID = analyticalID, sphereID
		}
		c, r := worldSphereOf(states, geometry, frame, sphereID)
		a := worldAnalyticalOf(states, geometry, frame, analyticalID)
		return TestSphereAnalytical(c, r, a)
	}
	return NarrowPhaseResult{}
}

// isFinite reports whether all components of v are finite, used by DI to
// detect the NaN/Inf conditions spec.md §7 classifies as runtime-fatal.
func isFinite(v mgl64.Vec3) bool {
	return !math.IsNaN(v.X()) && !math.IsInf(v.X(), 0) &&
		!math.IsNaN(v.Y()) && !math.IsInf(v.Y(), 0) &&
		!math.IsNaN(v.Z()) && !math.IsInf(v.Z(), 0)
}
