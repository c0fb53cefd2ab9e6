package godem

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// ClumpTemplateHandle is the opaque handle LoadClumpTemplate returns
// (spec.md §6), reused across every AddClumps call that instantiates the
// same rigid shape.
type ClumpTemplateHandle struct {
	index int
}

// ClumpComponent is one sphere of a clump template, in the template's own
// body frame, paired with the material it's made of.
type ClumpComponent struct {
	RelPos mgl64.Vec3
	Radius float64
	Mat    MaterialHandle
}

// ClumpTemplate is a cached rigid shape: component spheres plus the mass
// and inertia derived from them (spec.md §3, "Clump templates"). Templates
// are loaded once and instantiated by reference, mirroring the teacher's
// template-cache idiom (0x5844-physics2D keeps a single canonical shape
// definition and stamps out RigidBody instances from it).
type ClumpTemplate struct {
	Components []ClumpComponent
	Mass       float64
	MOI        mgl64.Vec3 // principal moments, about the template's own centroid
}

// ClumpTemplateStore caches clump templates by handle. Writable only by
// the controller between Sync and Step.
type ClumpTemplateStore struct {
	mu        sync.RWMutex
	templates []ClumpTemplate
}

func NewClumpTemplateStore() *ClumpTemplateStore {
	return &ClumpTemplateStore{}
}

// Load registers a clump template from explicit mass/MOI (the caller has
// already computed or supplied these, spec.md §6 LoadClumpType signature).
func (s *ClumpTemplateStore) Load(components []ClumpComponent, mass float64, moi mgl64.Vec3) ClumpTemplateHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.templates)
	cp := make([]ClumpComponent, len(components))
	copy(cp, components)
	s.templates = append(s.templates, ClumpTemplate{Components: cp, Mass: mass, MOI: moi})
	return ClumpTemplateHandle{index: idx}
}

func (s *ClumpTemplateStore) Template(h ClumpTemplateHandle) ClumpTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[h.index]
}

// ComputeMassProperties derives mass and principal MOI for a set of
// uniform-density spherical components by summing each sphere's own
// inertia (2/5 m r^2 about its own center) plus its parallel-axis
// contribution from the offset to the clump centroid. Density is applied
// uniformly across components (spec.md leaves per-component density out
// of scope; the common DEM convention is one density per clump).
func ComputeMassProperties(components []ClumpComponent, density float64) (mass float64, moi mgl64.Vec3) {
	type massPoint struct {
		pos mgl64.Vec3
		m   float64
		r   float64
	}
	pts := make([]massPoint, len(components))
	var totalMass float64
	var centroid mgl64.Vec3
	for i, c := range components {
		vol := (4.0 / 3.0) * 3.14159265358979323846 * c.Radius * c.Radius * c.Radius
		m := vol * density
		pts[i] = massPoint{pos: c.RelPos, m: m, r: c.Radius}
		totalMass += m
		centroid = centroid.Add(c.RelPos.Mul(m))
	}
	if totalMass > 0 {
		centroid = centroid.Mul(1.0 / totalMass)
	}

	var ixx, iyy, izz float64
	for _, p := range pts {
		own := 0.4 * p.m * p.r * p.r
		d := p.pos.Sub(centroid)
		ixx += own + p.m*(d.Y()*d.Y()+d.Z()*d.Z())
		iyy += own + p.m*(d.X()*d.X()+d.Z()*d.Z())
		izz += own + p.m*(d.X()*d.X()+d.Y()*d.Y())
	}
	return totalMass, mgl64.Vec3{ixx, iyy, izz}
}
