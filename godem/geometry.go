package godem

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// GeometryID is the dense identifier of a single collidable primitive
// (spec.md §3: a clump owner may reference several geometries, one per
// component sphere; mesh/analytical owners reference one or more too).
type GeometryID uint32

// GeometryKind distinguishes the three collidable primitive shapes
// narrow-phase supports (spec.md §3, §4.3).
type GeometryKind int

const (
	GeometrySphere GeometryKind = iota
	GeometryTriangle
	GeometryAnalytical
)

// AnalyticalKind enumerates the infinite/semi-infinite primitives
// supported as boundary geometry (spec.md §3, "Analytical objects").
type AnalyticalKind int

const (
	AnalyticalPlane AnalyticalKind = iota
	AnalyticalCylinderInner
	AnalyticalCylinderOuter
)

// Sphere is a component sphere, expressed in its owner's body frame
// (spec.md §3: "clump = rigid union of spheres, each with a relative
// position and radius").
type Sphere struct {
	RelPos mgl64.Vec3
	Radius float64
	Mat    MaterialHandle
}

// Triangle is a single mesh facet in body-frame vertex coordinates
// (spec.md §3, "Mesh objects").
type Triangle struct {
	V0, V1, V2 mgl64.Vec3
	Mat        MaterialHandle
}

// Analytical is an infinite or semi-infinite boundary primitive, defined
// in its owner's body frame by a point on the surface and a normal/axis
// (spec.md §3, "Analytical objects"). For cylinders, Point+Normal give
// the axis (point on axis, axis direction) and Radius the bore/shell
// radius.
type Analytical struct {
	Kind   AnalyticalKind
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	Radius float64
	Mat    MaterialHandle
}

// geometryRef is the dense per-GeometryID lookup record: which owner it
// belongs to, its kind, and the index into the kind-specific backing
// array. Mirrors the teacher's dense-ref-table indirection
// (0x5844-physics2D SpatialGrid cell entries reference bodies by index,
// never by pointer).
type geometryRef struct {
	owner OwnerID
	kind  GeometryKind
	index int
}

// GeometryStore is the L0 registry of collidable primitives, separate
// from OwnerStore because one owner may reference many geometries
// (spec.md §3). Writable only by the controller between Sync and Step.
type GeometryStore struct {
	mu sync.RWMutex

	refs []geometryRef

	spheres    []Sphere
	triangles  []Triangle
	analytical []Analytical

	byOwner map[OwnerID][]GeometryID
}

func NewGeometryStore() *GeometryStore {
	return &GeometryStore{byOwner: make(map[OwnerID][]GeometryID)}
}

func (s *GeometryStore) addRef(owner OwnerID, kind GeometryKind, index int) GeometryID {
	id := GeometryID(len(s.refs))
	s.refs = append(s.refs, geometryRef{owner: owner, kind: kind, index: index})
	s.byOwner[owner] = append(s.byOwner[owner], id)
	return id
}

// AddSphere registers a component sphere under owner and returns its id.
func (s *GeometryStore) AddSphere(owner OwnerID, sp Sphere) GeometryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.spheres)
	s.spheres = append(s.spheres, sp)
	return s.addRef(owner, GeometrySphere, idx)
}

// AddTriangle registers a mesh facet under owner and returns its id.
func (s *GeometryStore) AddTriangle(owner OwnerID, tri Triangle) GeometryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.triangles)
	s.triangles = append(s.triangles, tri)
	return s.addRef(owner, GeometryTriangle, idx)
}

// AddAnalytical registers an analytical boundary primitive under owner.
func (s *GeometryStore) AddAnalytical(owner OwnerID, a Analytical) GeometryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.analytical)
	s.analytical = append(s.analytical, a)
	return s.addRef(owner, GeometryAnalytical, idx)
}

// Kind reports the primitive kind of a geometry id.
func (s *GeometryStore) Kind(id GeometryID) GeometryKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refs[id].kind
}

// OwnerOf reports which owner a geometry id belongs to.
func (s *GeometryStore) OwnerOf(id GeometryID) OwnerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refs[id].owner
}

func (s *GeometryStore) Sphere(id GeometryID) Sphere {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spheres[s.refs[id].index]
}

func (s *GeometryStore) Triangle(id GeometryID) Triangle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.triangles[s.refs[id].index]
}

func (s *GeometryStore) Analytical(id GeometryID) Analytical {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analytical[s.refs[id].index]
}

// ForOwner returns every geometry id belonging to an owner.
func (s *GeometryStore) ForOwner(owner OwnerID) []GeometryID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byOwner[owner]
}

// All returns every registered geometry id, in insertion order.
func (s *GeometryStore) All() []GeometryID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GeometryID, len(s.refs))
	for i := range s.refs {
		out[i] = GeometryID(i)
	}
	return out
}

// remapOwners rewrites owner-id references after OwnerStore.PurgeFamily
// compacts the owner index space. Geometries whose owner is no longer
// present (not in remap) are dropped.
func (s *GeometryStore) remapOwners(remap map[OwnerID]OwnerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newByOwner := make(map[OwnerID][]GeometryID, len(s.byOwner))
	keptRefs := s.refs[:0]
	for i, r := range s.refs {
		newOwner, ok := remap[r.owner]
		if !ok {
			continue
		}
		r.owner = newOwner
		id := GeometryID(len(keptRefs))
		keptRefs = append(keptRefs, r)
		newByOwner[newOwner] = append(newByOwner[newOwner], id)
		_ = i
	}
	s.refs = keptRefs
	s.byOwner = newByOwner
}
