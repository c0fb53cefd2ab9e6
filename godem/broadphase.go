package godem

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// BroadPhase runs the CD-side candidate-pair generation pipeline of
// spec.md §4.2: snapshot owner state, transform geometries to world
// space, bin them with the safety margin folded into the query radius,
// then emit deduplicated candidate pairs per bin. Generalizes the
// teacher's SpatialGrid.GetPotentialCollisions single-pass query into the
// explicit snapshot → transform → bin → emit → dedup pipeline spec.md
// requires for the CD/DI split.
//
// Three candidate kinds are generated (spec.md §3 "kind ∈ {sphere-sphere,
// sphere-triangle, sphere-analytical}", §4.2 "for every sphere and every
// triangle ... inflated by β"): spheres are binned and paired against
// both other spheres and binned triangles; analytical boundaries have no
// finite extent to bin, so every sphere is instead tested directly
// against every analytical primitive, mask-checked the same as a binned
// pair.
type BroadPhase struct {
	grid     *BinGrid
	geometry *GeometryStore
	masks    *FamilyMask

	// beta is the safety margin folded into every query radius (spec.md
	// §4.2, §9 Open Question 3: enforced as a hard ConfigError relationship
	// at Initialize, not silently tolerated here).
	beta float64
}

func NewBroadPhase(grid *BinGrid, geometry *GeometryStore, masks *FamilyMask, beta float64) *BroadPhase {
	return &BroadPhase{grid: grid, geometry: geometry, masks: masks, beta: beta}
}

type worldSphere struct {
	gid    GeometryID
	owner  OwnerID
	family FamilyID
	center mgl64.Vec3
	radius float64
}

type worldTriangle struct {
	gid        GeometryID
	owner      OwnerID
	family     FamilyID
	v0, v1, v2 mgl64.Vec3
	min, max   mgl64.Vec3
}

type worldAnalytical struct {
	gid    GeometryID
	owner  OwnerID
	family FamilyID
	shape  Analytical
}

// transformSpheres resolves every sphere geometry from its owner's
// committed snapshot state into world coordinates.
func transformSpheres(states []OwnerState, geometry *GeometryStore, store *OwnerStore) []worldSphere {
	var out []worldSphere
	for _, gid := range geometry.All() {
		if geometry.Kind(gid) != GeometrySphere {
			continue
		}
		owner := geometry.OwnerOf(gid)
		sp := geometry.Sphere(gid)
		st := states[owner]
		worldPos := st.Ori.Rotate(sp.RelPos).Add(store.frame.Decode(st.Pos))
		out = append(out, worldSphere{
			gid:    gid,
			owner:  owner,
			family: store.familyOf(owner),
			center: worldPos,
			radius: sp.Radius,
		})
	}
	return out
}

// transformTriangles resolves every mesh facet into world coordinates and
// its AABB, unexpanded (the β expansion is applied at bin-query time, not
// baked into the stored box).
func transformTriangles(states []OwnerState, geometry *GeometryStore, store *OwnerStore) []worldTriangle {
	var out []worldTriangle
	for _, gid := range geometry.All() {
		if geometry.Kind(gid) != GeometryTriangle {
			continue
		}
		owner := geometry.OwnerOf(gid)
		v0, v1, v2 := worldTriangleOf(states, geometry, store.frame, gid)
		min := componentMin(componentMin(v0, v1), v2)
		max := componentMax(componentMax(v0, v1), v2)
		out = append(out, worldTriangle{
			gid:    gid,
			owner:  owner,
			family: store.familyOf(owner),
			v0:     v0, v1: v1, v2: v2,
			min: min, max: max,
		})
	}
	return out
}

// transformAnalytical resolves every analytical boundary primitive into
// world coordinates. Analytical shapes (infinite planes, semi-infinite
// cylinders) have no finite bounding box, so they are never binned; every
// sphere is cross-tested against every one directly.
func transformAnalytical(states []OwnerState, geometry *GeometryStore, store *OwnerStore) []worldAnalytical {
	var out []worldAnalytical
	for _, gid := range geometry.All() {
		if geometry.Kind(gid) != GeometryAnalytical {
			continue
		}
		owner := geometry.OwnerOf(gid)
		out = append(out, worldAnalytical{
			gid:    gid,
			owner:  owner,
			family: store.familyOf(owner),
			shape:  worldAnalyticalOf(states, geometry, store.frame, gid),
		})
	}
	return out
}

func componentMin(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{min(a.X(), b.X()), min(a.Y(), b.Y()), min(a.Z(), b.Z())}
}

func componentMax(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{max(a.X(), b.X()), max(a.Y(), b.Y()), max(a.Z(), b.Z())}
}

// entryKind discriminates the binned-entry union below.
type entryKind int

const (
	entrySphere entryKind = iota
	entryTriangle
)

type binEntry struct {
	bin  BinID
	kind entryKind
	ws   worldSphere
	wt   worldTriangle
}

// Run executes one full broad-phase cycle and returns deduplicated
// candidate contact pairs, or a *TooCrowdedError if any bin overflowed.
func (bp *BroadPhase) Run(states []OwnerState, store *OwnerStore) ([]ContactPair, error) {
	spheres := transformSpheres(states, bp.geometry, store)
	triangles := transformTriangles(states, bp.geometry, store)
	analyticals := transformAnalytical(states, bp.geometry, store)

	// touch-count / bin assignment: spheres query their expanded bounding
	// sphere, triangles their AABB inflated by β on every side.
	var entries []binEntry
	binCount := make(map[BinID]int)
	for _, ws := range spheres {
		for _, b := range bp.grid.BinsForSphere(ws.center, ws.radius+bp.beta) {
			entries = append(entries, binEntry{bin: b, kind: entrySphere, ws: ws})
			binCount[b]++
		}
	}
	expand := mgl64.Vec3{bp.beta, bp.beta, bp.beta}
	for _, wt := range triangles {
		for _, b := range bp.grid.BinsForBox(wt.min.Sub(expand), wt.max.Add(expand)) {
			entries = append(entries, binEntry{bin: b, kind: entryTriangle, wt: wt})
			binCount[b]++
		}
	}

	cap := bp.grid.OccupancyCap()
	for _, n := range binCount {
		if n > cap {
			return nil, &TooCrowdedError{BinOccupancy: n, Cap: cap, Retry: 1}
		}
	}

	// sort by bin so each bin's members are contiguous, then emit
	// per-bin pairs
	sort.Slice(entries, func(i, j int) bool { return entries[i].bin < entries[j].bin })

	seen := make(map[ContactKey]struct{})
	var pairs []ContactPair

	i := 0
	for i < len(entries) {
		j := i + 1
		for j < len(entries) && entries[j].bin == entries[i].bin {
			j++
		}
		bp.emitBinPairs(entries[i:j], seen, &pairs)
		i = j
	}

	bp.emitSphereAnalyticalPairs(spheres, analyticals, seen, &pairs)

	return pairs, nil
}

func (bp *BroadPhase) emitBinPairs(group []binEntry, seen map[ContactKey]struct{}, pairs *[]ContactPair) {
	for a := 0; a < len(group); a++ {
		for b := a + 1; b < len(group); b++ {
			ea, eb := group[a], group[b]
			switch {
			case ea.kind == entrySphere && eb.kind == entrySphere:
				bp.tryEmitSphereSphere(ea.ws, eb.ws, seen, pairs)
			case ea.kind == entrySphere && eb.kind == entryTriangle:
				bp.tryEmitSphereTriangle(ea.ws, eb.wt, seen, pairs)
			case ea.kind == entryTriangle && eb.kind == entrySphere:
				bp.tryEmitSphereTriangle(eb.ws, ea.wt, seen, pairs)
			default:
				// triangle-triangle candidates have no narrow-phase test
				// and no PairKind; mesh facets never collide with each other.
			}
		}
	}
}

func (bp *BroadPhase) tryEmitSphereSphere(wa, wb worldSphere, seen map[ContactKey]struct{}, pairs *[]ContactPair) {
	if wa.owner == wb.owner {
		return
	}
	if !bp.masks.Allowed(wa.family, wb.family) {
		return
	}
	key := NewContactKey(wa.gid, wb.gid)
	if _, dup := seen[key]; dup {
		return
	}
	d := wa.center.Sub(wb.center).Len()
	if d > wa.radius+wb.radius+bp.beta {
		return
	}
	seen[key] = struct{}{}
	*pairs = append(*pairs, ContactPair{Key: key, Kind: PairSphereSphere})
}

func (bp *BroadPhase) tryEmitSphereTriangle(ws worldSphere, wt worldTriangle, seen map[ContactKey]struct{}, pairs *[]ContactPair) {
	if ws.owner == wt.owner {
		return
	}
	if !bp.masks.Allowed(ws.family, wt.family) {
		return
	}
	// sphere is always Key.A for this asymmetric kind, so narrow-phase
	// and force application never have to guess which side is which.
	key := ContactKey{A: ws.gid, B: wt.gid}
	if _, dup := seen[key]; dup {
		return
	}
	closest := closestPointOnTriangle(ws.center, wt.v0, wt.v1, wt.v2)
	if ws.center.Sub(closest).Len() > ws.radius+bp.beta {
		return
	}
	seen[key] = struct{}{}
	*pairs = append(*pairs, ContactPair{Key: key, Kind: PairSphereTriangle})
}

// emitSphereAnalyticalPairs cross-tests every sphere against every
// analytical boundary primitive directly: analytical shapes have no
// finite extent, so they never participate in bin assignment (spec.md
// §4.2, §3 "Analytical objects").
func (bp *BroadPhase) emitSphereAnalyticalPairs(spheres []worldSphere, analyticals []worldAnalytical, seen map[ContactKey]struct{}, pairs *[]ContactPair) {
	for _, ws := range spheres {
		for _, wa := range analyticals {
			if ws.owner == wa.owner {
				continue
			}
			if !bp.masks.Allowed(ws.family, wa.family) {
				continue
			}
			// sphere is always Key.A here too, matching the sphere-triangle
			// convention.
			key := ContactKey{A: ws.gid, B: wa.gid}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			*pairs = append(*pairs, ContactPair{Key: key, Kind: PairSphereAnalytical})
		}
	}
}
