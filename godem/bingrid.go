package godem

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BinID is the dense linearized index of a broad-phase bin (spec.md §4.2).
type BinID uint64

// defaultBinOccupancyCap bounds how many geometries a single bin may hold
// before a cycle is aborted as TooCrowded (spec.md §4.2, "Overflow"). The
// teacher's SpatialGrid has no such cap (CPU grids just grow their
// buckets); this exists because spec.md requires a fixed cap with a
// halving retry, mirroring the GPU-oriented original's fixed bin buffer.
const defaultBinOccupancyCap = 64

// BinGrid partitions world space into uniform cubic bins, at least one
// voxel edge long, used by broad-phase to generate
// candidate contact pairs (spec.md §4.2). Generalizes the teacher's
// SpatialGrid (0x5844-physics2D) from a 2D float-keyed grid to the 3D
// voxel-integer grid used here.
type BinGrid struct {
	frame WorldFrame

	binSize float64 // world units, >= voxel size
	cap     int
}

// NewBinGrid creates a bin grid whose bin edge is binSize world units,
// which must be at least one voxel wide.
func NewBinGrid(frame WorldFrame, binSize float64) (*BinGrid, error) {
	if binSize < frame.VoxelSize() {
		return nil, &ConfigError{Msg: "bin size must be at least one voxel wide"}
	}
	return &BinGrid{frame: frame, binSize: binSize, cap: defaultBinOccupancyCap}, nil
}

// BinSize returns the current bin edge length in world units.
func (g *BinGrid) BinSize() float64 { return g.binSize }

// HalveBinSize shrinks the bin edge by half, the spec.md §4.2 recovery
// action taken after a TooCrowdedError, never going below one voxel.
func (g *BinGrid) HalveBinSize() error {
	next := g.binSize / 2
	if next < g.frame.VoxelSize() {
		return &ConfigError{Msg: "bin size cannot be halved below one voxel"}
	}
	g.binSize = next
	return nil
}

func (g *BinGrid) cellOf(p mgl64.Vec3) (int64, int64, int64) {
	return int64(math.Floor(p.X() / g.binSize)),
		int64(math.Floor(p.Y() / g.binSize)),
		int64(math.Floor(p.Z() / g.binSize))
}

// binHash linearizes a signed 3D cell coordinate into a BinID via a
// fixed-width offset, mirroring the teacher's integer cell-to-key hashing
// (0x5844-physics2D SpatialGrid.cellKey) generalized to three axes.
func binHash(cx, cy, cz int64) BinID {
	const offset = int64(1) << 20
	const width = uint64(1) << 21
	ux := uint64(cx + offset)
	uy := uint64(cy + offset)
	uz := uint64(cz + offset)
	return BinID(ux + uy*width + uz*width*width)
}

// BinsForBox returns every bin overlapping the axis-aligned box [min, max],
// the shared range-query core for both sphere and triangle binning
// (spec.md §4.2: spheres query a sphere's expanded bounding box, triangles
// their own AABB, both inflated by β).
func (g *BinGrid) BinsForBox(min, max mgl64.Vec3) []BinID {
	minX, minY, minZ := g.cellOf(min)
	maxX, maxY, maxZ := g.cellOf(max)

	var out []BinID
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				out = append(out, binHash(x, y, z))
			}
		}
	}
	return out
}

// BinsForSphere returns every bin a sphere of given center and (expanded)
// radius overlaps, expansion already folding in the safety margin β
// (spec.md §4.2: "query radius = geometric radius + β").
func (g *BinGrid) BinsForSphere(center mgl64.Vec3, expandedRadius float64) []BinID {
	expand := mgl64.Vec3{expandedRadius, expandedRadius, expandedRadius}
	return g.BinsForBox(center.Sub(expand), center.Add(expand))
}

// OccupancyCap returns the number of entries tolerated per bin before a
// TooCrowdedError is raised.
func (g *BinGrid) OccupancyCap() int { return g.cap }
