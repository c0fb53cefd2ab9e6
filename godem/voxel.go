package godem

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// voxelResPower2 is the fixed small constant V from spec.md §3: a voxel's
// edge length is vs = 2^V · l. DEME-style engines hard-code this; we do
// the same rather than exposing it, since nothing in the spec calls for
// tuning it independently of l.
const voxelResPower2 = 16

// VoxelID packs (ix, iy, iz) into a single integer identifier. The default
// width is 32 bits, matching spec.md §3's "bit width of a voxel identifier
// type (default 32)".
type VoxelID uint32

// WorldFrame converts between real-unit coordinates and the
// (voxelID, fractional-offset) representation described in spec.md §3.
// nvX+nvY+nvZ must equal 32 (the bit width of VoxelID); this is checked by
// NewWorldFrame rather than left as a silent caller obligation.
type WorldFrame struct {
	nvX, nvY, nvZ uint8
	l             float64
	vs            float64
}

// NewWorldFrame builds a WorldFrame from the three voxel-count exponents
// and the length unit l. It returns a ConfigError if nvX+nvY+nvZ is not
// exactly 32, the width of VoxelID (spec.md §7, "voxel exponents that
// overflow the bin-id type" is a configuration error reported from
// Initialize).
func NewWorldFrame(nvX, nvY, nvZ uint8, l float64) (WorldFrame, error) {
	if l <= 0 {
		return WorldFrame{}, &ConfigError{Msg: "length unit l must be positive"}
	}
	sum := int(nvX) + int(nvY) + int(nvZ)
	if sum != 32 {
		return WorldFrame{}, &ConfigError{Msg: fmt.Sprintf("voxel exponents must sum to 32 bits, got %d", sum)}
	}
	return WorldFrame{
		nvX: nvX, nvY: nvY, nvZ: nvZ,
		l:  l,
		vs: math.Ldexp(l, voxelResPower2),
	}, nil
}

// VoxelSize returns vs = 2^V · l, the real-unit edge length of one voxel.
func (w WorldFrame) VoxelSize() float64 { return w.vs }

// LengthUnit returns l, the finest representable length (used to quantize
// in-voxel offsets so round-trips are exact to within that granularity).
func (w WorldFrame) LengthUnit() float64 { return w.l }

func (w WorldFrame) axisCount(nv uint8) uint64 { return uint64(1) << nv }

// Position is the (voxelID, fractional offset) encoding of a real-unit
// point, per spec.md §3.
type Position struct {
	VoxelID VoxelID
	Ox, Oy, Oz float64
}

func (w WorldFrame) voxelIndices(id VoxelID) (ix, iy, iz uint32) {
	v := uint64(id)
	maskX := w.axisCount(w.nvX) - 1
	maskY := w.axisCount(w.nvY) - 1
	ix = uint32(v & maskX)
	v >>= w.nvX
	iy = uint32(v & maskY)
	v >>= w.nvY
	iz = uint32(v & (w.axisCount(w.nvZ) - 1))
	return
}

func (w WorldFrame) packVoxelID(ix, iy, iz uint32) VoxelID {
	v := uint64(ix) | (uint64(iy) << w.nvX) | (uint64(iz) << (w.nvX + w.nvY))
	return VoxelID(v)
}

func (w WorldFrame) clampIndex(i int64, nv uint8) uint32 {
	max := int64(w.axisCount(nv)) - 1
	if i < 0 {
		return 0
	}
	if i > max {
		return uint32(max)
	}
	return uint32(i)
}

// Encode converts a real-unit point into the voxel/offset representation,
// quantizing the fractional offset to LengthUnit() granularity so that
// Decode(Encode(p)) round-trips within l (spec.md §8, property 1) for
// points inside the world box [0, 2^nv·vs) on each axis. Coordinates
// outside the box are clamped to the boundary voxel and do not round-trip.
func (w WorldFrame) Encode(p mgl64.Vec3) Position {
	ixF := math.Floor(p.X() / w.vs)
	iyF := math.Floor(p.Y() / w.vs)
	izF := math.Floor(p.Z() / w.vs)

	ix := w.clampIndex(int64(ixF), w.nvX)
	iy := w.clampIndex(int64(iyF), w.nvY)
	iz := w.clampIndex(int64(izF), w.nvZ)

	ox := w.quantizeOffset(p.X() - float64(ix)*w.vs)
	oy := w.quantizeOffset(p.Y() - float64(iy)*w.vs)
	oz := w.quantizeOffset(p.Z() - float64(iz)*w.vs)

	return w.normalize(Position{VoxelID: w.packVoxelID(ix, iy, iz), Ox: ox, Oy: oy, Oz: oz})
}

func (w WorldFrame) quantizeOffset(o float64) float64 {
	if w.l <= 0 {
		return o
	}
	return math.Round(o/w.l) * w.l
}

// normalize re-derives (voxelID, offsets) so every offset lands in
// [0, vs), carrying any overflow into the voxel indices — the
// "any mutation of a real position re-normalizes offsets" invariant from
// spec.md §3.
func (w WorldFrame) normalize(p Position) Position {
	ix, iy, iz := w.voxelIndices(p.VoxelID)

	carry := func(idx uint32, nv uint8, off *float64) uint32 {
		n := int64(idx)
		for *off >= w.vs {
			*off -= w.vs
			n++
		}
		for *off < 0 {
			*off += w.vs
			n--
		}
		return w.clampIndex(n, nv)
	}

	ix = carry(ix, w.nvX, &p.Ox)
	iy = carry(iy, w.nvY, &p.Oy)
	iz = carry(iz, w.nvZ, &p.Oz)

	p.VoxelID = w.packVoxelID(ix, iy, iz)
	return p
}

// Decode converts the voxel/offset representation back into a real-unit
// point.
func (w WorldFrame) Decode(p Position) mgl64.Vec3 {
	ix, iy, iz := w.voxelIndices(p.VoxelID)
	return mgl64.Vec3{
		float64(ix)*w.vs + p.Ox,
		float64(iy)*w.vs + p.Oy,
		float64(iz)*w.vs + p.Oz,
	}
}
