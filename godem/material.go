package godem

import (
	"math"
	"sync"

	"github.com/google/uuid"
)

// MaterialProps holds the per-material properties named in spec.md §6
// (LoadMaterial inputs): Young's modulus E, Poisson's ratio ν, coefficient
// of restitution CoR, friction coefficient μ, and rolling-resistance
// coefficient Crr.
type MaterialProps struct {
	E, Nu, CoR, Mu, Crr float64
}

// MaterialHandle is the opaque handle LoadMaterial returns (spec.md §6).
// It carries a uuid for the out-of-scope API-level caching boundary
// (grounded in Gekko3D-gekko/mod_assets.go's use of google/uuid for asset
// handles) plus a dense index for O(1) lookup in the hot narrow-phase
// path — the handle itself is the only place a uuid is paid for.
type MaterialHandle struct {
	id    uuid.UUID
	index int
}

// PairProps are the combined properties of a material pair, computed once
// and cached (mirroring original_source's stash_material_in_templates
// per-pair caching referenced in SPEC_FULL.md §12).
type PairProps struct {
	EffectiveE   float64
	EffectiveCoR float64
	EffectiveMu  float64
	EffectiveCrr float64
}

// MaterialTable is the L0-adjacent material store. Writable only by the
// controller between Sync and Step (spec.md §5).
type MaterialTable struct {
	mu    sync.RWMutex
	props []MaterialProps
	ids   []uuid.UUID
	pairs map[[2]int]PairProps
}

func NewMaterialTable() *MaterialTable {
	return &MaterialTable{pairs: make(map[[2]int]PairProps)}
}

// Load registers a material and returns its opaque handle.
func (t *MaterialTable) Load(p MaterialProps) MaterialHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := len(t.props)
	t.props = append(t.props, p)
	id := uuid.New()
	t.ids = append(t.ids, id)
	return MaterialHandle{id: id, index: idx}
}

func (t *MaterialTable) Props(h MaterialHandle) MaterialProps {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.props[h.index]
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Pair returns the combined properties for a material pair, computing and
// caching them on first use. Combination rules are the standard Hertzian
// contact-mechanics conventions (harmonic mean of effective modulus,
// geometric mean of CoR/μ/Crr) — spec.md §1 leaves the exact formulae
// unspecified ("any standard spring-dashpot ... is conformant").
func (t *MaterialTable) Pair(ha, hb MaterialHandle) PairProps {
	key := pairKey(ha.index, hb.index)

	t.mu.RLock()
	if pp, ok := t.pairs[key]; ok {
		t.mu.RUnlock()
		return pp
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if pp, ok := t.pairs[key]; ok {
		return pp
	}
	a, b := t.props[ha.index], t.props[hb.index]
	pp := PairProps{
		EffectiveE:   harmonicMean(effectiveModulus(a), effectiveModulus(b)),
		EffectiveCoR: geometricMean(a.CoR, b.CoR),
		EffectiveMu:  geometricMean(a.Mu, b.Mu),
		EffectiveCrr: geometricMean(a.Crr, b.Crr),
	}
	t.pairs[key] = pp
	return pp
}

func effectiveModulus(m MaterialProps) float64 {
	if m.Nu >= 1 {
		return m.E
	}
	return m.E / (1 - m.Nu*m.Nu)
}

func harmonicMean(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

func geometricMean(a, b float64) float64 {
	if a < 0 || b < 0 {
		return 0
	}
	return math.Sqrt(a * b)
}
