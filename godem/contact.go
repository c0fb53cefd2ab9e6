package godem

import "sync"

// PairKind classifies a contact pair by the kinds of geometry involved,
// since the narrow-phase test and force model dispatch differs per
// combination (spec.md §4.3).
type PairKind int

const (
	PairSphereSphere PairKind = iota
	PairSphereTriangle
	PairSphereAnalytical
)

// ContactKey uniquely identifies a potential contact between two
// geometries, used both as the broad-phase dedup key and the
// contact-history lookup key (spec.md §4.2 "global dedup", §4.3 "history
// wildcards keyed by geometry pair"). For PairSphereSphere, A and B are
// sorted by NewContactKey so either insertion order dedups to the same
// key. For the asymmetric kinds (PairSphereTriangle, PairSphereAnalytical)
// the broad phase instead always places the sphere at A, since
// narrow-phase dispatch and force application need to know which side is
// which.
type ContactKey struct {
	A, B GeometryID
}

// NewContactKey builds a canonical (sorted) key for a sphere-sphere pair.
func NewContactKey(a, b GeometryID) ContactKey {
	if a > b {
		a, b = b, a
	}
	return ContactKey{A: a, B: b}
}

// ContactPair is a broad-phase candidate: two geometries whose expanded
// bounding volumes overlap, not yet narrow-phase tested (spec.md §4.2
// output, §4.4 "published to DI over the pair channel").
type ContactPair struct {
	Key  ContactKey
	Kind PairKind
}

// ContactWildcards are arbitrary named scalar values a force model
// attaches to a persistent contact and expects to survive from one step
// to the next — e.g. accumulated tangential spring displacement for
// Hertzian friction (spec.md §4.3, "persistent per-contact history").
type ContactWildcards map[string]float64

// Contact is a live, narrow-phase-confirmed contact with its persistent
// history, owned exclusively by DI (spec.md §4.3, §4.4: "contact history
// is DI-private state, never crossing the pair/state channels").
type Contact struct {
	Key       ContactKey
	Overlap   float64
	Normal    [3]float64 // unit normal in world frame, same convention as NarrowPhaseResult.Normal
	Wildcards ContactWildcards
	lastTouch uint64 // DI step counter of last narrow-phase confirmation
}

// ContactHistory is DI's persistent contact-history table, pruned by a
// mark-and-sweep pass once per DI step (spec.md §4.3, "stale contact
// garbage collection"): any contact not touched (re-confirmed) during the
// current step's narrow-phase pass is swept away at the end of that step.
type ContactHistory struct {
	mu      sync.Mutex
	entries map[ContactKey]*Contact
	step    uint64
}

func NewContactHistory() *ContactHistory {
	return &ContactHistory{entries: make(map[ContactKey]*Contact)}
}

// Touch marks a contact as confirmed for the current step, creating its
// history record on first contact and returning it for the force model to
// read/update accumulated wildcards.
func (h *ContactHistory) Touch(key ContactKey, kind PairKind, overlap float64, normal [3]float64) *Contact {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.entries[key]
	if !ok {
		c = &Contact{Key: key, Wildcards: make(ContactWildcards)}
		h.entries[key] = c
	}
	c.Overlap = overlap
	c.Normal = normal
	c.lastTouch = h.step
	return c
}

// Lookup returns the existing history record for a key, if any, without
// marking it touched.
func (h *ContactHistory) Lookup(key ContactKey) (*Contact, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.entries[key]
	return c, ok
}

// BeginStep advances the internal step counter ahead of a new narrow-phase
// pass; contacts not Touch()-ed again before EndSweep are stale.
func (h *ContactHistory) BeginStep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step++
}

// EndSweep removes every contact not touched during the current step,
// returning the count removed. This is the mark-and-sweep GC of spec.md
// §4.3.
func (h *ContactHistory) EndSweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for k, c := range h.entries {
		if c.lastTouch != h.step {
			delete(h.entries, k)
			removed++
		}
	}
	return removed
}

// Count returns the number of live contacts currently tracked.
func (h *ContactHistory) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
