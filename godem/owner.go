package godem

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// OwnerID is the dense integer identifier assigned in insertion order
// (spec.md §3, "assignment order defines ownerId").
type OwnerID uint32

// OwnerKind distinguishes the three owner flavors of spec.md §3.
type OwnerKind int

const (
	OwnerClump OwnerKind = iota
	OwnerAnalytical
	OwnerMesh
)

// OwnerState is the mutable per-owner kinematic state, mutable only by DI
// (spec.md §3).
type OwnerState struct {
	Pos    Position
	Ori    mgl64.Quat
	Vel    mgl64.Vec3
	AngVel mgl64.Vec3 // body-local frame
}

// MassIdx indexes into the owner store's mass/inertia table.
type MassIdx int

// Owner is a rigid body: clump, analytical object, or mesh (spec.md §3).
// Kept as a flat value (no internal mutex, no shared-pointer back-refs)
// per Design Notes §9 ("pointer-heavy template caches → flat stores");
// OwnerStore holds owners in a single growable slice indexed by OwnerID.
type Owner struct {
	ID      OwnerID
	Kind    OwnerKind
	Family  FamilyID
	MassIdx MassIdx
	State   OwnerState

	GeometryIDs []GeometryID
}

// MassProps is the mass/inertia record referenced by MassIdx.
type MassProps struct {
	Mass    float64
	InvMass float64
	Inertia *InertiaTensor
}

// NewMassProps builds a MassProps for a dynamic owner. A zero mass marks a
// static/fixed owner (invMass=0, invInertia=0), mirroring the teacher's
// RigidBody.isStatic convention (0x5844-physics2D: "isStatic: mass == 0").
func NewMassProps(mass float64, moi mgl64.Vec3) MassProps {
	invMass := 0.0
	if mass > 0 {
		invMass = 1.0 / mass
	}
	return MassProps{Mass: mass, InvMass: invMass, Inertia: NewDiagonalInertia(moi)}
}

// OwnerStore is the L0 append-only registry of rigid-body states. Writable
// only by DI during a running step; the controller (between Sync and
// Step) may append new owners or mutate state directly via the
// Get*/Set* accessors, which is safe because those calls only happen
// while the scheduler is in the synchronized/uninitialized stance
// (spec.md §4.1 contract).
type OwnerStore struct {
	frame WorldFrame

	mu        sync.RWMutex
	owners    []Owner
	massTable []MassProps

	impulseMu     sync.Mutex
	pendingForce  []mgl64.Vec3
	pendingTorque []mgl64.Vec3

	wildcardMu sync.RWMutex
	wildcards  map[string][]float64
}

func NewOwnerStore(frame WorldFrame) *OwnerStore {
	return &OwnerStore{frame: frame, wildcards: make(map[string][]float64)}
}

// AddMassProps registers a mass/inertia record and returns its index.
func (s *OwnerStore) AddMassProps(mp MassProps) MassIdx {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := MassIdx(len(s.massTable))
	s.massTable = append(s.massTable, mp)
	return idx
}

func (s *OwnerStore) MassProps(idx MassIdx) MassProps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.massTable[idx]
}

// Insert appends a new owner and returns its dense OwnerID.
func (s *OwnerStore) Insert(kind OwnerKind, massIdx MassIdx, family FamilyID, pos mgl64.Vec3, ori mgl64.Quat, vel, angVel mgl64.Vec3) OwnerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := OwnerID(len(s.owners))
	s.owners = append(s.owners, Owner{
		ID:      id,
		Kind:    kind,
		Family:  family,
		MassIdx: massIdx,
		State: OwnerState{
			Pos:    s.frame.Encode(pos),
			Ori:    ori,
			Vel:    vel,
			AngVel: angVel,
		},
	})

	s.impulseMu.Lock()
	s.pendingForce = append(s.pendingForce, mgl64.Vec3{})
	s.pendingTorque = append(s.pendingTorque, mgl64.Vec3{})
	s.impulseMu.Unlock()

	s.wildcardMu.Lock()
	for name, arr := range s.wildcards {
		s.wildcards[name] = append(arr, 0)
	}
	s.wildcardMu.Unlock()

	return id
}

// AttachGeometry records that a geometry belongs to an owner.
func (s *OwnerStore) AttachGeometry(id OwnerID, gid GeometryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[id].GeometryIDs = append(s.owners[id].GeometryIDs, gid)
}

// Count returns the number of owners inserted so far.
func (s *OwnerStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owners)
}

// Owner returns a copy of owner id's current committed record. Safe to
// call only while DI is in a sync state, per spec.md §4.1.
func (s *OwnerStore) Owner(id OwnerID) Owner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[id]
}

// GetPos returns the real-unit position of an owner.
func (s *OwnerStore) GetPos(id OwnerID) mgl64.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame.Decode(s.owners[id].State.Pos)
}

// SetPos overwrites an owner's position in real units.
func (s *OwnerStore) SetPos(id OwnerID, p mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[id].State.Pos = s.frame.Encode(p)
}

func (s *OwnerStore) GetOri(id OwnerID) mgl64.Quat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[id].State.Ori
}

func (s *OwnerStore) SetOri(id OwnerID, q mgl64.Quat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[id].State.Ori = q.Normalize()
}

func (s *OwnerStore) GetVel(id OwnerID) mgl64.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[id].State.Vel
}

func (s *OwnerStore) SetVel(id OwnerID, v mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[id].State.Vel = v
}

func (s *OwnerStore) GetAngVel(id OwnerID) mgl64.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[id].State.AngVel
}

func (s *OwnerStore) SetAngVel(id OwnerID, w mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[id].State.AngVel = w
}

// AddImpulse queues a force/torque contribution for DI to consume at the
// next force-collection phase (spec.md §4.1); it is not committed
// instantly. Safe to call concurrently with a running step, mirroring the
// teacher's RigidBody.ApplyForce/ApplyImpulse locking discipline.
func (s *OwnerStore) AddImpulse(id OwnerID, force, torque mgl64.Vec3) {
	s.impulseMu.Lock()
	defer s.impulseMu.Unlock()
	s.pendingForce[id] = s.pendingForce[id].Add(force)
	s.pendingTorque[id] = s.pendingTorque[id].Add(torque)
}

// drainImpulse is called by DI once per step per owner to collect and
// zero the queued impulse.
func (s *OwnerStore) drainImpulse(id OwnerID) (force, torque mgl64.Vec3) {
	s.impulseMu.Lock()
	defer s.impulseMu.Unlock()
	force, torque = s.pendingForce[id], s.pendingTorque[id]
	s.pendingForce[id] = mgl64.Vec3{}
	s.pendingTorque[id] = mgl64.Vec3{}
	return
}

// DeclareWildcard registers a named per-owner float wildcard array,
// defaulting every existing and future owner's value to 0 (spec.md §3).
func (s *OwnerStore) DeclareWildcard(name string) {
	s.wildcardMu.Lock()
	defer s.wildcardMu.Unlock()
	if _, ok := s.wildcards[name]; ok {
		return
	}
	s.mu.RLock()
	n := len(s.owners)
	s.mu.RUnlock()
	s.wildcards[name] = make([]float64, n)
}

func (s *OwnerStore) GetWildcard(name string, id OwnerID) float64 {
	s.wildcardMu.RLock()
	defer s.wildcardMu.RUnlock()
	arr, ok := s.wildcards[name]
	if !ok || int(id) >= len(arr) {
		return 0
	}
	return arr[id]
}

func (s *OwnerStore) SetWildcard(name string, id OwnerID, v float64) {
	s.wildcardMu.Lock()
	defer s.wildcardMu.Unlock()
	if arr, ok := s.wildcards[name]; ok && int(id) < len(arr) {
		arr[id] = v
	}
}

// snapshot makes a defensive copy of every owner's committed state, used
// by the DI→CD state channel (spec.md §4.4).
func (s *OwnerStore) snapshot() []OwnerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OwnerState, len(s.owners))
	for i, o := range s.owners {
		out[i] = o.State
	}
	return out
}

// commit writes back a full set of owner states computed by DI for this
// step, and applies the DI-only mutation boundary described in spec.md §5.
func (s *OwnerStore) commit(states []OwnerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range states {
		s.owners[i].State = states[i]
	}
}

func (s *OwnerStore) familyOf(id OwnerID) FamilyID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[id].Family
}

// PurgeFamily bulk-removes every owner belonging to family f. Only valid
// between sync points (spec.md §3, "Lifecycle"). It does not check the
// scheduler state itself, and no Controller method calls it.
func (s *OwnerStore) PurgeFamily(f FamilyID, geometry *GeometryStore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.owners[:0]
	keptForce := s.pendingForce[:0]
	keptTorque := s.pendingTorque[:0]
	remap := make(map[OwnerID]OwnerID, len(s.owners))

	s.impulseMu.Lock()
	for i, o := range s.owners {
		if o.Family == f {
			continue
		}
		newID := OwnerID(len(kept))
		remap[o.ID] = newID
		o.ID = newID
		kept = append(kept, o)
		keptForce = append(keptForce, s.pendingForce[i])
		keptTorque = append(keptTorque, s.pendingTorque[i])
	}
	s.owners = kept
	s.pendingForce = keptForce
	s.pendingTorque = keptTorque
	s.impulseMu.Unlock()

	s.wildcardMu.Lock()
	for name, arr := range s.wildcards {
		newArr := make([]float64, len(kept))
		for oldID, newID := range remap {
			if int(oldID) < len(arr) {
				newArr[newID] = arr[oldID]
			}
		}
		s.wildcards[name] = newArr
	}
	s.wildcardMu.Unlock()

	if geometry != nil {
		geometry.remapOwners(remap)
	}
}
