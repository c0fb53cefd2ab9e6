package godem

import "github.com/go-gl/mathgl/mgl64"

// Tracker is a lightweight handle bound to a single owner, letting
// calling code read and write that owner's state across many steps
// without re-resolving which row in OwnerStore it maps to (spec.md §9
// Design Notes, "a tracker is a (kind, index) handle wrapper"). Grounded
// in the teacher's RigidBody pointer-as-handle idiom, adapted to the
// flat-slice OwnerStore by keeping an OwnerID instead of a pointer.
type Tracker struct {
	owners *OwnerStore
	id     OwnerID
}

// NewTracker binds a Tracker to a specific owner.
func NewTracker(owners *OwnerStore, id OwnerID) *Tracker {
	return &Tracker{owners: owners, id: id}
}

func (t *Tracker) OwnerID() OwnerID { return t.id }

func (t *Tracker) Pos() mgl64.Vec3  { return t.owners.GetPos(t.id) }
func (t *Tracker) Quat() mgl64.Quat { return t.owners.GetOri(t.id) }
func (t *Tracker) Vel() mgl64.Vec3  { return t.owners.GetVel(t.id) }
func (t *Tracker) AngVel() mgl64.Vec3 { return t.owners.GetAngVel(t.id) }

func (t *Tracker) SetPos(p mgl64.Vec3)     { t.owners.SetPos(t.id, p) }
func (t *Tracker) SetQuat(q mgl64.Quat)    { t.owners.SetOri(t.id, q) }
func (t *Tracker) SetVel(v mgl64.Vec3)     { t.owners.SetVel(t.id, v) }
func (t *Tracker) SetAngVel(w mgl64.Vec3)  { t.owners.SetAngVel(t.id, w) }

func (t *Tracker) AddImpulse(force, torque mgl64.Vec3) {
	t.owners.AddImpulse(t.id, force, torque)
}

func (t *Tracker) Wildcard(name string) float64 {
	return t.owners.GetWildcard(name, t.id)
}

func (t *Tracker) SetWildcard(name string, v float64) {
	t.owners.SetWildcard(name, t.id, v)
}
