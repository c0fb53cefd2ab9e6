package godem

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerStoreInsertAndAccessors(t *testing.T) {
	frame, err := NewWorldFrame(10, 10, 12, 1e-6)
	require.NoError(t, err)
	store := NewOwnerStore(frame)

	massIdx := store.AddMassProps(NewMassProps(1.0, mgl64.Vec3{1, 1, 1}))
	id := store.Insert(OwnerClump, massIdx, 0, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})

	assert.Equal(t, 1, store.Count())
	pos := store.GetPos(id)
	assert.InDelta(t, 1.0, pos.X(), 1e-5)
	assert.InDelta(t, 2.0, pos.Y(), 1e-5)
	assert.InDelta(t, 3.0, pos.Z(), 1e-5)

	store.SetVel(id, mgl64.Vec3{5, 0, 0})
	assert.Equal(t, mgl64.Vec3{5, 0, 0}, store.GetVel(id))
}

func TestOwnerStoreImpulseQueueDrainsToZero(t *testing.T) {
	frame, _ := NewWorldFrame(10, 10, 12, 1e-6)
	store := NewOwnerStore(frame)
	massIdx := store.AddMassProps(NewMassProps(1.0, mgl64.Vec3{1, 1, 1}))
	id := store.Insert(OwnerClump, massIdx, 0, mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})

	store.AddImpulse(id, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0})
	store.AddImpulse(id, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0})

	f, tq := store.drainImpulse(id)
	assert.Equal(t, mgl64.Vec3{2, 0, 0}, f)
	assert.Equal(t, mgl64.Vec3{0, 2, 0}, tq)

	f2, tq2 := store.drainImpulse(id)
	assert.Equal(t, mgl64.Vec3{}, f2)
	assert.Equal(t, mgl64.Vec3{}, tq2)
}

func TestOwnerStoreWildcardsDefaultToZeroForExistingAndNewOwners(t *testing.T) {
	frame, _ := NewWorldFrame(10, 10, 12, 1e-6)
	store := NewOwnerStore(frame)
	massIdx := store.AddMassProps(NewMassProps(1.0, mgl64.Vec3{1, 1, 1}))
	id1 := store.Insert(OwnerClump, massIdx, 0, mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})

	store.DeclareWildcard("foo")
	assert.Equal(t, 0.0, store.GetWildcard("foo", id1))

	id2 := store.Insert(OwnerClump, massIdx, 0, mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})
	assert.Equal(t, 0.0, store.GetWildcard("foo", id2))

	store.SetWildcard("foo", id2, 3.5)
	assert.Equal(t, 3.5, store.GetWildcard("foo", id2))
	assert.Equal(t, 0.0, store.GetWildcard("foo", id1))
}

func TestOwnerStorePurgeFamilyRemapsIDs(t *testing.T) {
	frame, _ := NewWorldFrame(10, 10, 12, 1e-6)
	store := NewOwnerStore(frame)
	geometry := NewGeometryStore()
	massIdx := store.AddMassProps(NewMassProps(1.0, mgl64.Vec3{1, 1, 1}))

	idA := store.Insert(OwnerClump, massIdx, 0, mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})
	idB := store.Insert(OwnerClump, massIdx, 1, mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})
	idC := store.Insert(OwnerClump, massIdx, 0, mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{}, mgl64.Vec3{})

	store.AttachGeometry(idA, geometry.AddSphere(idA, Sphere{Radius: 0.1}))
	store.AttachGeometry(idB, geometry.AddSphere(idB, Sphere{Radius: 0.1}))
	store.AttachGeometry(idC, geometry.AddSphere(idC, Sphere{Radius: 0.1}))

	store.PurgeFamily(0, geometry)

	require.Equal(t, 1, store.Count())
	remaining := store.Owner(0)
	assert.Equal(t, FamilyID(1), remaining.Family)
	assert.Len(t, geometry.ForOwner(0), 1)
}
