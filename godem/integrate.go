package godem

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Integrator runs one DI step: force accumulation over the current
// contact set, gravity and queued impulses, symplectic-Euler velocity
// update, quaternion exponential-map orientation update, prescribed-motion
// overrides, and commit (spec.md §4.3 "Dynamics integration").
// Generalizes the teacher's PhysicsWorld.Step (0x5844-physics2D): same
// accumulate-then-integrate-then-commit shape, extended from 2D
// linear-only to 3D linear+angular rigid body dynamics.
type Integrator struct {
	owners    *OwnerStore
	geometry  *GeometryStore
	materials *MaterialTable
	history   *ContactHistory
	backend   ComputeBackend
	anomalies *AnomalyLog

	gravity      mgl64.Vec3
	contactForce ContactForceFunc

	prescriptions map[FamilyID]PrescriptionFunc

	highSpeedThreshold float64
	t                  float64
}

func NewIntegrator(owners *OwnerStore, geometry *GeometryStore, materials *MaterialTable, history *ContactHistory, backend ComputeBackend, anomalies *AnomalyLog) *Integrator {
	return &Integrator{
		owners:             owners,
		geometry:           geometry,
		materials:          materials,
		history:            history,
		backend:            backend,
		anomalies:          anomalies,
		contactForce:       backend.BuildContactForce(ContactModelSpec{}),
		prescriptions:      make(map[FamilyID]PrescriptionFunc),
		highSpeedThreshold: math.Inf(1),
	}
}

// SetContactModel rebuilds the contact force function used by every
// subsequent Step (spec.md §6 UseFrictionalHertzianModel /
// UseFrictionlessHertzianModel / SetSolverHistoryless).
func (it *Integrator) SetContactModel(spec ContactModelSpec) {
	it.contactForce = it.backend.BuildContactForce(spec)
}

// SetGravity sets the uniform gravitational acceleration applied every step.
func (it *Integrator) SetGravity(g mgl64.Vec3) { it.gravity = g }

// SetHighSpeedThreshold configures the anomaly-detection ceiling for
// AnomalyHighSpeed (spec.md §7 "non-fatal anomaly: implausible speed").
func (it *Integrator) SetHighSpeedThreshold(v float64) { it.highSpeedThreshold = v }

// SetPrescription installs a prescribed-motion override for every owner
// in family f (spec.md §6 SetFamilyPrescribedMotion). A nil func clears it.
func (it *Integrator) SetPrescription(f FamilyID, fn PrescriptionFunc) {
	if fn == nil {
		delete(it.prescriptions, f)
		return
	}
	it.prescriptions[f] = fn
}

// Step advances DI by dt given the current published candidate pairs,
// returning the new committed owner states, the current simulated time,
// and a *NarrowPhaseNaNError if an owner's linear or angular velocity
// became NaN/Inf (spec.md §7). The contact-history sweep is not checked
// for corruption.
func (it *Integrator) Step(dt float64, pairs []ContactPair) ([]OwnerState, float64, error) {
	states := it.owners.snapshot()
	n := len(states)

	forces := make([]mgl64.Vec3, n)
	torques := make([]mgl64.Vec3, n)

	it.history.BeginStep()

	for _, pair := range pairs {
		res := ResolveContact(pair, states, it.geometry, it.owners.frame)
		if !res.Overlap {
			continue
		}

		ownerA := it.geometry.OwnerOf(pair.Key.A)
		ownerB := it.geometry.OwnerOf(pair.Key.B)

		matA := it.materialOf(pair.Key.A)
		matB := it.materialOf(pair.Key.B)
		pairProps := it.materials.Pair(matA, matB)

		contact := it.history.Touch(pair.Key, pair.Kind, res.Depth, [3]float64{res.Normal.X(), res.Normal.Y(), res.Normal.Z()})

		relVel := it.contactPointVelocity(states, ownerB, res.Point).Sub(it.contactPointVelocity(states, ownerA, res.Point))

		result := it.contactForce(ContactContext{
			Geometry:        res,
			RelVel:          relVel,
			Pair:            pairProps,
			EffectiveRadius: it.effectiveRadiusOf(pair),
			Wildcards:       contact.Wildcards,
			Dt:              dt,
		})

		rA := res.Point.Sub(it.owners.frame.Decode(states[ownerA].Pos))
		rB := res.Point.Sub(it.owners.frame.Decode(states[ownerB].Pos))

		// TestSphereSphere's normal points from Key.A's geometry toward
		// Key.B's geometry, so A is pushed along -normal and B along
		// +normal. TestSphereTriangle/TestSphereAnalytical's normal points
		// from the boundary toward the sphere, which broad-phase always
		// places at Key.A, so there A is pushed along +normal instead.
		forceOnA := result.Force.Mul(-1)
		forceOnB := result.Force
		if pair.Kind != PairSphereSphere {
			forceOnA, forceOnB = forceOnB, forceOnA
		}

		forces[ownerA] = forces[ownerA].Add(forceOnA)
		forces[ownerB] = forces[ownerB].Add(forceOnB)
		torques[ownerA] = torques[ownerA].Add(rA.Cross(forceOnA)).Add(result.Torque)
		torques[ownerB] = torques[ownerB].Add(rB.Cross(forceOnB)).Sub(result.Torque)
	}

	it.history.EndSweep()

	for id := 0; id < n; id++ {
		impF, impT := it.owners.drainImpulse(OwnerID(id))
		forces[id] = forces[id].Add(impF)
		torques[id] = torques[id].Add(impT)
	}

	for id := 0; id < n; id++ {
		mp := it.owners.MassProps(it.owners.owners[id].MassIdx)
		if mp.InvMass == 0 {
			continue
		}
		forces[id] = forces[id].Add(it.gravity.Mul(mp.Mass))
	}

	for id := 0; id < n; id++ {
		owner := it.owners.owners[id]
		mp := it.owners.MassProps(owner.MassIdx)
		st := &states[id]

		if owner.Family == ReservedFixedFamily || mp.InvMass == 0 {
			continue
		}

		linAccel := forces[id].Mul(mp.InvMass)
		st.Vel = st.Vel.Add(linAccel.Mul(dt))

		bodyTorque := st.Ori.Conjugate().Rotate(torques[id])
		angAccel := mp.Inertia.ApplyInv(bodyTorque.Sub(st.AngVel.Cross(mp.Inertia.Apply(st.AngVel))))
		st.AngVel = st.AngVel.Add(angAccel.Mul(dt))

		newPos := it.owners.frame.Decode(st.Pos).Add(st.Vel.Mul(dt))
		st.Pos = it.owners.frame.Encode(newPos)

		angMag := st.AngVel.Len()
		if angMag > 1e-12 {
			worldAxis := st.Ori.Rotate(st.AngVel.Mul(1.0 / angMag))
			dq := mgl64.QuatRotate(angMag*dt, worldAxis)
			st.Ori = dq.Mul(st.Ori).Normalize()
		}

		if !isFinite(st.Vel) || !isFinite(st.AngVel) {
			return nil, it.t, &NarrowPhaseNaNError{OwnerID: OwnerID(id), Field: "velocity"}
		}
		if !math.IsInf(it.highSpeedThreshold, 0) && st.Vel.Len() > it.highSpeedThreshold {
			it.anomalies.Post(Anomaly{Kind: AnomalyHighSpeed, OwnerID: OwnerID(id), Detail: "speed exceeds configured threshold", TAtDI: it.t})
		}

		if fn, ok := it.prescriptions[owner.Family]; ok {
			*st = fn(it.t+dt, *st)
		}
	}

	it.owners.commit(states)
	it.t += dt
	return states, it.t, nil
}

// contactPointVelocity computes the instantaneous world-frame velocity of
// the material point on owner currently located at worldPoint:
// v + ω × r (spec.md §4.3, relative velocity at the contact point).
func (it *Integrator) contactPointVelocity(states []OwnerState, owner OwnerID, worldPoint mgl64.Vec3) mgl64.Vec3 {
	st := states[owner]
	r := worldPoint.Sub(it.owners.frame.Decode(st.Pos))
	worldAngVel := st.Ori.Rotate(st.AngVel)
	return st.Vel.Add(worldAngVel.Cross(r))
}

// effectiveRadiusOf computes the Hertz reduced radius for a resolved
// contact: r1*r2/(r1+r2) for sphere-sphere, r_sphere for sphere-triangle
// and sphere-analytical (the other side is treated as locally flat, so
// 1/R_other -> 0).
func (it *Integrator) effectiveRadiusOf(pair ContactPair) float64 {
	if pair.Kind == PairSphereSphere {
		r1 := it.geometry.Sphere(pair.Key.A).Radius
		r2 := it.geometry.Sphere(pair.Key.B).Radius
		if r1+r2 == 0 {
			return 0
		}
		return r1 * r2 / (r1 + r2)
	}
	sphereID := pair.Key.A
	if it.geometry.Kind(sphereID) != GeometrySphere {
		sphereID = pair.Key.B
	}
	return it.geometry.Sphere(sphereID).Radius
}

func (it *Integrator) materialOf(gid GeometryID) MaterialHandle {
	switch it.geometry.Kind(gid) {
	case GeometrySphere:
		return it.geometry.Sphere(gid).Mat
	case GeometryTriangle:
		return it.geometry.Triangle(gid).Mat
	default:
		return it.geometry.Analytical(gid).Mat
	}
}
