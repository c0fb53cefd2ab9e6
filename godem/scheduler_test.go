package godem

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

// buildSingleClumpController sets up a minimal controller with one
// falling clump above a floor, enough to drive the scheduler through
// several real CD/DI cycles.
func buildSingleClumpController(t *testing.T, u int) *Controller {
	t.Helper()
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  1e-4,
		DriftBudgetU:        u,
		Gravity:             mgl64.Vec3{0, 0, -9.81},
		ExpandFactor:        0.01,
		MaxExpectedVelocity: 10,
	})
	require.NoError(t, err)

	mat := ctrl.LoadMaterial(MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.5, Mu: 0.4, Crr: 0.01})
	floor := Analytical{Kind: AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Mat: mat}
	_, err = ctrl.AddExternalObject(floor, 1, mgl64.Vec3{}, mgl64.QuatIdent())
	require.NoError(t, err)

	tmpl := ctrl.LoadClumpTemplate([]ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: 0.01, Mat: mat}}, 0.001, mgl64.Vec3{1e-7, 1e-7, 1e-7})
	_, err = ctrl.AddClumps(tmpl, 0, []mgl64.Vec3{{0, 0, 0.05}}, []mgl64.Quat{mgl64.QuatIdent()})
	require.NoError(t, err)

	return ctrl
}

// TestSchedulerDrainsRequestedStepsLockstep checks that requesting a
// duration and syncing returns cleanly under strict lockstep (U=0).
func TestSchedulerDrainsRequestedStepsLockstep(t *testing.T) {
	ctrl := buildSingleClumpController(t, 0)
	defer ctrl.ShutDown()

	err := ctrl.Step(100 * 1e-4)
	require.NoError(t, err)

	err = ctrl.Sync()
	require.NoError(t, err)

	ins := ctrl.Inspector()
	require.Equal(t, 1, ins.ClumpCount())
}

// TestSchedulerDrainsRequestedStepsWithDrift exercises the same property
// with a nonzero drift budget, where DI may run ahead of CD by up to U steps.
func TestSchedulerDrainsRequestedStepsWithDrift(t *testing.T) {
	ctrl := buildSingleClumpController(t, 5)
	defer ctrl.ShutDown()

	err := ctrl.Step(200 * 1e-4)
	require.NoError(t, err)
	require.NoError(t, ctrl.Sync())
}

// TestSchedulerShutDownIsIdempotent checks ShutDown can be called more
// than once without blocking or panicking (sync.Once discipline).
func TestSchedulerShutDownIsIdempotent(t *testing.T) {
	ctrl := buildSingleClumpController(t, 1)
	require.NoError(t, ctrl.Step(5*1e-4))
	require.NoError(t, ctrl.Sync())

	done := make(chan struct{})
	go func() {
		ctrl.ShutDown()
		ctrl.ShutDown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ShutDown did not return, possible deadlock")
	}
}

func TestSchedulerStateStringer(t *testing.T) {
	require.Equal(t, "IDLE", StateIdle.String())
	require.Equal(t, "RUNNING", StateRunning.String())
	require.Equal(t, "WAITING_FOR_PEER", StateWaitingForPeer.String())
	require.Equal(t, "PUBLISHING", StatePublishing.String())
	require.Equal(t, "STOPPING", StateStopping.String())
}

// TestSchedulerElasticHeadOnCollisionConservesMomentum drives two
// identical spheres head-on with equal and opposite velocities through a
// frictionless, non-dissipative (CoR=1) contact and checks the two
// hallmarks of an elastic exchange: total momentum along the line of
// centers stays at zero throughout, and by the end of the run the pair
// has rebounded (moving apart rather than still approaching or
// interpenetrating).
func TestSchedulerElasticHeadOnCollisionConservesMomentum(t *testing.T) {
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  1e-5,
		DriftBudgetU:        0,
		Gravity:             mgl64.Vec3{0, 0, 0},
		ExpandFactor:        0.001,
		MaxExpectedVelocity: 1,
	})
	require.NoError(t, err)
	defer ctrl.ShutDown()

	ctrl.UseFrictionlessHertzianModel()

	mat := ctrl.LoadMaterial(MaterialProps{E: 5e3, Nu: 0.3, CoR: 1.0, Mu: 0})
	radius := 0.05
	tmpl := ctrl.LoadClumpTemplate([]ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: radius, Mat: mat}}, 0, mgl64.Vec3{})

	center := mgl64.Vec3{1, 1, 1}
	posA := center.Sub(mgl64.Vec3{radius, 0, 0})
	posB := center.Add(mgl64.Vec3{radius, 0, 0})

	trackers, err := ctrl.AddClumps(tmpl, 0, []mgl64.Vec3{posA, posB}, []mgl64.Quat{mgl64.QuatIdent(), mgl64.QuatIdent()})
	require.NoError(t, err)
	trackers[0].SetVel(mgl64.Vec3{0.05, 0, 0})
	trackers[1].SetVel(mgl64.Vec3{-0.05, 0, 0})

	require.NoError(t, ctrl.Step(0.05))
	require.NoError(t, ctrl.Sync())

	vA := trackers[0].Vel()
	vB := trackers[1].Vel()

	require.InDelta(t, 0.0, vA.X()+vB.X(), 1e-4, "equal-mass head-on collision must conserve momentum")
	require.Less(t, vA.X(), 0.0, "sphere A should have rebounded away from B")
	require.Greater(t, vB.X(), 0.0, "sphere B should have rebounded away from A")

	sep := trackers[1].Pos().Sub(trackers[0].Pos()).Len()
	require.Greater(t, sep, 2*radius, "spheres should have separated past contact after rebounding")
}

// TestSchedulerSphereSettlesOnFloor drops a damped sphere onto an
// analytical floor and checks it comes to rest supported by the contact
// force rather than sinking through or bouncing indefinitely.
func TestSchedulerSphereSettlesOnFloor(t *testing.T) {
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  5e-5,
		DriftBudgetU:        0,
		Gravity:             mgl64.Vec3{0, 0, -9.81},
		ExpandFactor:        0.001,
		MaxExpectedVelocity: 1,
	})
	require.NoError(t, err)
	defer ctrl.ShutDown()

	mat := ctrl.LoadMaterial(MaterialProps{E: 1e3, Nu: 0.3, CoR: 0.3, Mu: 0.4, Crr: 0.01})

	center := mgl64.Vec3{1, 1, 0}
	floor := Analytical{Kind: AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Mat: mat}
	_, err = ctrl.AddExternalObject(floor, 1, center, mgl64.QuatIdent())
	require.NoError(t, err)

	radius := 0.02
	tmpl := ctrl.LoadClumpTemplate([]ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: radius, Mat: mat}}, 0, mgl64.Vec3{})
	_, err = ctrl.AddClumps(tmpl, 0, []mgl64.Vec3{center.Add(mgl64.Vec3{0, 0, radius + 0.01})}, []mgl64.Quat{mgl64.QuatIdent()})
	require.NoError(t, err)

	require.NoError(t, ctrl.Step(0.3))
	require.NoError(t, ctrl.Sync())

	ins := ctrl.Inspector()
	require.InDelta(t, radius, ins.ClumpMinZ(), 0.003, "sphere should settle resting on the floor, not sink through or hover")
	require.Less(t, ins.ClumpMaxAbsVelocity(), 0.01, "sphere should have damped down to rest")
}

// TestSchedulerPrescribedSpinMatchesCommandedAngularVelocity checks that
// a family under SetFamilyPrescribedMotion holds exactly the commanded
// angular velocity every step, and that its orientation has advanced by
// the corresponding rotation after a full second of simulated time.
func TestSchedulerPrescribedSpinMatchesCommandedAngularVelocity(t *testing.T) {
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  1e-4,
		DriftBudgetU:        0,
		Gravity:             mgl64.Vec3{0, 0, 0},
		ExpandFactor:        0.001,
		MaxExpectedVelocity: 1,
	})
	require.NoError(t, err)
	defer ctrl.ShutDown()

	mat := ctrl.LoadMaterial(MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.5, Mu: 0.4})
	tmpl := ctrl.LoadClumpTemplate([]ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: 0.02, Mat: mat}}, 0, mgl64.Vec3{})
	trackers, err := ctrl.AddClumps(tmpl, 7, []mgl64.Vec3{{1, 1, 1}}, []mgl64.Quat{mgl64.QuatIdent()})
	require.NoError(t, err)

	angVel := mgl64.Vec3{0, 0, math.Pi}
	require.NoError(t, ctrl.SetFamilyPrescribedMotion(7, PrescriptionSpec{AngVel: &angVel}))

	require.NoError(t, ctrl.Step(1.0))
	require.NoError(t, ctrl.Sync())

	require.Equal(t, angVel, trackers[0].AngVel(), "prescribed motion must hold the commanded angular velocity exactly")

	expected := mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 0, 1})
	got := trackers[0].Quat()
	dot := expected.Dot(got)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	angleDiff := 2 * math.Acos(math.Abs(dot))
	require.Less(t, angleDiff, 0.01, "orientation should have advanced by roughly angVel*duration")
}

// TestSchedulerDisabledFamiliesDoNotInteract places two heavily
// overlapping clumps in different families with contact disabled between
// them, and checks neither gains any velocity: a live contact would
// produce a large, immediately visible repulsive kick from the overlap.
func TestSchedulerDisabledFamiliesDoNotInteract(t *testing.T) {
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  1e-4,
		DriftBudgetU:        0,
		Gravity:             mgl64.Vec3{0, 0, 0},
		ExpandFactor:        0.001,
		MaxExpectedVelocity: 1,
	})
	require.NoError(t, err)
	defer ctrl.ShutDown()

	mat := ctrl.LoadMaterial(MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.5, Mu: 0.4})
	tmpl := ctrl.LoadClumpTemplate([]ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: 0.05, Mat: mat}}, 0, mgl64.Vec3{})

	center := mgl64.Vec3{1, 1, 1}
	trackersA, err := ctrl.AddClumps(tmpl, 1, []mgl64.Vec3{center}, []mgl64.Quat{mgl64.QuatIdent()})
	require.NoError(t, err)
	trackersB, err := ctrl.AddClumps(tmpl, 2, []mgl64.Vec3{center}, []mgl64.Quat{mgl64.QuatIdent()})
	require.NoError(t, err)

	require.NoError(t, ctrl.DisableContactBetweenFamilies(1, 2))

	require.NoError(t, ctrl.Step(0.1))
	require.NoError(t, ctrl.Sync())

	require.Equal(t, mgl64.Vec3{}, trackersA[0].Vel(), "family mask should have suppressed the overlap contact entirely")
	require.Equal(t, mgl64.Vec3{}, trackersB[0].Vel())
	require.Equal(t, center, trackersA[0].Pos())
	require.Equal(t, center, trackersB[0].Pos())
}

// TestSchedulerLockstepPublishesFreshPairsBeforeEveryStep checks the
// drift-bound relationship at U=0: contact detection must publish a
// fresh candidate set before every single DI step, never letting DI run
// on a stale pair set for more than zero steps.
func TestSchedulerLockstepPublishesFreshPairsBeforeEveryStep(t *testing.T) {
	ctrl := buildSingleClumpController(t, 0)
	defer ctrl.ShutDown()

	const n = 50
	require.NoError(t, ctrl.Step(n*1e-4))
	require.NoError(t, ctrl.Sync())

	pubs := ctrl.scheduler.CDPublications()
	require.GreaterOrEqual(t, pubs, int64(n-1))
	require.LessOrEqual(t, pubs, int64(n))
}
