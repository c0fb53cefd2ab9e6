package godem

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeRejectsInsufficientSafetyMargin(t *testing.T) {
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  1e-3,
		DriftBudgetU:        10,
		ExpandFactor:        0.0001, // far too small for U*dt*v_max below
		MaxExpectedVelocity: 5,
	})
	var cfgErr *ConfigError
	require.Error(t, err)
	require.ErrorAs(t, err, &cfgErr)
}

func TestInitializeAcceptsSufficientSafetyMargin(t *testing.T) {
	ctrl := NewController()
	err := ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             0.05,
		Dt:                  1e-3,
		DriftBudgetU:        10,
		ExpandFactor:        1.0,
		MaxExpectedVelocity: 5,
	})
	require.NoError(t, err)
	ctrl.ShutDown()
}

func TestDisableContactBetweenFamiliesAffectsMask(t *testing.T) {
	ctrl := NewController()
	require.NoError(t, ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit: 1e-7, BinSize: 0.05, Dt: 1e-3, DriftBudgetU: 5,
		ExpandFactor: 1.0, MaxExpectedVelocity: 5,
	}))
	defer ctrl.ShutDown()

	require.NoError(t, ctrl.DisableContactBetweenFamilies(1, 2))

	fam1, err := ctrl.families.Compact(1)
	require.NoError(t, err)
	fam2, err := ctrl.families.Compact(2)
	require.NoError(t, err)
	assert.False(t, ctrl.FamilyMask().Allowed(fam1, fam2))
}

func TestChangeFamilyNowReassignsOwners(t *testing.T) {
	ctrl := NewController()
	require.NoError(t, ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit: 1e-7, BinSize: 0.05, Dt: 1e-3, DriftBudgetU: 0,
		ExpandFactor: 1.0, MaxExpectedVelocity: 5,
	}))
	defer ctrl.ShutDown()

	mat := ctrl.LoadMaterial(MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.5, Mu: 0.4, Crr: 0.01})
	tmpl := ctrl.LoadClumpTemplate([]ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: 0.01, Mat: mat}}, 0.001, mgl64.Vec3{1e-7, 1e-7, 1e-7})
	trackers, err := ctrl.AddClumps(tmpl, 3, []mgl64.Vec3{{0, 0, 1}}, []mgl64.Quat{mgl64.QuatIdent()})
	require.NoError(t, err)
	require.Len(t, trackers, 1)

	require.NoError(t, ctrl.Sync())
	require.NoError(t, ctrl.ChangeFamilyNow(3, 4))

	fam4, err := ctrl.families.Compact(4)
	require.NoError(t, err)
	owner := ctrl.owners.Owner(trackers[0].OwnerID())
	assert.Equal(t, fam4, owner.Family)
}

func TestSetSolverHistorylessAndModelSwitches(t *testing.T) {
	ctrl := NewController()
	require.NoError(t, ctrl.Initialize(Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit: 1e-7, BinSize: 0.05, Dt: 1e-3, DriftBudgetU: 0,
		ExpandFactor: 1.0, MaxExpectedVelocity: 5,
	}))
	defer ctrl.ShutDown()

	ctrl.UseFrictionlessHertzianModel()
	assert.True(t, ctrl.modelSpec.Frictionless)
	ctrl.UseFrictionalHertzianModel()
	assert.False(t, ctrl.modelSpec.Frictionless)
	ctrl.SetSolverHistoryless(true)
	assert.True(t, ctrl.modelSpec.Historyless)
}
