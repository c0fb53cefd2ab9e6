package main

import (
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dem-sim/godem/godem"
	demio "github.com/dem-sim/godem/io"
)

// buildScene configures and initializes the controller for one of the
// built-in demo scenes, then populates it with owners. Mirrors the
// teacher's generateScene/LoadScene split (0x5844-physics2D), minus the
// JSON-scene-file path, which is out of scope for this demo harness.
func buildScene(ctrl *godem.Controller, cfg cliConfig) error {
	scene, ok := scenes[cfg.Scene]
	if !ok {
		return fmt.Errorf("unknown scene %q (available: rain, box, mixer)", cfg.Scene)
	}
	return scene(ctrl, cfg)
}

var scenes = map[string]func(*godem.Controller, cliConfig) error{
	"rain":  buildRainScene,
	"box":   buildBoxScene,
	"mixer": buildMixerScene,
}

func commonConfig(cfg cliConfig) godem.Config {
	return godem.Config{
		NvX: 10, NvY: 10, NvZ: 12,
		LengthUnit:          1e-7,
		BinSize:             cfg.BinSize,
		Dt:                  cfg.Dt,
		DriftBudgetU:        cfg.DriftU,
		Gravity:             mgl64.Vec3{0, 0, cfg.Gravity},
		ExpandFactor:        cfg.Beta,
		MaxExpectedVelocity: cfg.VMax,
	}
}

// buildRainScene drops a grid of single-sphere clumps above a floor.
func buildRainScene(ctrl *godem.Controller, cfg cliConfig) error {
	if err := ctrl.Initialize(commonConfig(cfg)); err != nil {
		return err
	}
	mat := ctrl.LoadMaterial(godem.MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.6, Mu: 0.4, Crr: 0.01})

	floor := godem.Analytical{Kind: godem.AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Mat: mat}
	if _, err := ctrl.AddExternalObject(floor, 1, mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()); err != nil {
		return err
	}

	radius := 0.01
	tmpl := ctrl.LoadClumpTemplate([]godem.ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: radius, Mat: mat}}, 0, mgl64.Vec3{})

	const gridN = 8
	var positions []mgl64.Vec3
	var orientations []mgl64.Quat
	for i := 0; i < gridN; i++ {
		for j := 0; j < gridN; j++ {
			positions = append(positions, mgl64.Vec3{
				float64(i) * radius * 3,
				float64(j) * radius * 3,
				0.5 + radius*2,
			})
			orientations = append(orientations, mgl64.QuatIdent())
		}
	}
	_, err := ctrl.AddClumps(tmpl, 0, positions, orientations)
	return err
}

// buildBoxScene settles a single stack of clumps inside four walls.
//
// Every owner's absolute position is voxel-encoded against a world frame
// whose domain is [0, 2^nvX*vs) x [0, 2^nvY*vs) x [0, 2^nvZ*vs) (spec.md §4.1,
// the original's InstructBoxDomainNumVoxel convention) — it has no notion
// of negative coordinates. center shifts the whole scene, walls and
// clumps alike, into that domain; the walls' and clumps' positions
// relative to each other are exactly what they'd be in a signed
// coordinate system centered on the origin.
func buildBoxScene(ctrl *godem.Controller, cfg cliConfig) error {
	if err := ctrl.Initialize(commonConfig(cfg)); err != nil {
		return err
	}
	mat := ctrl.LoadMaterial(godem.MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.3, Mu: 0.5, Crr: 0.02})

	center := mgl64.Vec3{0.5, 0.5, 0}

	floor := godem.Analytical{Kind: godem.AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Mat: mat}
	if _, err := ctrl.AddExternalObject(floor, 1, center, mgl64.QuatIdent()); err != nil {
		return err
	}

	walls := []mgl64.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}}
	for i, n := range walls {
		wall := godem.Analytical{Kind: godem.AnalyticalPlane, Point: n.Mul(0.3), Normal: n.Mul(-1), Mat: mat}
		if _, err := ctrl.AddExternalObject(wall, uint32(2+i), center, mgl64.QuatIdent()); err != nil {
			return err
		}
	}

	radius := 0.015
	tmpl := ctrl.LoadClumpTemplate([]godem.ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: radius, Mat: mat}}, 0, mgl64.Vec3{})

	var positions []mgl64.Vec3
	var orientations []mgl64.Quat
	for layer := 0; layer < 4; layer++ {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				positions = append(positions, center.Add(mgl64.Vec3{
					-0.2 + float64(i)*radius*2.5,
					-0.2 + float64(j)*radius*2.5,
					0.05 + float64(layer)*radius*2.5,
				}))
				orientations = append(orientations, mgl64.QuatIdent())
			}
		}
	}
	_, err := ctrl.AddClumps(tmpl, 0, positions, orientations)
	return err
}

// buildMixerScene drops clumps into a rotating-blade mixer modeled as a
// mesh owner with a prescribed angular velocity, exercising the
// SetFamilyPrescribedMotion path (spec.md §6).
func buildMixerScene(ctrl *godem.Controller, cfg cliConfig) error {
	if err := ctrl.Initialize(commonConfig(cfg)); err != nil {
		return err
	}
	mat := ctrl.LoadMaterial(godem.MaterialProps{E: 1e7, Nu: 0.3, CoR: 0.4, Mu: 0.6, Crr: 0.02})

	center := mgl64.Vec3{0.5, 0.5, 0}

	floor := godem.Analytical{Kind: godem.AnalyticalPlane, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Mat: mat}
	if _, err := ctrl.AddExternalObject(floor, 1, center, mgl64.QuatIdent()); err != nil {
		return err
	}

	drum := godem.Analytical{Kind: godem.AnalyticalCylinderInner, Point: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Radius: 0.3, Mat: mat}
	if _, err := ctrl.AddExternalObject(drum, 1, center, mgl64.QuatIdent()); err != nil {
		return err
	}

	bladeLen := 0.25
	blade := []godem.Triangle{
		{V0: mgl64.Vec3{-bladeLen, -0.01, 0}, V1: mgl64.Vec3{bladeLen, -0.01, 0}, V2: mgl64.Vec3{bladeLen, 0.01, 0.05}, Mat: mat},
		{V0: mgl64.Vec3{-bladeLen, -0.01, 0}, V1: mgl64.Vec3{bladeLen, 0.01, 0.05}, V2: mgl64.Vec3{-bladeLen, 0.01, 0.05}, Mat: mat},
	}
	const bladeFamily = 2
	if _, err := ctrl.AddMesh(blade, 1.0, mgl64.Vec3{0.01, 0.01, 0.01}, bladeFamily, center.Add(mgl64.Vec3{0, 0, 0.1}), mgl64.QuatIdent()); err != nil {
		return err
	}
	angVel := mgl64.Vec3{0, 0, 2 * math.Pi}
	if err := ctrl.SetFamilyPrescribedMotion(bladeFamily, godem.PrescriptionSpec{AngVel: &angVel}); err != nil {
		return err
	}

	radius := 0.01
	tmpl := ctrl.LoadClumpTemplate([]godem.ClumpComponent{{RelPos: mgl64.Vec3{}, Radius: radius, Mat: mat}}, 0, mgl64.Vec3{})

	var positions []mgl64.Vec3
	var orientations []mgl64.Quat
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			positions = append(positions, center.Add(mgl64.Vec3{
				-0.1 + float64(i)*radius*2,
				-0.1 + float64(j)*radius*2,
				0.2,
			}))
			orientations = append(orientations, mgl64.QuatIdent())
		}
	}
	_, err := ctrl.AddClumps(tmpl, 0, positions, orientations)
	return err
}

// writeFinalSpheres snapshots every clump's single representative sphere
// (the demo scenes only use single-sphere clumps) and writes it out via
// the io package's CSV writer.
func writeFinalSpheres(ctrl *godem.Controller, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	spheres := ctrl.ClumpSpheres()
	records := make([]demio.SphereRecord, 0, len(spheres))
	for _, s := range spheres {
		records = append(records, demio.SphereRecord{
			OwnerID: uint32(s.OwnerID),
			X:       s.Pos.X(),
			Y:       s.Pos.Y(),
			Z:       s.Pos.Z(),
			Radius:  s.Radius,
			Family:  uint8(s.Family),
		})
	}
	return demio.WriteSphereFile(f, records)
}
