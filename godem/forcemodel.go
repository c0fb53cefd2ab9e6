package godem

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ContactForceFunc computes the force and torque contributions of a single
// resolved contact; see ContactForceResult for which owner gets which. Force
// models are consumed as opaque callables (spec.md §1 Non-goals:
// "symbolic force-model expressions are out of scope; a force model is
// any function conforming to this signature").
type ContactForceFunc func(ctx ContactContext) ContactForceResult

// PrescriptionFunc computes a prescribed-motion override for an owner at
// time t, also an opaque callable per the same Non-goal.
type PrescriptionFunc func(t float64, current OwnerState) OwnerState

// ContactContext is everything a force model needs to evaluate one
// resolved contact (spec.md §4.3): the exact overlap geometry, relative
// kinematics at the contact point, combined material properties, and the
// contact's persistent wildcard history.
type ContactContext struct {
	Geometry NarrowPhaseResult
	RelVel   mgl64.Vec3 // velocity of B relative to A at the contact point
	Pair     PairProps
	// EffectiveRadius is the Hertz reduced radius of the contact: r1*r2/(r1+r2)
	// for sphere-sphere, r_sphere for sphere-triangle/sphere-analytical
	// (the other side is locally flat, 1/R -> 0).
	EffectiveRadius float64
	Wildcards       ContactWildcards
	Dt              float64
}

// ContactForceResult is a force model's output, with any wildcard
// mutations already written into the Wildcards map supplied in the
// context. The integrator applies Force to the owner the contact normal
// points toward (Key.B for sphere-sphere, the sphere at Key.A otherwise)
// and its negation to the other owner; Torque is added to A and
// subtracted from B.
type ContactForceResult struct {
	Force  mgl64.Vec3
	Torque mgl64.Vec3
}

// ContactModelSpec parametrizes which built-in contact force model to
// build (spec.md §6 UseFrictionalHertzianModel/UseFrictionlessHertzianModel,
// SetSolverHistoryless).
type ContactModelSpec struct {
	Frictionless bool
	Historyless  bool
}

// PrescriptionSpec parametrizes a prescribed-motion override
// (spec.md §6 SetFamilyPrescribedMotion).
type PrescriptionSpec struct {
	Vel    *mgl64.Vec3
	AngVel *mgl64.Vec3
}

// ComputeBackend builds the opaque force/prescription callables the
// integrator consumes. This is the GPU-"jitified"-kernel-codegen trait of
// the original system, replaced per Design Notes §9 with a plain Go
// interface producing closures instead of compiling expression strings —
// the CPU backend below is the only implementation shipped, but the
// interface lets an alternative backend (e.g. a batched/vectorized one)
// be substituted without touching the integrator.
type ComputeBackend interface {
	BuildContactForce(spec ContactModelSpec) ContactForceFunc
	BuildPrescription(spec PrescriptionSpec) PrescriptionFunc
}

// CPUBackend is the default, single-process ComputeBackend: Hertzian
// spring-dashpot normal force plus Coulomb-capped tangential friction
// with per-contact history (spec.md §4.3, "any standard Hertzian
// spring-dashpot model with Coulomb friction is conformant").
type CPUBackend struct{}

func NewCPUBackend() *CPUBackend { return &CPUBackend{} }

func (b *CPUBackend) BuildContactForce(spec ContactModelSpec) ContactForceFunc {
	if spec.Historyless {
		return historylessHertzian(spec.Frictionless)
	}
	return historyHertzian(spec.Frictionless)
}

func (b *CPUBackend) BuildPrescription(spec PrescriptionSpec) PrescriptionFunc {
	return func(t float64, current OwnerState) OwnerState {
		out := current
		if spec.Vel != nil {
			out.Vel = *spec.Vel
		}
		if spec.AngVel != nil {
			out.AngVel = *spec.AngVel
		}
		return out
	}
}

// hertzianNormal computes the Hertzian spring-dashpot normal force
// magnitude from penetration depth and closing speed, following the
// standard critical-damping-ratio parametrization by coefficient of
// restitution (spec.md §1, "any standard spring-dashpot model ...
// conformant").
func hertzianNormal(pair PairProps, effectiveRadius, depth, closingSpeed float64) float64 {
	if depth <= 0 {
		return 0
	}
	kn := (4.0 / 3.0) * pair.EffectiveE * math.Sqrt(effectiveRadius)
	stiffTerm := kn * math.Pow(depth, 1.5)

	lnE := 0.0
	if pair.EffectiveCoR > 1e-6 && pair.EffectiveCoR < 1 {
		lnE = math.Log(pair.EffectiveCoR)
	}
	var dampingRatio float64
	if lnE != 0 {
		dampingRatio = -lnE / math.Sqrt(math.Pi*math.Pi+lnE*lnE)
	}
	cn := 2 * dampingRatio * math.Sqrt(kn*math.Sqrt(depth))
	dampTerm := cn * closingSpeed

	f := stiffTerm - dampTerm
	if f < 0 {
		return 0
	}
	return f
}

func historylessHertzian(frictionless bool) ContactForceFunc {
	return func(ctx ContactContext) ContactForceResult {
		normal := mgl64.Vec3{ctx.Geometry.Normal.X(), ctx.Geometry.Normal.Y(), ctx.Geometry.Normal.Z()}
		closingSpeed := -ctx.RelVel.Dot(normal)
		fn := hertzianNormal(ctx.Pair, ctx.EffectiveRadius, ctx.Geometry.Depth, closingSpeed)
		force := normal.Mul(fn)

		if frictionless {
			return ContactForceResult{Force: force}
		}

		tangentVel := ctx.RelVel.Sub(normal.Mul(ctx.RelVel.Dot(normal)))
		tSpeed := tangentVel.Len()
		if tSpeed < 1e-12 {
			return ContactForceResult{Force: force}
		}
		tangentDir := tangentVel.Mul(-1.0 / tSpeed)
		ft := math.Min(ctx.Pair.EffectiveMu*fn, fn)
		force = force.Add(tangentDir.Mul(ft))
		return ContactForceResult{Force: force}
	}
}

// historyHertzian implements the same normal model plus an incremental
// tangential spring tracked via a per-contact wildcard
// ("tangentDisp{X,Y,Z}"), Coulomb-capped each step (spec.md §4.3,
// "persistent per-contact history... tangential spring displacement").
func historyHertzian(frictionless bool) ContactForceFunc {
	return func(ctx ContactContext) ContactForceResult {
		normal := mgl64.Vec3{ctx.Geometry.Normal.X(), ctx.Geometry.Normal.Y(), ctx.Geometry.Normal.Z()}
		closingSpeed := -ctx.RelVel.Dot(normal)
		fn := hertzianNormal(ctx.Pair, ctx.EffectiveRadius, ctx.Geometry.Depth, closingSpeed)
		force := normal.Mul(fn)

		if frictionless {
			return ContactForceResult{Force: force}
		}

		tangentVel := ctx.RelVel.Sub(normal.Mul(ctx.RelVel.Dot(normal)))

		disp := mgl64.Vec3{
			ctx.Wildcards["tangentDispX"],
			ctx.Wildcards["tangentDispY"],
			ctx.Wildcards["tangentDispZ"],
		}
		disp = disp.Add(tangentVel.Mul(ctx.Dt))
		// project accumulated displacement back onto the current tangent
		// plane so a rotating contact doesn't accumulate a spurious
		// normal-direction component.
		disp = disp.Sub(normal.Mul(disp.Dot(normal)))

		kt := springStiffnessFromNormal(fn, ctx.Geometry.Depth)
		ft := disp.Mul(-kt)
		cap := ctx.Pair.EffectiveMu * fn
		if ft.Len() > cap && ft.Len() > 0 {
			ft = ft.Mul(cap / ft.Len())
			disp = ft.Mul(-1.0 / kt)
		}

		ctx.Wildcards["tangentDispX"] = disp.X()
		ctx.Wildcards["tangentDispY"] = disp.Y()
		ctx.Wildcards["tangentDispZ"] = disp.Z()

		return ContactForceResult{Force: force.Add(ft)}
	}
}

// springStiffnessFromNormal derives a tangential spring constant
// proportional to the instantaneous normal stiffness, the common
// DEM convention (kt ~ 2/7 kn for a Hertz-Mindlin contact) absent a more
// specific model from spec.md.
func springStiffnessFromNormal(fn, depth float64) float64 {
	if depth <= 0 {
		return 0
	}
	kn := fn / depth
	return (2.0 / 7.0) * kn
}
