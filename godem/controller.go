package godem

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Config collects the Initialize-time parameters of spec.md §6: world
// frame dimensions, timestep, drift budget, and the safety margin
// relationship the controller validates before starting the scheduler.
type Config struct {
	NvX, NvY, NvZ uint8
	LengthUnit    float64

	BinSize      float64
	Dt           float64
	DriftBudgetU int

	Gravity mgl64.Vec3

	// ExpandFactor is the safety margin β folded into every broad-phase
	// query radius (spec.md §4.2, §9 Open Question 3).
	ExpandFactor float64

	// MaxExpectedVelocity bounds the β >= U*dt*v_max relationship
	// Initialize enforces as a hard ConfigError (SPEC_FULL.md §9 OQ3).
	MaxExpectedVelocity float64
}

// Controller is the external-facing API surface of spec.md §6, the
// equivalent of the original system's top-level simulation object.
// Generalizes the teacher's PhysicsWorld facade (0x5844-physics2D):
// same "one object owns every store and exposes setup + step + query
// methods" shape, expanded to the owner/geometry/material/family/clump
// stores this domain needs.
type Controller struct {
	cfg   Config
	frame WorldFrame

	owners    *OwnerStore
	geometry  *GeometryStore
	materials *MaterialTable
	clumps    *ClumpTemplateStore
	families  *FamilyRegistry
	masks     *FamilyMask
	anomalies *AnomalyLog
	history   *ContactHistory

	grid       *BinGrid
	broad      *BroadPhase
	backend    ComputeBackend
	integrator *Integrator
	scheduler  *Scheduler

	initialized bool
	verbosity   int
	showAnom    bool

	modelSpec ContactModelSpec
}

// NewController builds an uninitialized controller. Initialize must be
// called before Step/Sync.
func NewController() *Controller {
	return &Controller{
		geometry:  NewGeometryStore(),
		materials: NewMaterialTable(),
		clumps:    NewClumpTemplateStore(),
		families:  NewFamilyRegistry(),
		masks:     NewFamilyMask(),
		anomalies: NewAnomalyLog(),
		history:   NewContactHistory(),
		backend:   NewCPUBackend(),
	}
}

// LoadMaterial registers a material and returns its handle (spec.md §6).
func (c *Controller) LoadMaterial(p MaterialProps) MaterialHandle {
	return c.materials.Load(p)
}

// LoadClumpTemplate registers a clump template and returns its handle
// (spec.md §6 LoadClumpType). If mass/MOI are both zero, they are derived
// from the components assuming unit density via ComputeMassProperties.
func (c *Controller) LoadClumpTemplate(components []ClumpComponent, mass float64, moi mgl64.Vec3) ClumpTemplateHandle {
	if mass == 0 && moi == (mgl64.Vec3{}) {
		mass, moi = ComputeMassProperties(components, 1.0)
	}
	return c.clumps.Load(components, mass, moi)
}

// AddClumps instantiates copies of a clump template at the given poses,
// returning one Tracker per instance (spec.md §6 AddClumps).
//
// Must be called after Initialize, not before, which inverts the
// add-then-Initialize ordering spec.md §6's example walkthrough shows.
// Owner positions are stored pre-encoded into the (voxelID, offset)
// representation of spec.md §3, and that encoding is only derivable once
// Initialize has built the WorldFrame from Config's voxel-exponent and
// length-unit fields — so OwnerStore, which every Add* method needs,
// cannot exist before Initialize runs. Initialize does start the
// scheduler's CD/DI goroutines, but until the first Step CD is parked
// waiting for DI to consume the initial pair set and DI is parked waiting
// for requested steps, so Add* calls made before the first Step complete
// before either agent touches the stores.
func (c *Controller) AddClumps(h ClumpTemplateHandle, userFamily uint32, positions []mgl64.Vec3, orientations []mgl64.Quat) ([]*Tracker, error) {
	if c.owners == nil {
		return nil, &ConfigError{Msg: "AddClumps called before Initialize"}
	}
	if len(positions) != len(orientations) {
		return nil, &ConfigError{Msg: "positions and orientations length mismatch"}
	}
	fam, err := c.families.Compact(userFamily)
	if err != nil {
		return nil, err
	}
	tmpl := c.clumps.Template(h)
	massIdx := c.owners.AddMassProps(NewMassProps(tmpl.Mass, tmpl.MOI))

	trackers := make([]*Tracker, len(positions))
	for i := range positions {
		id := c.owners.Insert(OwnerClump, massIdx, fam, positions[i], orientations[i], mgl64.Vec3{}, mgl64.Vec3{})
		for _, comp := range tmpl.Components {
			c.owners.AttachGeometry(id, c.geometry.AddSphere(id, Sphere{RelPos: comp.RelPos, Radius: comp.Radius, Mat: comp.Mat}))
		}
		trackers[i] = NewTracker(c.owners, id)
	}
	return trackers, nil
}

// AddExternalObject adds a single analytical boundary primitive as its
// own owner (spec.md §6 AddExternalObject).
func (c *Controller) AddExternalObject(a Analytical, userFamily uint32, pos mgl64.Vec3, ori mgl64.Quat) (*Tracker, error) {
	if c.owners == nil {
		return nil, &ConfigError{Msg: "AddExternalObject called before Initialize"}
	}
	fam, err := c.families.Compact(userFamily)
	if err != nil {
		return nil, err
	}
	massIdx := c.owners.AddMassProps(NewMassProps(0, mgl64.Vec3{}))
	id := c.owners.Insert(OwnerAnalytical, massIdx, fam, pos, ori, mgl64.Vec3{}, mgl64.Vec3{})
	c.owners.AttachGeometry(id, c.geometry.AddAnalytical(id, a))
	return NewTracker(c.owners, id), nil
}

// AddMesh adds a triangle mesh as its own owner (spec.md §6 AddMesh).
func (c *Controller) AddMesh(tris []Triangle, mass float64, moi mgl64.Vec3, userFamily uint32, pos mgl64.Vec3, ori mgl64.Quat) (*Tracker, error) {
	if c.owners == nil {
		return nil, &ConfigError{Msg: "AddMesh called before Initialize"}
	}
	fam, err := c.families.Compact(userFamily)
	if err != nil {
		return nil, err
	}
	massIdx := c.owners.AddMassProps(NewMassProps(mass, moi))
	id := c.owners.Insert(OwnerMesh, massIdx, fam, pos, ori, mgl64.Vec3{}, mgl64.Vec3{})
	for _, t := range tris {
		c.owners.AttachGeometry(id, c.geometry.AddTriangle(id, t))
	}
	return NewTracker(c.owners, id), nil
}

// DisableContactBetweenFamilies forbids contacts between two user family
// numbers (spec.md §6).
func (c *Controller) DisableContactBetweenFamilies(famA, famB uint32) error {
	a, err := c.families.Compact(famA)
	if err != nil {
		return err
	}
	b, err := c.families.Compact(famB)
	if err != nil {
		return err
	}
	c.masks.Disable(a, b)
	return nil
}

// SetFamilyPrescribedMotion installs a prescribed velocity/angular
// velocity override for every member of a user family number
// (spec.md §6).
func (c *Controller) SetFamilyPrescribedMotion(userFamily uint32, spec PrescriptionSpec) error {
	fam, err := c.families.Compact(userFamily)
	if err != nil {
		return err
	}
	if c.integrator == nil {
		return &ConfigError{Msg: "SetFamilyPrescribedMotion called before Initialize"}
	}
	c.integrator.SetPrescription(fam, c.backend.BuildPrescription(spec))
	return nil
}

// ChangeFamilyNow bulk-reassigns every owner currently in fromFamily to
// toFamily. Only callable between Sync and the next Step, resolving
// SPEC_FULL.md §9 Open Question 2 ("ChangeFamilyNow implemented as
// synchronous bulk reassignment only callable between Sync and the next
// Step").
func (c *Controller) ChangeFamilyNow(fromFamily, toFamily uint32) error {
	if c.scheduler != nil && c.scheduler.pendingSteps.Load() > 0 {
		return &ConfigError{Msg: "ChangeFamilyNow called while scheduler is running; call Sync first"}
	}
	from, err := c.families.Compact(fromFamily)
	if err != nil {
		return err
	}
	to, err := c.families.Compact(toFamily)
	if err != nil {
		return err
	}
	for i := 0; i < c.owners.Count(); i++ {
		id := OwnerID(i)
		o := c.owners.Owner(id)
		if o.Family == from {
			c.owners.mu.Lock()
			c.owners.owners[i].Family = to
			c.owners.mu.Unlock()
		}
	}
	return nil
}

// SetSolverHistoryless toggles the historyless contact-model variant
// (spec.md §6, original_source API.h SetSolverHistoryless).
func (c *Controller) SetSolverHistoryless(v bool) {
	c.modelSpec.Historyless = v
	if c.integrator != nil {
		c.integrator.SetContactModel(c.modelSpec)
	}
}

// UseFrictionlessHertzianModel switches to the frictionless Hertzian
// contact model (spec.md §6).
func (c *Controller) UseFrictionlessHertzianModel() {
	c.modelSpec.Frictionless = true
	if c.integrator != nil {
		c.integrator.SetContactModel(c.modelSpec)
	}
}

// UseFrictionalHertzianModel switches to the frictional Hertzian contact
// model (spec.md §6).
func (c *Controller) UseFrictionalHertzianModel() {
	c.modelSpec.Frictionless = false
	if c.integrator != nil {
		c.integrator.SetContactModel(c.modelSpec)
	}
}

// SuggestExpandFactor updates the safety margin β used by subsequent
// broad-phase cycles (spec.md §6, original_source API.h
// SuggestExpandFactor).
func (c *Controller) SuggestExpandFactor(beta float64) {
	c.cfg.ExpandFactor = beta
	if c.broad != nil {
		c.broad.beta = beta
	}
}

// SetVerbosity sets the logging verbosity level (spec.md §6, API.h
// SetVerbosity). 0 is silent; any positive level lets ShowAnomalies log.
// No other output depends on the level.
func (c *Controller) SetVerbosity(level int) { c.verbosity = level }

// ShowAnomalies logs every anomaly currently queued and drains the log
// (spec.md §6, API.h ShowAnomalies), when verbosity permits.
func (c *Controller) ShowAnomalies() {
	for _, a := range c.anomalies.Drain() {
		if c.verbosity > 0 {
			log.Printf("godem: anomaly %s on owner %d at t=%.6f: %s", a.Kind, a.OwnerID, a.TAtDI, a.Detail)
		}
	}
}

// Initialize validates the configuration, builds the World Frame, bin
// grid, and scheduler, and enforces the β >= U*dt*v_max relationship as
// a hard ConfigError (spec.md §9, SPEC_FULL.md §9 Open Question 3)
// rather than allowing it to silently drift.
func (c *Controller) Initialize(cfg Config) error {
	frame, err := NewWorldFrame(cfg.NvX, cfg.NvY, cfg.NvZ, cfg.LengthUnit)
	if err != nil {
		return err
	}
	if cfg.Dt <= 0 {
		return &ConfigError{Msg: "Dt must be positive"}
	}
	if cfg.DriftBudgetU < 0 {
		return &ConfigError{Msg: "DriftBudgetU must be non-negative"}
	}
	minBeta := float64(cfg.DriftBudgetU) * cfg.Dt * cfg.MaxExpectedVelocity
	if cfg.ExpandFactor < minBeta {
		return &ConfigError{Msg: fmt.Sprintf(
			"expand factor %.6g is below the required safety margin %.6g (= U*dt*v_max); "+
				"raise ExpandFactor or lower DriftBudgetU/MaxExpectedVelocity", cfg.ExpandFactor, minBeta)}
	}

	c.cfg = cfg
	c.frame = frame
	c.owners = NewOwnerStore(frame)

	grid, err := NewBinGrid(frame, cfg.BinSize)
	if err != nil {
		return err
	}
	c.grid = grid
	c.broad = NewBroadPhase(grid, c.geometry, c.masks, cfg.ExpandFactor)
	c.integrator = NewIntegrator(c.owners, c.geometry, c.materials, c.history, c.backend, c.anomalies)
	c.integrator.SetGravity(cfg.Gravity)
	c.integrator.SetContactModel(c.modelSpec)

	c.scheduler = NewScheduler(c.owners, c.geometry, c.broad, c.integrator, c.grid, cfg.Dt, cfg.DriftBudgetU)
	if err := c.scheduler.Start(); err != nil {
		return err
	}

	c.initialized = true
	return nil
}

// Step requests enough DI steps to advance the simulation by duration
// seconds of wall-time-free simulated time and blocks until they have all
// executed (spec.md §4.4 "The caller specifies a wall-time-free
// simulation duration. DI computes N = round(duration / Δt) steps"),
// returning the first fatal error encountered, if any.
func (c *Controller) Step(duration float64) error {
	if !c.initialized {
		return &ConfigError{Msg: "Step called before Initialize"}
	}
	n := int(math.Round(duration / c.cfg.Dt))
	c.scheduler.RequestSteps(n)
	return c.scheduler.WaitDrained()
}

// Sync blocks until all outstanding steps drain and returns the
// scheduler to a state safe for Inspector queries and topology mutation
// (spec.md §6 Sync, §4.5 "sync stance").
func (c *Controller) Sync() error {
	if !c.initialized {
		return &ConfigError{Msg: "Sync called before Initialize"}
	}
	return c.scheduler.WaitDrained()
}

// ShutDown stops the scheduler's CD/DI goroutines. Safe to call multiple
// times.
func (c *Controller) ShutDown() {
	if c.scheduler != nil {
		c.scheduler.ShutDown()
	}
}

// Inspector returns a read-only query handle. Call only after Sync.
func (c *Controller) Inspector() *Inspector {
	return NewInspector(c.owners)
}

// FamilyMask exposes the controller's family-forbid matrix for testing.
func (c *Controller) FamilyMask() *FamilyMask { return c.masks }

// ClumpSphere describes one component sphere in world coordinates, for
// output-file writers that live outside this package (spec.md §6 output
// boundary is implementation-defined; see io.WriteSphereFile).
type ClumpSphere struct {
	OwnerID OwnerID
	Pos     mgl64.Vec3
	Radius  float64
	Family  FamilyID
}

// ClumpSpheres returns the world-frame position and radius of every
// component sphere belonging to a clump owner. Call only after Sync.
func (c *Controller) ClumpSpheres() []ClumpSphere {
	var out []ClumpSphere
	for i := 0; i < c.owners.Count(); i++ {
		id := OwnerID(i)
		o := c.owners.Owner(id)
		if o.Kind != OwnerClump {
			continue
		}
		base := c.owners.GetPos(id)
		ori := c.owners.GetOri(id)
		for _, gid := range o.GeometryIDs {
			sp := c.geometry.Sphere(gid)
			out = append(out, ClumpSphere{
				OwnerID: id,
				Pos:     ori.Rotate(sp.RelPos).Add(base),
				Radius:  sp.Radius,
				Family:  o.Family,
			})
		}
	}
	return out
}
