package godem

import (
	"sync"
	"sync/atomic"
)

// SchedulerState is the explicit state machine spec.md §5 requires for the
// CD/DI asynchrony protocol.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateRunning
	StateWaitingForPeer
	StatePublishing
	StateStopping
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateWaitingForPeer:
		return "WAITING_FOR_PEER"
	case StatePublishing:
		return "PUBLISHING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// pairBuffer is the CD->DI double-buffered channel of spec.md §4.4: CD
// publishes a new candidate-pair snapshot by incrementing seq; DI always
// reads the latest one and marks how far it has gotten consuming it.
// Built on a mutex rather than a raw channel of slices because DI must be
// able to re-read "the latest" without racing a fixed-capacity channel
// send/receive pairing, matching the "last value wins" semantics a true
// double buffer gives in the original's shared-memory implementation.
type pairBuffer struct {
	mu          sync.Mutex
	seq         uint64
	pairs       []ContactPair
	consumedSeq uint64
}

func (b *pairBuffer) publish(pairs []ContactPair) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.pairs = pairs
	return b.seq
}

func (b *pairBuffer) latest() ([]ContactPair, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pairs, b.seq
}

func (b *pairBuffer) markConsumed(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq > b.consumedSeq {
		b.consumedSeq = seq
	}
}

func (b *pairBuffer) isFullyConsumed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumedSeq == b.seq
}

// stateBuffer is the DI->CD double-buffered channel of spec.md §4.4: DI
// publishes its committed owner-state snapshot after every step; CD reads
// the latest whenever it starts a new broad-phase cycle.
type stateBuffer struct {
	mu     sync.Mutex
	seq    uint64
	states []OwnerState
}

func (b *stateBuffer) publish(states []OwnerState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.states = states
}

func (b *stateBuffer) latest() []OwnerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states
}

// trySignal performs a non-blocking send on a capacity-1 notify channel,
// coalescing repeated wakeups the way a condition variable's Broadcast
// would, without requiring the receiver to have already arrived.
func trySignal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

const maxTooCrowdedRetries = 8

// Scheduler drives the two concurrent agents of spec.md §4.4: contact
// detection (CD) and dynamics integration (DI), each its own long-lived
// goroutine, communicating only through pairBuffer and stateBuffer plus a
// small set of control channels. Generalizes the teacher's WorkerPool
// select-loop idiom (0x5844-physics2D's worker() goroutines pulling from
// a shared job channel) into two purpose-built peers instead of a
// symmetric pool, since CD and DI do fundamentally different work and
// must obey the drift-budget relationship, not just share a queue.
type Scheduler struct {
	owners     *OwnerStore
	geometry   *GeometryStore
	broad      *BroadPhase
	integrator *Integrator
	grid       *BinGrid

	dt float64
	u  int // drift budget: max DI steps per CD publication

	state atomic.Int32

	pairs  pairBuffer
	states stateBuffer

	pairReady    chan struct{}
	pairConsumed chan struct{}

	pendingSteps atomic.Int64
	workReady    chan struct{}
	stepsDrained chan struct{}

	// cdPublications counts every fresh pair-set publication CD makes
	// after the initial one from Start, so tests can check the drift
	// bound directly: at U=0 every DI step must be preceded by exactly
	// one fresh publication (spec.md §4.4, "tDI - tCD <= U*dt").
	cdPublications atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup

	fatalMu  sync.Mutex
	fatalErr error

	shutdownOnce sync.Once
}

// NewScheduler builds a Scheduler wired to the given stores. dt is the
// DI integration timestep; u is the drift budget U of spec.md §4.4.
func NewScheduler(owners *OwnerStore, geometry *GeometryStore, broad *BroadPhase, integrator *Integrator, grid *BinGrid, dt float64, u int) *Scheduler {
	s := &Scheduler{
		owners:       owners,
		geometry:     geometry,
		broad:        broad,
		integrator:   integrator,
		grid:         grid,
		dt:           dt,
		u:            u,
		pairReady:    make(chan struct{}, 1),
		pairConsumed: make(chan struct{}, 1),
		workReady:    make(chan struct{}, 1),
		stepsDrained: make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
	s.state.Store(int32(StateIdle))
	return s
}

func (s *Scheduler) State() SchedulerState { return SchedulerState(s.state.Load()) }

// CDPublications reports how many fresh pair-set publications CD has made
// since Start's initial one, for drift-bound property tests.
func (s *Scheduler) CDPublications() int64 { return s.cdPublications.Load() }

func (s *Scheduler) setFatal(err error) {
	s.fatalMu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.fatalMu.Unlock()
	s.state.Store(int32(StateStopping))
}

func (s *Scheduler) FatalErr() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatalErr
}

// Start publishes an initial contact-pair snapshot synchronously (so DI
// never has to wait at the very first step) and launches the CD and DI
// goroutines.
func (s *Scheduler) Start() error {
	initial := s.owners.snapshot()
	s.states.publish(initial)

	pairs, err := s.runBroadPhaseOnce(initial)
	if err != nil {
		return err
	}
	s.pairs.publish(pairs)

	s.state.Store(int32(StateRunning))

	s.wg.Add(2)
	go s.cdLoop()
	go s.diLoop()
	return nil
}

// runBroadPhaseOnce runs broad-phase against a snapshot, retrying with a
// halved bin size on TooCrowdedError up to maxTooCrowdedRetries times
// before giving up (spec.md §4.2, §7).
func (s *Scheduler) runBroadPhaseOnce(states []OwnerState) ([]ContactPair, error) {
	for attempt := 0; attempt < maxTooCrowdedRetries; attempt++ {
		pairs, err := s.broad.Run(states, s.owners)
		if err == nil {
			return pairs, nil
		}
		if _, ok := err.(*TooCrowdedError); ok {
			if halveErr := s.grid.HalveBinSize(); halveErr != nil {
				return nil, &FatalError{Cause: halveErr}
			}
			continue
		}
		return nil, &FatalError{Cause: err}
	}
	return nil, &FatalError{Cause: &ConfigError{Msg: "exceeded TooCrowded retry budget"}}
}

// cdLoop is the contact-detection agent: it gates its own next cycle on
// "has DI consumed my previous publication" rather than "has DI's state
// advanced" — the latter deadlocks at U=0, where DI takes exactly one
// step per publication and may legitimately finish that step before CD
// has looped back around to check anything. Waiting on consumption
// instead of state change gives lockstep ping-pong at U=0 and a
// self-throttling pipeline for U>0.
func (s *Scheduler) cdLoop() {
	defer s.wg.Done()
	for {
		if !s.waitForConsumption() {
			return
		}

		states := s.states.latest()
		if len(states) < s.owners.Count() {
			// owners were added after DI's last publication (e.g. between
			// Initialize and the first Step): use the committed state.
			states = s.owners.snapshot()
		}
		pairs, err := s.runBroadPhaseOnce(states)
		if err != nil {
			s.setFatal(err)
			return
		}

		s.state.Store(int32(StatePublishing))
		s.pairs.publish(pairs)
		s.cdPublications.Add(1)
		trySignal(s.pairReady)
		s.state.Store(int32(StateRunning))
	}
}

func (s *Scheduler) waitForConsumption() bool {
	for {
		if s.pairs.isFullyConsumed() {
			return true
		}
		s.state.Store(int32(StateWaitingForPeer))
		select {
		case <-s.pairConsumed:
		case <-s.stopCh:
			return false
		}
	}
}

// diLoop is the dynamics-integration agent: it consumes the latest
// published pair set for up to U steps before blocking for a fresh one.
func (s *Scheduler) diLoop() {
	defer s.wg.Done()

	var lastSeq uint64
	stepsSinceFresh := 0

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if s.pendingSteps.Load() <= 0 {
			select {
			case <-s.workReady:
			case <-s.stopCh:
				return
			}
			continue
		}

		pairs, seq := s.pairs.latest()
		if seq != lastSeq {
			lastSeq = seq
			stepsSinceFresh = 0
			s.pairs.markConsumed(seq)
			trySignal(s.pairConsumed)
		} else if s.u >= 0 && stepsSinceFresh >= s.u {
			s.state.Store(int32(StateWaitingForPeer))
			select {
			case <-s.pairReady:
				continue
			case <-s.stopCh:
				return
			}
		}

		newStates, _, err := s.integrator.Step(s.dt, pairs)
		if err != nil {
			s.setFatal(&FatalError{Cause: err})
			return
		}
		stepsSinceFresh++

		s.states.publish(newStates)
		s.pendingSteps.Add(-1)
		trySignal(s.stepsDrained)
	}
}

// RequestSteps enqueues n additional DI steps and wakes the DI loop if it
// was idle waiting for work.
func (s *Scheduler) RequestSteps(n int) {
	s.pendingSteps.Add(int64(n))
	trySignal(s.workReady)
}

// WaitDrained blocks until every requested step has been executed, or a
// fatal error stops the scheduler first.
func (s *Scheduler) WaitDrained() error {
	for s.pendingSteps.Load() > 0 {
		if err := s.FatalErr(); err != nil {
			return err
		}
		select {
		case <-s.stepsDrained:
		case <-s.stopCh:
			return s.FatalErr()
		}
	}
	return s.FatalErr()
}

// ShutDown stops both agents and waits for them to exit. Idempotent.
func (s *Scheduler) ShutDown() {
	s.shutdownOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.state.Store(int32(StateIdle))
	})
}
