// Package syncer implements the buffered multi-queue synchronization
// strategy: one bounded collector per sensor kind, per-kind pending
// queues, and one synced output tuple per master-sensor measurement.
//
// The engine is generic over an ordered slot list whose first entry is
// the master kind; the concrete attitude-led combinations are thin
// constructors in variants.go.
package syncer

import (
	"errors"
	"fmt"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/monitoring"
	"github.com/banshee-data/inertial.report/internal/units"
)

var (
	// ErrAlreadyRunning is returned by Start while the syncer is running.
	ErrAlreadyRunning = errors.New("syncer: already running")
	// ErrTooFewSlots is returned when fewer than two sensor kinds are
	// configured; a single stream has nothing to synchronize against.
	ErrTooFewSlots = errors.New("syncer: at least two sensor kinds required")
	// ErrDuplicateKind is returned when a kind appears in two slots.
	ErrDuplicateKind = errors.New("syncer: duplicate sensor kind")
)

const (
	// DefaultStaleOffsetNanos is the eviction horizon behind the most
	// recent master timestamp: 5ms.
	DefaultStaleOffsetNanos int64 = 5_000_000
	// DefaultCapacity is the per-sensor collector buffer size used by the
	// named variant constructors.
	DefaultCapacity = 100
)

// Slot describes one sensor kind participating in the sync. The first
// slot of a Config is the master: its measurement cadence drives
// emission and its timestamps govern the output tuple.
type Slot struct {
	Kind               imu.SensorKind
	Required           bool // emission is skipped while this slot has no contribution
	Capacity           int  // collector buffer size, must be > 0
	Delay              collect.Delay
	StartOffsetEnabled bool
}

// Config configures a Syncer.
type Config struct {
	// Slots in fixed start order; Slots[0] is the master and is treated
	// as required regardless of its Required flag.
	Slots []Slot

	// StopWhenFilledBuffer stops the whole syncer when any collector
	// reports a full buffer.
	StopWhenFilledBuffer bool
	// StaleOffsetNanos is the stale eviction horizon; zero selects
	// DefaultStaleOffsetNanos.
	StaleOffsetNanos int64
	// StaleDetectionEnabled turns on the eviction sweep that runs with
	// each reconciliation pass.
	StaleDetectionEnabled bool

	// OnSyncedMeasurements receives each completed tuple. The tuple is
	// reused across calls; Clone it to retain it past the callback.
	OnSyncedMeasurements func(s *Syncer, sm *imu.SyncedMeasurement)
	// OnAccuracyChanged forwards collector accuracy changes.
	OnAccuracyChanged func(s *Syncer, kind imu.SensorKind, accuracy imu.Accuracy)
	// OnBufferFilled reports which collector filled its buffer. It is
	// notified even when StopWhenFilledBuffer triggers a stop.
	OnBufferFilled func(s *Syncer, kind imu.SensorKind)
	// OnStaleMeasurements receives measurements evicted by the stale
	// sweep, with the kind whose event triggered the sweep. The slice is
	// reused; copy to retain.
	OnStaleMeasurements func(s *Syncer, triggered imu.SensorKind, stale []imu.Measurement)
}

type slotState struct {
	slot      Slot
	collector *collect.BufferedCollector

	pending []imu.Measurement // arrival order == timestamp order
	found   []imu.Measurement // scratch: matches of one reconciliation pass
	evicted []imu.Measurement // scratch: stale sweep evictions

	previous    imu.Measurement // carry-forward slot, secondaries only
	hasPrevious bool
}

// Syncer reconciles independently arriving sensor streams into synced
// tuples keyed by the master sensor's timestamps.
//
// Not safe for concurrent use: start/stop and event delivery must happen
// on one goroutine, or be externally serialized.
type Syncer struct {
	cfg   Config
	slots []*slotState

	running bool

	startTimestamp int64
	mostRecent     int64
	hasMostRecent  bool
	oldest         int64
	hasOldest      bool
	processed      uint64

	out         imu.SyncedMeasurement
	staleOffset int64
	staleBatch  []imu.Measurement // combined evictions handed to the listener
}

// NewSyncer validates the configuration, builds one buffered collector
// per slot on the given source and returns a stopped syncer. Capacities
// must be positive; kinds must be distinct.
func NewSyncer(src collect.Source, cfg Config) (*Syncer, error) {
	if len(cfg.Slots) < 2 {
		return nil, ErrTooFewSlots
	}
	seen := make(map[imu.SensorKind]bool, len(cfg.Slots))
	for _, sl := range cfg.Slots {
		if sl.Capacity <= 0 {
			return nil, fmt.Errorf("%w: %s capacity %d", collect.ErrInvalidCapacity, sl.Kind, sl.Capacity)
		}
		if seen[sl.Kind] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, sl.Kind)
		}
		seen[sl.Kind] = true
	}
	// Keep the caller's slice intact when forcing the master required.
	slots := make([]Slot, len(cfg.Slots))
	copy(slots, cfg.Slots)
	slots[0].Required = true
	cfg.Slots = slots

	s := &Syncer{cfg: cfg, staleOffset: cfg.StaleOffsetNanos}
	if s.staleOffset <= 0 {
		s.staleOffset = DefaultStaleOffsetNanos
	}
	for i, sl := range cfg.Slots {
		st := &slotState{slot: sl}
		cc := collect.CollectorConfig{
			Kind:               sl.Kind,
			Capacity:           sl.Capacity,
			Delay:              sl.Delay,
			StartOffsetEnabled: sl.StartOffsetEnabled,
			OnBufferFilled: func(*collect.BufferedCollector) {
				s.handleBufferFilled(st)
			},
			OnAccuracyChanged: func(_ *collect.BufferedCollector, a imu.Accuracy) {
				if s.cfg.OnAccuracyChanged != nil {
					s.cfg.OnAccuracyChanged(s, st.slot.Kind, a)
				}
			},
		}
		if i == 0 {
			cc.OnMeasurement = func(c *collect.BufferedCollector, _ imu.Measurement, _ int) {
				s.handleMasterArrival(c)
			}
		} else {
			cc.OnMeasurement = func(c *collect.BufferedCollector, _ imu.Measurement, _ int) {
				s.handleSecondaryArrival(st, c)
			}
		}
		col, err := collect.NewBufferedCollector(src, cc)
		if err != nil {
			return nil, err
		}
		st.collector = col
		s.slots = append(s.slots, st)
	}
	return s, nil
}

// Running reports whether every underlying collector was started by the
// last Start call.
func (s *Syncer) Running() bool { return s.running }

// StartTimestamp returns the timestamp recorded by the last Start call,
// whether or not that call succeeded.
func (s *Syncer) StartTimestamp() int64 { return s.startTimestamp }

// MostRecentTimestamp returns the newest master timestamp observed.
func (s *Syncer) MostRecentTimestamp() (int64, bool) { return s.mostRecent, s.hasMostRecent }

// OldestTimestamp returns the first master timestamp reconciled since
// Start.
func (s *Syncer) OldestTimestamp() (int64, bool) { return s.oldest, s.hasOldest }

// NumberOfProcessedMeasurements counts reconciliation passes since Start.
func (s *Syncer) NumberOfProcessedMeasurements() uint64 { return s.processed }

// MasterKind returns the kind whose cadence drives emission.
func (s *Syncer) MasterKind() imu.SensorKind { return s.slots[0].slot.Kind }

// Usage returns the collector buffer fill ratio for kind, or 0 for a
// kind the syncer does not manage.
func (s *Syncer) Usage(kind imu.SensorKind) float64 {
	if st := s.state(kind); st != nil {
		return st.collector.Usage()
	}
	return 0
}

// SensorAvailable reports source availability for kind.
func (s *Syncer) SensorAvailable(kind imu.SensorKind) bool {
	if st := s.state(kind); st != nil {
		return st.collector.SensorAvailable()
	}
	return false
}

// StartOffset passes through the collector start offset for kind.
func (s *Syncer) StartOffset(kind imu.SensorKind) (int64, bool) {
	if st := s.state(kind); st != nil {
		return st.collector.StartOffset()
	}
	return 0, false
}

func (s *Syncer) state(kind imu.SensorKind) *slotState {
	for _, st := range s.slots {
		if st.slot.Kind == kind {
			return st
		}
	}
	return nil
}

// Start resets all queues and counters, records the start timestamp (now
// when omitted) and starts each collector in slot order. When any
// collector fails to start, collectors already started are left running
// and false is returned with the syncer stopped; callers unwind with
// Stop. A Start while running fails with ErrAlreadyRunning.
func (s *Syncer) Start(startTimestamp ...int64) (bool, error) {
	if s.running {
		return false, ErrAlreadyRunning
	}
	if len(startTimestamp) > 0 {
		s.startTimestamp = startTimestamp[0]
	} else {
		s.startTimestamp = units.NowNanos()
	}
	s.reset()
	for _, st := range s.slots {
		if !st.collector.Start(s.startTimestamp) {
			// Earlier collectors stay running; a failed start is cheap to
			// retry and Stop unwinds the partial state.
			monitoring.Logf("syncer: %s collector failed to start", st.slot.Kind)
			return false, nil
		}
	}
	s.running = true
	return true, nil
}

// Stop stops every collector and clears all queue and counter state.
// Safe to call repeatedly.
func (s *Syncer) Stop() {
	for _, st := range s.slots {
		st.collector.Stop()
	}
	s.reset()
	s.running = false
}

func (s *Syncer) reset() {
	for _, st := range s.slots {
		st.pending = st.pending[:0]
		st.found = st.found[:0]
		st.evicted = st.evicted[:0]
		st.hasPrevious = false
		st.previous = imu.Measurement{}
	}
	s.hasMostRecent = false
	s.mostRecent = 0
	s.hasOldest = false
	s.oldest = 0
	s.processed = 0
	s.staleBatch = s.staleBatch[:0]
	s.out.Reset()
}

// handleMasterArrival drains the master collector by position, updates
// the reference timestamp, pulls every secondary buffer up to it and
// runs one reconciliation pass per new master measurement.
func (s *Syncer) handleMasterArrival(c *collect.BufferedCollector) {
	if !s.running {
		return
	}
	master := s.slots[0]
	drained := c.MeasurementsBeforePosition(c.Position())
	if len(drained) == 0 {
		return
	}
	master.pending = append(master.pending, drained...)
	newest := drained[len(drained)-1].Timestamp
	if !s.hasMostRecent || newest > s.mostRecent {
		s.mostRecent = newest
		s.hasMostRecent = true
	}
	for _, st := range s.slots[1:] {
		st.pending = append(st.pending, st.collector.MeasurementsBefore(s.mostRecent)...)
	}
	s.drainMasterQueue(s.cfg.StaleDetectionEnabled)
}

// handleSecondaryArrival files buffered secondary measurements into the
// pending queue. Without a master reference timestamp the buffer is left
// untouched: secondary data has no matching window yet.
func (s *Syncer) handleSecondaryArrival(st *slotState, c *collect.BufferedCollector) {
	if !s.running || !s.hasMostRecent {
		return
	}
	st.pending = append(st.pending, c.MeasurementsBefore(s.mostRecent)...)
}

func (s *Syncer) drainMasterQueue(staleSweep bool) {
	master := s.slots[0]
	for len(master.pending) > 0 {
		m := master.pending[0]
		n := copy(master.pending, master.pending[1:])
		master.pending = master.pending[:n]
		s.reconcile(&m, staleSweep)
	}
}

// reconcile pairs one master measurement with the best available
// contribution from every secondary kind and emits the tuple when all
// required slots are populated.
func (s *Syncer) reconcile(m *imu.Measurement, staleSweep bool) {
	t := m.Timestamp
	s.out.Reset()
	s.out.Timestamp = t
	s.out.Set(m)

	complete := true
	for _, st := range s.slots[1:] {
		n := 0
		for n < len(st.pending) && st.pending[n].Timestamp <= t {
			n++
		}
		if n > 0 {
			// Newest match wins; the rest of the window is dropped.
			st.found = append(st.found[:0], st.pending[:n]...)
			rest := copy(st.pending, st.pending[n:])
			st.pending = st.pending[:rest]
			st.previous.CopyFrom(&st.found[n-1])
			st.hasPrevious = true
			st.found = st.found[:0]
		}
		if st.hasPrevious {
			s.out.Set(&st.previous)
		} else if st.slot.Required {
			complete = false
		}
	}

	s.processed++
	if !s.hasOldest {
		s.oldest = t
		s.hasOldest = true
	}
	if complete {
		if s.cfg.OnSyncedMeasurements != nil {
			s.cfg.OnSyncedMeasurements(s, &s.out)
		}
	} else {
		monitoring.Debugf("syncer: skipped emission at %d, required kind missing", t)
	}

	if staleSweep {
		s.sweepStale(s.slots[0].slot.Kind)
	}
}

// sweepStale evicts pending entries older than the stale horizon and
// reports them once per sweep.
func (s *Syncer) sweepStale(triggered imu.SensorKind) {
	if !s.hasMostRecent {
		return
	}
	threshold := s.mostRecent - s.staleOffset
	s.staleBatch = s.staleBatch[:0]
	for _, st := range s.slots {
		n := 0
		for n < len(st.pending) && st.pending[n].Timestamp < threshold {
			n++
		}
		if n == 0 {
			continue
		}
		st.evicted = append(st.evicted[:0], st.pending[:n]...)
		rest := copy(st.pending, st.pending[n:])
		st.pending = st.pending[:rest]
		s.staleBatch = append(s.staleBatch, st.evicted...)
	}
	if len(s.staleBatch) > 0 {
		monitoring.Debugf("syncer: evicted %d stale measurements (threshold %d)", len(s.staleBatch), threshold)
		if s.cfg.OnStaleMeasurements != nil {
			s.cfg.OnStaleMeasurements(s, triggered, s.staleBatch)
		}
	}
	for _, st := range s.slots {
		st.evicted = st.evicted[:0]
	}
}

func (s *Syncer) handleBufferFilled(st *slotState) {
	if s.cfg.OnBufferFilled != nil {
		s.cfg.OnBufferFilled(s, st.slot.Kind)
	}
	if s.cfg.StopWhenFilledBuffer && s.running {
		monitoring.Logf("syncer: %s buffer filled, stopping", st.slot.Kind)
		s.Stop()
	}
}
