// Package pushsync implements the push-based synchronization strategy:
// the collector registers directly with the raw sensor source, keeps one
// small time-windowed queue per kind, and produces exactly one synced
// output per primary-sensor event, either interpolating every kind to
// the primary's timestamp or passing through each kind's newest sample.
package pushsync

import (
	"errors"
	"fmt"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/imu/interp"
	"github.com/banshee-data/inertial.report/internal/monitoring"
	"github.com/banshee-data/inertial.report/internal/units"
)

var (
	// ErrNoSlots is returned when no sensor kinds are configured.
	ErrNoSlots = errors.New("pushsync: at least one sensor kind required")
	// ErrPrimaryNotConfigured is returned when the primary kind is not
	// among the configured slots.
	ErrPrimaryNotConfigured = errors.New("pushsync: primary kind not among configured slots")
	// ErrDuplicateKind is returned when a kind appears twice.
	ErrDuplicateKind = errors.New("pushsync: duplicate sensor kind")
)

// DefaultWindowNanos is the retention window for buffered samples: 1ms.
const DefaultWindowNanos int64 = 1_000_000

// Slot describes one sensor kind in the collector. A nil Interpolator
// selects the per-kind default (slerp-linear for attitude, quadratic for
// the triad kinds).
type Slot struct {
	Kind         imu.SensorKind
	Delay        collect.Delay
	Interpolator interp.Interpolator
}

// Config configures a Collector.
type Config struct {
	Slots   []Slot
	Primary imu.SensorKind
	// WindowNanos bounds each kind's queue to a sliding time window;
	// zero selects DefaultWindowNanos.
	WindowNanos int64
	// InterpolationEnabled selects synthesis at the primary's exact
	// timestamp; when false each slot passes through its newest raw
	// sample with its own timestamp.
	InterpolationEnabled bool

	// OnSyncedMeasurements receives each synthesized tuple. The tuple is
	// reused across calls; Clone it to retain it past the callback.
	OnSyncedMeasurements func(c *Collector, sm *imu.SyncedMeasurement)
	// OnAccuracyChanged holds independently settable per-kind accuracy
	// listeners.
	OnAccuracyChanged map[imu.SensorKind]func(c *Collector, accuracy imu.Accuracy)
}

type slotState struct {
	slot    Slot
	queue   []imu.Measurement
	scratch imu.Measurement // interpolation result of the current event
}

// Collector is the push-based synced sensor collector.
//
// Not safe for concurrent use: start/stop and event delivery must happen
// on one goroutine, or be externally serialized.
type Collector struct {
	src collect.Source
	cfg Config

	slots   []*slotState
	primary *slotState
	window  int64

	running        bool
	startTimestamp int64
	mostRecent     int64
	processed      uint64

	out imu.SyncedMeasurement
}

// NewCollector validates the configuration and returns a stopped
// collector bound to the source.
func NewCollector(src collect.Source, cfg Config) (*Collector, error) {
	if len(cfg.Slots) == 0 {
		return nil, ErrNoSlots
	}
	c := &Collector{src: src, cfg: cfg, window: cfg.WindowNanos}
	if c.window <= 0 {
		c.window = DefaultWindowNanos
	}
	seen := make(map[imu.SensorKind]bool, len(cfg.Slots))
	for _, sl := range cfg.Slots {
		if seen[sl.Kind] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, sl.Kind)
		}
		seen[sl.Kind] = true
		if sl.Interpolator == nil {
			sl.Interpolator = interp.DefaultFor(sl.Kind)
		}
		st := &slotState{slot: sl}
		c.slots = append(c.slots, st)
		if sl.Kind == cfg.Primary {
			c.primary = st
		}
	}
	if c.primary == nil {
		return nil, ErrPrimaryNotConfigured
	}
	return c, nil
}

// Running reports whether every registration from the last Start
// succeeded.
func (c *Collector) Running() bool { return c.running }

// StartTimestamp returns the timestamp recorded by the last Start call.
func (c *Collector) StartTimestamp() int64 { return c.startTimestamp }

// MostRecentTimestamp returns the newest primary timestamp observed, or
// zero after Stop.
func (c *Collector) MostRecentTimestamp() int64 { return c.mostRecent }

// NumberOfProcessedMeasurements counts buffered events since Start.
func (c *Collector) NumberOfProcessedMeasurements() uint64 { return c.processed }

// PrimaryKind returns the kind whose events drive emission.
func (c *Collector) PrimaryKind() imu.SensorKind { return c.cfg.Primary }

// Start records the start timestamp (now when omitted) and registers one
// shared listener for every configured kind. Returns false while already
// running, when the source or any required kind is unavailable (checked
// before any registration), or when any registration fails. Partial
// registrations are not rolled back; callers unwind with Stop.
func (c *Collector) Start(startTimestamp ...int64) bool {
	if c.running {
		return false
	}
	if c.src == nil || !c.src.Available() {
		return false
	}
	for _, st := range c.slots {
		if !c.src.SensorAvailable(st.slot.Kind) {
			monitoring.Logf("pushsync: %s unavailable, not starting", st.slot.Kind)
			return false
		}
	}
	if len(startTimestamp) > 0 {
		c.startTimestamp = startTimestamp[0]
	} else {
		c.startTimestamp = units.NowNanos()
	}
	ok := true
	for _, st := range c.slots {
		if !c.src.Register(st.slot.Kind, st.slot.Delay, c) {
			monitoring.Logf("pushsync: %s registration failed", st.slot.Kind)
			ok = false
		}
	}
	if !ok {
		return false
	}
	c.running = true
	return true
}

// Stop unregisters from the source and zeroes the processed counter and
// most-recent timestamp. Queued samples are retained: the sliding window
// naturally evicts them once new data arrives after a restart.
func (c *Collector) Stop() {
	if c.src == nil || !c.src.Available() {
		return
	}
	c.src.Unregister(c)
	c.processed = 0
	c.mostRecent = 0
	c.running = false
}

// OnRawEvent implements collect.Listener: buffer, trim the window, and
// synthesize an output when the event belongs to the primary kind.
func (c *Collector) OnRawEvent(ev collect.RawEvent) {
	st := c.state(ev.Kind)
	if st == nil {
		return
	}
	var m imu.Measurement
	if !collect.MeasurementFromRaw(ev, &m) {
		return
	}
	st.queue = append(st.queue, m)
	c.trim(ev.Timestamp)
	c.processed++
	if st != c.primary {
		return
	}
	if ev.Timestamp > c.mostRecent {
		c.mostRecent = ev.Timestamp
	}
	c.synthesize(ev.Timestamp)
}

// trim drops every buffered sample older than the sliding window behind
// the current event timestamp, across all kinds.
func (c *Collector) trim(now int64) {
	horizon := now - c.window
	for _, st := range c.slots {
		n := 0
		for n < len(st.queue) && st.queue[n].Timestamp < horizon {
			n++
		}
		if n > 0 {
			rest := copy(st.queue, st.queue[n:])
			st.queue = st.queue[:rest]
		}
	}
}

// synthesize attempts one output at the primary timestamp. Any empty
// queue or failed interpolation aborts silently.
func (c *Collector) synthesize(t int64) {
	for _, st := range c.slots {
		if len(st.queue) == 0 {
			monitoring.Debugf("pushsync: no %s samples at %d, skipping", st.slot.Kind, t)
			return
		}
	}
	c.out.Reset()
	c.out.Timestamp = t
	if c.cfg.InterpolationEnabled {
		for _, st := range c.slots {
			if !st.slot.Interpolator.Interpolate(st.queue, t, &st.scratch) {
				monitoring.Debugf("pushsync: %s interpolation failed at %d", st.slot.Kind, t)
				return
			}
		}
		for _, st := range c.slots {
			c.out.Set(&st.scratch)
		}
	} else {
		for _, st := range c.slots {
			c.out.Set(&st.queue[len(st.queue)-1])
		}
	}
	if c.cfg.OnSyncedMeasurements != nil {
		c.cfg.OnSyncedMeasurements(c, &c.out)
	}
}

// OnAccuracyChanged implements collect.Listener, routing by the explicit
// kind tag to that kind's listener. Unknown kinds and out-of-range
// accuracy values are ignored.
func (c *Collector) OnAccuracyChanged(kind imu.SensorKind, accuracy imu.Accuracy) {
	if c.state(kind) == nil || !accuracy.Valid() {
		return
	}
	if f := c.cfg.OnAccuracyChanged[kind]; f != nil {
		f(c, accuracy)
	}
}

func (c *Collector) state(kind imu.SensorKind) *slotState {
	for _, st := range c.slots {
		if st.slot.Kind == kind {
			return st
		}
	}
	return nil
}
