package collect

import (
	"sync"

	"github.com/banshee-data/inertial.report/internal/imu"
)

// Fanout is the registration and delivery core shared by the production
// sources (serial, UDP, replay). It implements Source; transports feed
// parsed events in through Deliver from their single read goroutine.
//
// Registration is mutex-guarded because Register/Unregister may be
// called from a different goroutine than the read loop; delivery order
// is still defined by the single Deliver caller.
type Fanout struct {
	mu        sync.RWMutex
	kinds     map[imu.SensorKind]bool
	available bool
	regs      []fanoutReg
}

type fanoutReg struct {
	kind     imu.SensorKind
	listener Listener
}

// NewFanout returns a Fanout advertising the given kinds as available.
func NewFanout(kinds ...imu.SensorKind) *Fanout {
	f := &Fanout{kinds: make(map[imu.SensorKind]bool, len(kinds)), available: true}
	for _, k := range kinds {
		f.kinds[k] = true
	}
	return f
}

// SetAvailable toggles overall source availability, e.g. when the
// underlying transport closes.
func (f *Fanout) SetAvailable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = ok
}

// Available implements Source.
func (f *Fanout) Available() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.available
}

// SensorAvailable implements Source.
func (f *Fanout) SensorAvailable(kind imu.SensorKind) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.available && f.kinds[kind]
}

// Register implements Source.
func (f *Fanout) Register(kind imu.SensorKind, _ Delay, l Listener) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available || !f.kinds[kind] {
		return false
	}
	f.regs = append(f.regs, fanoutReg{kind: kind, listener: l})
	return true
}

// Unregister implements Source.
func (f *Fanout) Unregister(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.regs[:0]
	for _, r := range f.regs {
		if r.listener != l {
			kept = append(kept, r)
		}
	}
	f.regs = kept
}

// Deliver hands a parsed event to every listener registered for its
// kind. Must be called from a single goroutine.
func (f *Fanout) Deliver(ev RawEvent) {
	f.mu.RLock()
	regs := f.regs
	f.mu.RUnlock()
	for _, r := range regs {
		if r.kind == ev.Kind {
			r.listener.OnRawEvent(ev)
		}
	}
}

// DeliverAccuracy forwards an accuracy change for kind.
func (f *Fanout) DeliverAccuracy(kind imu.SensorKind, accuracy imu.Accuracy) {
	f.mu.RLock()
	regs := f.regs
	f.mu.RUnlock()
	for _, r := range regs {
		if r.kind == kind {
			r.listener.OnAccuracyChanged(kind, accuracy)
		}
	}
}
