package collect

import "github.com/banshee-data/inertial.report/internal/imu"

// SimSource is a deterministic in-memory Source for tests and replay
// tooling. Events pushed through Emit are delivered synchronously to
// registered listeners, which matches the single-callback-goroutine
// contract of the real sources.
type SimSource struct {
	available    bool
	unavailable  map[imu.SensorKind]bool
	failRegister map[imu.SensorKind]bool

	registrations []simRegistration
}

type simRegistration struct {
	kind     imu.SensorKind
	delay    Delay
	listener Listener
}

// NewSimSource returns a SimSource on which every kind is available.
func NewSimSource() *SimSource {
	return &SimSource{
		available:    true,
		unavailable:  make(map[imu.SensorKind]bool),
		failRegister: make(map[imu.SensorKind]bool),
	}
}

// SetAvailable toggles overall source availability.
func (s *SimSource) SetAvailable(ok bool) { s.available = ok }

// SetSensorAvailable toggles availability for one kind.
func (s *SimSource) SetSensorAvailable(kind imu.SensorKind, ok bool) {
	s.unavailable[kind] = !ok
}

// FailRegistration makes subsequent Register calls for kind return false
// while leaving the sensor reported as available. Used to exercise the
// partial-start soft-failure path.
func (s *SimSource) FailRegistration(kind imu.SensorKind, fail bool) {
	s.failRegister[kind] = fail
}

// Available implements Source.
func (s *SimSource) Available() bool { return s.available }

// SensorAvailable implements Source.
func (s *SimSource) SensorAvailable(kind imu.SensorKind) bool {
	return s.available && !s.unavailable[kind]
}

// Register implements Source.
func (s *SimSource) Register(kind imu.SensorKind, delay Delay, l Listener) bool {
	if !s.SensorAvailable(kind) || s.failRegister[kind] {
		return false
	}
	s.registrations = append(s.registrations, simRegistration{kind: kind, delay: delay, listener: l})
	return true
}

// Unregister implements Source.
func (s *SimSource) Unregister(l Listener) {
	kept := s.registrations[:0]
	for _, r := range s.registrations {
		if r.listener != l {
			kept = append(kept, r)
		}
	}
	s.registrations = kept
}

// RegistrationCount returns the number of active registrations for kind.
func (s *SimSource) RegistrationCount(kind imu.SensorKind) int {
	n := 0
	for _, r := range s.registrations {
		if r.kind == kind {
			n++
		}
	}
	return n
}

// Emit delivers a raw event to every listener registered for its kind.
func (s *SimSource) Emit(ev RawEvent) {
	for _, r := range s.registrations {
		if r.kind == ev.Kind {
			r.listener.OnRawEvent(ev)
		}
	}
}

// EmitAccuracy delivers an accuracy change for kind.
func (s *SimSource) EmitAccuracy(kind imu.SensorKind, accuracy imu.Accuracy) {
	for _, r := range s.registrations {
		if r.kind == kind {
			r.listener.OnAccuracyChanged(kind, accuracy)
		}
	}
}
