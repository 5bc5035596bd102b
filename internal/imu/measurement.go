// Package imu defines the measurement value types shared by the
// synchronization engines: sensor kinds, accuracy grades, quaternion and
// 3-axis payloads, and the synced output tuple.
//
// Measurements are plain value types with no internal pointers, so a
// struct assignment is a complete copy. Every queue boundary in this
// repository copies by value; no measurement is ever shared between the
// platform layer and a syncer's queues.
package imu

import "math"

// SensorKind identifies the semantic sensor type of a measurement.
type SensorKind int

const (
	KindUnknown SensorKind = iota
	KindAttitude
	KindAccelerometer
	KindGyroscope
	KindGravity
	KindMagnetometer
)

// String returns a short lowercase name for the kind.
func (k SensorKind) String() string {
	switch k {
	case KindAttitude:
		return "attitude"
	case KindAccelerometer:
		return "accelerometer"
	case KindGyroscope:
		return "gyroscope"
	case KindGravity:
		return "gravity"
	case KindMagnetometer:
		return "magnetometer"
	default:
		return "unknown"
	}
}

// ParseSensorKind maps a kind name (as used in config files and the wire
// grammar) back to a SensorKind. Returns KindUnknown for anything else.
func ParseSensorKind(s string) SensorKind {
	switch s {
	case "attitude", "ATT":
		return KindAttitude
	case "accelerometer", "ACC":
		return KindAccelerometer
	case "gyroscope", "GYR":
		return KindGyroscope
	case "gravity", "GRV":
		return KindGravity
	case "magnetometer", "MAG":
		return KindMagnetometer
	default:
		return KindUnknown
	}
}

// Accuracy is the platform-reported reliability grade of a sensor stream.
type Accuracy int

const (
	AccuracyUnreliable Accuracy = iota
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
)

// Valid reports whether a is a defined accuracy grade. Raw platform
// callbacks can carry out-of-range values; those are dropped by callers.
func (a Accuracy) Valid() bool {
	return a >= AccuracyUnreliable && a <= AccuracyHigh
}

// String returns a short lowercase name for the accuracy grade.
func (a Accuracy) String() string {
	switch a {
	case AccuracyUnreliable:
		return "unreliable"
	case AccuracyLow:
		return "low"
	case AccuracyMedium:
		return "medium"
	case AccuracyHigh:
		return "high"
	default:
		return "invalid"
	}
}

// Vector3 is a 3-axis reading in the sensor frame.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is a rotation a + bi + cj + dk. Attitude measurements carry
// unit quaternions; Normalize guards against drift after interpolation.
type Quaternion struct {
	A, B, C, D float64
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.A*q.A + q.B*q.B + q.C*q.C + q.D*q.D)
}

// Dot returns the 4-component dot product with p.
func (q Quaternion) Dot(p Quaternion) float64 {
	return q.A*p.A + q.B*p.B + q.C*p.C + q.D*p.D
}

// Normalize scales q to unit length. A zero quaternion is returned as
// identity rather than NaN.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 {
		return Quaternion{A: 1}
	}
	return Quaternion{A: q.A / n, B: q.B / n, C: q.C / n, D: q.D / n}
}

// Measurement is a single timestamped sensor reading. The payload fields
// in use depend on Kind: attitude measurements carry Attitude and
// HeadingAccuracy; the triad kinds (accelerometer, gyroscope, gravity,
// magnetometer) carry Value and optionally Bias.
type Measurement struct {
	Kind      SensorKind
	Timestamp int64 // nanoseconds, sensor clock domain
	Accuracy  Accuracy

	// Attitude payload.
	Attitude        Quaternion
	HeadingAccuracy float64 // radians

	// Triad payload.
	Value   Vector3
	Bias    Vector3
	HasBias bool
}

// CopyFrom overwrites m with the contents of src. Measurement has no
// reference fields so this is a complete copy; it exists so call sites
// that hand measurements across queue boundaries read as copies.
func (m *Measurement) CopyFrom(src *Measurement) {
	*m = *src
}

// SyncedMeasurement is the output tuple of both synchronization
// strategies: one optional slot per sensor kind plus the unified
// timestamp that governs the tuple.
//
// Each syncer owns a single SyncedMeasurement that is overwritten on
// every emission. A listener that wants to retain the tuple beyond the
// synchronous callback must Clone it first.
type SyncedMeasurement struct {
	Timestamp int64

	Attitude         Measurement
	HasAttitude      bool
	Accelerometer    Measurement
	HasAccelerometer bool
	Gyroscope        Measurement
	HasGyroscope     bool
	Gravity          Measurement
	HasGravity       bool
	Magnetometer     Measurement
	HasMagnetometer  bool
}

// Reset clears the tuple to the empty state.
func (s *SyncedMeasurement) Reset() {
	*s = SyncedMeasurement{}
}

// Set stores a copy of m into the slot matching its kind. Measurements
// of unknown kind are ignored.
func (s *SyncedMeasurement) Set(m *Measurement) {
	switch m.Kind {
	case KindAttitude:
		s.Attitude.CopyFrom(m)
		s.HasAttitude = true
	case KindAccelerometer:
		s.Accelerometer.CopyFrom(m)
		s.HasAccelerometer = true
	case KindGyroscope:
		s.Gyroscope.CopyFrom(m)
		s.HasGyroscope = true
	case KindGravity:
		s.Gravity.CopyFrom(m)
		s.HasGravity = true
	case KindMagnetometer:
		s.Magnetometer.CopyFrom(m)
		s.HasMagnetometer = true
	}
}

// Slot returns the measurement stored for kind and whether it is present.
func (s *SyncedMeasurement) Slot(kind SensorKind) (Measurement, bool) {
	switch kind {
	case KindAttitude:
		return s.Attitude, s.HasAttitude
	case KindAccelerometer:
		return s.Accelerometer, s.HasAccelerometer
	case KindGyroscope:
		return s.Gyroscope, s.HasGyroscope
	case KindGravity:
		return s.Gravity, s.HasGravity
	case KindMagnetometer:
		return s.Magnetometer, s.HasMagnetometer
	default:
		return Measurement{}, false
	}
}

// Clone returns an independent copy of the tuple. Listeners use this when
// retaining output beyond the callback that delivered it.
func (s *SyncedMeasurement) Clone() *SyncedMeasurement {
	out := *s
	return &out
}
