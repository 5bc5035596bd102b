// Package collect provides the platform-facing sensor layer: the raw
// event source abstraction, conversion of raw events into typed
// measurements, and the capacity-bounded buffered collector that the
// multi-queue syncer drains.
package collect

import (
	"errors"

	"github.com/banshee-data/inertial.report/internal/imu"
)

// ErrInvalidCapacity is returned when a collector is constructed with a
// non-positive buffer capacity.
var ErrInvalidCapacity = errors.New("collect: buffer capacity must be positive")

// Delay is the requested sensor sampling rate hint, mirroring the usual
// platform delay constants from fastest to slowest.
type Delay int

const (
	DelayFastest Delay = iota
	DelayGame
	DelayUI
	DelayNormal
)

// RawEvent is one hardware sensor event as delivered by a Source. Events
// carry an explicit kind tag rather than an opaque sensor handle, so
// routing never depends on platform object identity.
type RawEvent struct {
	Kind      imu.SensorKind
	Timestamp int64 // nanoseconds, sensor clock domain
	Accuracy  imu.Accuracy
	Values    []float64
}

// Listener receives raw events and accuracy changes from a Source. All
// callbacks for one Source are delivered sequentially from a single
// goroutine; listeners must not assume any other synchronization.
type Listener interface {
	OnRawEvent(ev RawEvent)
	OnAccuracyChanged(kind imu.SensorKind, accuracy imu.Accuracy)
}

// Source is a platform sensor event source: serial link, UDP stream, or
// an in-memory simulator in tests.
type Source interface {
	// Available reports whether the source itself is usable at all.
	Available() bool
	// SensorAvailable reports whether the source can deliver events for
	// the given kind.
	SensorAvailable(kind imu.SensorKind) bool
	// Register subscribes l to events of the given kind. Returns false
	// when the sensor is unavailable or registration fails.
	Register(kind imu.SensorKind, delay Delay, l Listener) bool
	// Unregister removes every registration held by l.
	Unregister(l Listener)
}

// Raw value layouts, by kind:
//
//	attitude: a, b, c, d, headingAccuracy(rad)
//	triads:   x, y, z [, biasX, biasY, biasZ]
const (
	attitudeValues      = 5
	triadValues         = 3
	triadValuesWithBias = 6
)

// MeasurementFromRaw converts a raw event into a typed Measurement.
// Returns false for unknown kinds or malformed value layouts; callers
// discard those events silently.
func MeasurementFromRaw(ev RawEvent, out *imu.Measurement) bool {
	switch ev.Kind {
	case imu.KindAttitude:
		if len(ev.Values) < attitudeValues {
			return false
		}
		*out = imu.Measurement{
			Kind:      ev.Kind,
			Timestamp: ev.Timestamp,
			Accuracy:  ev.Accuracy,
			Attitude: imu.Quaternion{
				A: ev.Values[0],
				B: ev.Values[1],
				C: ev.Values[2],
				D: ev.Values[3],
			},
			HeadingAccuracy: ev.Values[4],
		}
		return true
	case imu.KindAccelerometer, imu.KindGyroscope, imu.KindGravity, imu.KindMagnetometer:
		if len(ev.Values) < triadValues {
			return false
		}
		*out = imu.Measurement{
			Kind:      ev.Kind,
			Timestamp: ev.Timestamp,
			Accuracy:  ev.Accuracy,
			Value:     imu.Vector3{X: ev.Values[0], Y: ev.Values[1], Z: ev.Values[2]},
		}
		if len(ev.Values) >= triadValuesWithBias {
			out.Bias = imu.Vector3{X: ev.Values[3], Y: ev.Values[4], Z: ev.Values[5]}
			out.HasBias = true
		}
		return true
	default:
		return false
	}
}
