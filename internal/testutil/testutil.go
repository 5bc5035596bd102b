// Package testutil provides shared measurement fixtures for tests.
//
// This package centralises the fiddly raw-event layouts so tests read as
// "attitude at T" rather than positional float slices.
package testutil

import (
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
)

// AttitudeEvent returns a raw identity-quaternion attitude event at ts.
func AttitudeEvent(ts int64) collect.RawEvent {
	return collect.RawEvent{
		Kind:      imu.KindAttitude,
		Timestamp: ts,
		Accuracy:  imu.AccuracyHigh,
		Values:    []float64{1, 0, 0, 0, 0.01},
	}
}

// TriadEvent returns a raw 3-axis event of the given kind at ts.
func TriadEvent(kind imu.SensorKind, ts int64, x, y, z float64) collect.RawEvent {
	return collect.RawEvent{
		Kind:      kind,
		Timestamp: ts,
		Accuracy:  imu.AccuracyHigh,
		Values:    []float64{x, y, z},
	}
}

// AttitudeAt returns an identity-quaternion attitude measurement at ts.
func AttitudeAt(ts int64) imu.Measurement {
	return imu.Measurement{
		Kind:            imu.KindAttitude,
		Timestamp:       ts,
		Accuracy:        imu.AccuracyHigh,
		Attitude:        imu.Quaternion{A: 1},
		HeadingAccuracy: 0.01,
	}
}

// TriadAt returns a 3-axis measurement of the given kind at ts.
func TriadAt(kind imu.SensorKind, ts int64, x, y, z float64) imu.Measurement {
	return imu.Measurement{
		Kind:      kind,
		Timestamp: ts,
		Accuracy:  imu.AccuracyHigh,
		Value:     imu.Vector3{X: x, Y: y, Z: z},
	}
}
