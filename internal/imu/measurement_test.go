package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]SensorKind{
		"attitude":      KindAttitude,
		"ATT":           KindAttitude,
		"accelerometer": KindAccelerometer,
		"ACC":           KindAccelerometer,
		"gyroscope":     KindGyroscope,
		"GYR":           KindGyroscope,
		"gravity":       KindGravity,
		"GRV":           KindGravity,
		"magnetometer":  KindMagnetometer,
		"MAG":           KindMagnetometer,
		"bogus":         KindUnknown,
		"":              KindUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSensorKind(in), "input %q", in)
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	t.Parallel()

	kinds := []SensorKind{KindAttitude, KindAccelerometer, KindGyroscope, KindGravity, KindMagnetometer}
	for _, k := range kinds {
		assert.Equal(t, k, ParseSensorKind(k.String()))
	}
}

func TestAccuracyValid(t *testing.T) {
	t.Parallel()

	assert.True(t, AccuracyUnreliable.Valid())
	assert.True(t, AccuracyHigh.Valid())
	assert.False(t, Accuracy(-1).Valid())
	assert.False(t, Accuracy(4).Valid())
}

func TestQuaternionNormalize(t *testing.T) {
	t.Parallel()

	t.Run("scales to unit length", func(t *testing.T) {
		t.Parallel()
		q := Quaternion{A: 2, B: 0, C: 0, D: 0}.Normalize()
		assert.InDelta(t, 1.0, q.Norm(), 1e-12)
		assert.InDelta(t, 1.0, q.A, 1e-12)
	})

	t.Run("zero quaternion becomes identity", func(t *testing.T) {
		t.Parallel()
		q := Quaternion{}.Normalize()
		assert.Equal(t, Quaternion{A: 1}, q)
	})
}

func TestSyncedMeasurementSlots(t *testing.T) {
	t.Parallel()

	var sm SyncedMeasurement
	m := Measurement{Kind: KindAccelerometer, Timestamp: 42, Value: Vector3{X: 1}}
	sm.Set(&m)

	got, ok := sm.Slot(KindAccelerometer)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Timestamp)
	assert.Equal(t, 1.0, got.Value.X)

	_, ok = sm.Slot(KindGyroscope)
	assert.False(t, ok)

	// Unknown kinds are ignored.
	sm.Set(&Measurement{Kind: KindUnknown, Timestamp: 7})
	_, ok = sm.Slot(KindUnknown)
	assert.False(t, ok)
}

func TestSyncedMeasurementCloneIsIndependent(t *testing.T) {
	t.Parallel()

	var sm SyncedMeasurement
	sm.Timestamp = 100
	sm.Set(&Measurement{Kind: KindAttitude, Timestamp: 100, Attitude: Quaternion{A: 1}})

	clone := sm.Clone()
	sm.Reset()
	sm.Timestamp = 200

	assert.Equal(t, int64(100), clone.Timestamp)
	assert.True(t, clone.HasAttitude)
	assert.False(t, sm.HasAttitude)
}

func TestMeasurementCopyFrom(t *testing.T) {
	t.Parallel()

	src := Measurement{Kind: KindGyroscope, Timestamp: 5, Value: Vector3{X: 1, Y: 2, Z: 3}}
	var dst Measurement
	dst.CopyFrom(&src)
	src.Value.X = 99

	assert.Equal(t, 1.0, dst.Value.X)
	assert.Equal(t, int64(5), dst.Timestamp)
}
