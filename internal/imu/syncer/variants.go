package syncer

import (
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
)

// Capacities carries optional per-kind collector buffer sizes for the
// named variant constructors. Zero values select DefaultCapacity;
// negative values are rejected by NewSyncer.
type Capacities struct {
	Attitude      int
	Accelerometer int
	Gyroscope     int
	Gravity       int
}

func capacityOr(c int) int {
	if c == 0 {
		return DefaultCapacity
	}
	return c
}

// Options configures the behavior shared by all variants.
type Options struct {
	Capacities            Capacities
	Delay                 collect.Delay
	StartOffsetEnabled    bool
	StopWhenFilledBuffer  bool
	StaleOffsetNanos      int64
	StaleDetectionEnabled bool

	OnSyncedMeasurements func(s *Syncer, sm *imu.SyncedMeasurement)
	OnAccuracyChanged    func(s *Syncer, kind imu.SensorKind, accuracy imu.Accuracy)
	OnBufferFilled       func(s *Syncer, kind imu.SensorKind)
	OnStaleMeasurements  func(s *Syncer, triggered imu.SensorKind, stale []imu.Measurement)
}

func (o Options) config(slots []Slot) Config {
	return Config{
		Slots:                 slots,
		StopWhenFilledBuffer:  o.StopWhenFilledBuffer,
		StaleOffsetNanos:      o.StaleOffsetNanos,
		StaleDetectionEnabled: o.StaleDetectionEnabled,
		OnSyncedMeasurements:  o.OnSyncedMeasurements,
		OnAccuracyChanged:     o.OnAccuracyChanged,
		OnBufferFilled:        o.OnBufferFilled,
		OnStaleMeasurements:   o.OnStaleMeasurements,
	}
}

func (o Options) slot(kind imu.SensorKind, capacity int) Slot {
	return Slot{
		Kind:               kind,
		Required:           true,
		Capacity:           capacityOr(capacity),
		Delay:              o.Delay,
		StartOffsetEnabled: o.StartOffsetEnabled,
	}
}

// NewAttitudeAccelerometerSyncer builds the 2-way variant with attitude
// as the master kind.
func NewAttitudeAccelerometerSyncer(src collect.Source, opts Options) (*Syncer, error) {
	return NewSyncer(src, opts.config([]Slot{
		opts.slot(imu.KindAttitude, opts.Capacities.Attitude),
		opts.slot(imu.KindAccelerometer, opts.Capacities.Accelerometer),
	}))
}

// NewAttitudeAccelerometerGyroscopeSyncer builds the 3-way variant.
func NewAttitudeAccelerometerGyroscopeSyncer(src collect.Source, opts Options) (*Syncer, error) {
	return NewSyncer(src, opts.config([]Slot{
		opts.slot(imu.KindAttitude, opts.Capacities.Attitude),
		opts.slot(imu.KindAccelerometer, opts.Capacities.Accelerometer),
		opts.slot(imu.KindGyroscope, opts.Capacities.Gyroscope),
	}))
}

// NewAttitudeAccelerometerGravityGyroscopeSyncer builds the 4-way
// variant.
func NewAttitudeAccelerometerGravityGyroscopeSyncer(src collect.Source, opts Options) (*Syncer, error) {
	return NewSyncer(src, opts.config([]Slot{
		opts.slot(imu.KindAttitude, opts.Capacities.Attitude),
		opts.slot(imu.KindAccelerometer, opts.Capacities.Accelerometer),
		opts.slot(imu.KindGravity, opts.Capacities.Gravity),
		opts.slot(imu.KindGyroscope, opts.Capacities.Gyroscope),
	}))
}
