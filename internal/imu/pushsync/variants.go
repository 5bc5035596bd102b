package pushsync

import (
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
)

// Options configures the named variant constructors. The zero value
// gives an attitude-primary collector with default window and
// interpolators.
type Options struct {
	Primary              imu.SensorKind // zero value selects attitude
	Delay                collect.Delay
	WindowNanos          int64
	InterpolationEnabled bool

	OnSyncedMeasurements func(c *Collector, sm *imu.SyncedMeasurement)
	OnAccuracyChanged    map[imu.SensorKind]func(c *Collector, accuracy imu.Accuracy)
}

func (o Options) config(kinds []imu.SensorKind) Config {
	primary := o.Primary
	if primary == imu.KindUnknown {
		primary = imu.KindAttitude
	}
	slots := make([]Slot, 0, len(kinds))
	for _, k := range kinds {
		slots = append(slots, Slot{Kind: k, Delay: o.Delay})
	}
	return Config{
		Slots:                slots,
		Primary:              primary,
		WindowNanos:          o.WindowNanos,
		InterpolationEnabled: o.InterpolationEnabled,
		OnSyncedMeasurements: o.OnSyncedMeasurements,
		OnAccuracyChanged:    o.OnAccuracyChanged,
	}
}

// NewAttitudeAccelerometerCollector builds the 2-way push-based variant.
func NewAttitudeAccelerometerCollector(src collect.Source, opts Options) (*Collector, error) {
	return NewCollector(src, opts.config([]imu.SensorKind{
		imu.KindAttitude,
		imu.KindAccelerometer,
	}))
}

// NewAttitudeAccelerometerGyroscopeCollector builds the 3-way push-based
// variant.
func NewAttitudeAccelerometerGyroscopeCollector(src collect.Source, opts Options) (*Collector, error) {
	return NewCollector(src, opts.config([]imu.SensorKind{
		imu.KindAttitude,
		imu.KindAccelerometer,
		imu.KindGyroscope,
	}))
}
