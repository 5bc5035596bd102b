package collect

import (
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/units"
)

// CollectorConfig configures a BufferedCollector.
type CollectorConfig struct {
	Kind     imu.SensorKind
	Capacity int // ring buffer size, must be > 0
	Delay    Delay

	// StartOffsetEnabled records the offset between the requested start
	// timestamp and the first event timestamp, exposed via StartOffset.
	StartOffsetEnabled bool

	// OnMeasurement fires after each buffered measurement with the
	// measurement just stored and the current number of buffered entries.
	OnMeasurement func(c *BufferedCollector, latest imu.Measurement, buffered int)
	// OnBufferFilled fires when an appended measurement leaves the buffer
	// at capacity, before OnMeasurement is notified. While the buffer
	// stays pinned at capacity it fires for every further event.
	OnBufferFilled func(c *BufferedCollector)
	// OnAccuracyChanged forwards platform accuracy changes.
	OnAccuracyChanged func(c *BufferedCollector, accuracy imu.Accuracy)
}

// BufferedCollector buffers measurements of a single sensor kind in a
// bounded ring and hands them over in timestamp order when drained. It is
// the per-sensor building block of the multi-queue syncer: the syncer
// polls it with MeasurementsBefore / MeasurementsBeforePosition rather
// than consuming events directly.
//
// Not safe for concurrent use; all access must happen on the source's
// delivery goroutine or while delivery is quiesced.
type BufferedCollector struct {
	src Source
	cfg CollectorConfig

	running        bool
	startTimestamp int64
	startOffset    int64
	hasStartOffset bool

	buffer    []imu.Measurement
	position  int64 // absolute index of the next measurement to be appended
	processed uint64
}

// NewBufferedCollector validates the configuration and returns a stopped
// collector. A non-positive capacity fails with ErrInvalidCapacity.
func NewBufferedCollector(src Source, cfg CollectorConfig) (*BufferedCollector, error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &BufferedCollector{
		src:    src,
		cfg:    cfg,
		buffer: make([]imu.Measurement, 0, cfg.Capacity),
	}, nil
}

// Kind returns the sensor kind this collector buffers.
func (c *BufferedCollector) Kind() imu.SensorKind { return c.cfg.Kind }

// Running reports whether the collector is started.
func (c *BufferedCollector) Running() bool { return c.running }

// SensorAvailable reports whether the underlying source can deliver this
// collector's kind.
func (c *BufferedCollector) SensorAvailable() bool {
	return c.src != nil && c.src.SensorAvailable(c.cfg.Kind)
}

// Usage returns the buffer fill ratio in [0, 1].
func (c *BufferedCollector) Usage() float64 {
	return float64(len(c.buffer)) / float64(c.cfg.Capacity)
}

// StartOffset returns the offset between the requested start timestamp
// and the first event timestamp, when start-offset tracking is enabled
// and at least one event has arrived.
func (c *BufferedCollector) StartOffset() (int64, bool) {
	return c.startOffset, c.hasStartOffset
}

// StartTimestamp returns the timestamp recorded by the last Start call.
func (c *BufferedCollector) StartTimestamp() int64 { return c.startTimestamp }

// Position returns the absolute index one past the newest buffered
// measurement. The syncer uses it for positional draining of the master
// sensor.
func (c *BufferedCollector) Position() int64 { return c.position }

// NumberOfProcessedMeasurements returns the count of events buffered
// since the last Start.
func (c *BufferedCollector) NumberOfProcessedMeasurements() uint64 { return c.processed }

// Start clears the buffer, records the start timestamp (now when
// omitted) and registers with the source. Returns false when already
// running, when the sensor is unavailable, or when registration fails.
func (c *BufferedCollector) Start(startTimestamp ...int64) bool {
	if c.running {
		return false
	}
	if len(startTimestamp) > 0 {
		c.startTimestamp = startTimestamp[0]
	} else {
		c.startTimestamp = units.NowNanos()
	}
	c.buffer = c.buffer[:0]
	c.position = 0
	c.processed = 0
	c.startOffset = 0
	c.hasStartOffset = false
	if c.src == nil || !c.src.Register(c.cfg.Kind, c.cfg.Delay, c) {
		return false
	}
	c.running = true
	return true
}

// Stop unregisters from the source. Buffered measurements are retained
// until the next Start.
func (c *BufferedCollector) Stop() {
	if c.src != nil {
		c.src.Unregister(c)
	}
	c.running = false
}

// OnRawEvent implements Listener.
func (c *BufferedCollector) OnRawEvent(ev RawEvent) {
	if !c.running || ev.Kind != c.cfg.Kind {
		return
	}
	var m imu.Measurement
	if !MeasurementFromRaw(ev, &m) {
		return
	}
	if c.cfg.StartOffsetEnabled && !c.hasStartOffset {
		c.startOffset = m.Timestamp - c.startTimestamp
		c.hasStartOffset = true
	}
	if len(c.buffer) == c.cfg.Capacity {
		// Overwrite the oldest entry; the absolute position of the
		// remaining entries is preserved.
		copy(c.buffer, c.buffer[1:])
		c.buffer = c.buffer[:len(c.buffer)-1]
	}
	c.buffer = append(c.buffer, m)
	c.position++
	c.processed++
	if len(c.buffer) == c.cfg.Capacity && c.cfg.OnBufferFilled != nil {
		c.cfg.OnBufferFilled(c)
	}
	// The fill callback may have stopped the collector; a stopped
	// pipeline gets no measurement notification.
	if c.running && c.cfg.OnMeasurement != nil {
		c.cfg.OnMeasurement(c, m, len(c.buffer))
	}
}

// OnAccuracyChanged implements Listener.
func (c *BufferedCollector) OnAccuracyChanged(kind imu.SensorKind, accuracy imu.Accuracy) {
	if kind != c.cfg.Kind || !accuracy.Valid() {
		return
	}
	if c.cfg.OnAccuracyChanged != nil {
		c.cfg.OnAccuracyChanged(c, accuracy)
	}
}

// MeasurementsBefore removes and returns every buffered measurement with
// timestamp <= ts, oldest first.
func (c *BufferedCollector) MeasurementsBefore(ts int64) []imu.Measurement {
	n := 0
	for n < len(c.buffer) && c.buffer[n].Timestamp <= ts {
		n++
	}
	return c.take(n)
}

// MeasurementsBeforePosition removes and returns every buffered
// measurement with absolute position < pos, oldest first.
func (c *BufferedCollector) MeasurementsBeforePosition(pos int64) []imu.Measurement {
	base := c.position - int64(len(c.buffer))
	n := pos - base
	if n < 0 {
		n = 0
	}
	if n > int64(len(c.buffer)) {
		n = int64(len(c.buffer))
	}
	return c.take(int(n))
}

func (c *BufferedCollector) take(n int) []imu.Measurement {
	if n == 0 {
		return nil
	}
	out := make([]imu.Measurement, n)
	copy(out, c.buffer[:n])
	rest := copy(c.buffer, c.buffer[n:])
	c.buffer = c.buffer[:rest]
	return out
}
