package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/testutil"
)

// harness wires a 2- or 3-way syncer to a SimSource and records every
// emitted tuple.
type harness struct {
	src    *collect.SimSource
	syncer *Syncer
	tuples []*imu.SyncedMeasurement
	stale  [][]imu.Measurement
	filled []imu.SensorKind
}

func newHarness(t *testing.T, kinds []imu.SensorKind, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{src: collect.NewSimSource()}
	slots := make([]Slot, len(kinds))
	for i, k := range kinds {
		slots[i] = Slot{Kind: k, Required: true, Capacity: 16}
	}
	cfg := Config{
		Slots: slots,
		OnSyncedMeasurements: func(_ *Syncer, sm *imu.SyncedMeasurement) {
			h.tuples = append(h.tuples, sm.Clone())
		},
		OnStaleMeasurements: func(_ *Syncer, _ imu.SensorKind, stale []imu.Measurement) {
			h.stale = append(h.stale, append([]imu.Measurement(nil), stale...))
		},
		OnBufferFilled: func(_ *Syncer, kind imu.SensorKind) {
			h.filled = append(h.filled, kind)
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	sy, err := NewSyncer(h.src, cfg)
	require.NoError(t, err)
	h.syncer = sy
	return h
}

func TestNewSyncerValidation(t *testing.T) {
	t.Parallel()

	src := collect.NewSimSource()

	t.Run("too few slots", func(t *testing.T) {
		t.Parallel()
		_, err := NewSyncer(src, Config{Slots: []Slot{{Kind: imu.KindAttitude, Capacity: 4}}})
		assert.ErrorIs(t, err, ErrTooFewSlots)
	})

	t.Run("non-positive capacity", func(t *testing.T) {
		t.Parallel()
		for _, capacity := range []int{0, -5} {
			_, err := NewSyncer(src, Config{Slots: []Slot{
				{Kind: imu.KindAttitude, Capacity: 4},
				{Kind: imu.KindAccelerometer, Capacity: capacity},
			}})
			assert.ErrorIs(t, err, collect.ErrInvalidCapacity, "capacity %d", capacity)
		}
	})

	t.Run("duplicate kind", func(t *testing.T) {
		t.Parallel()
		_, err := NewSyncer(src, Config{Slots: []Slot{
			{Kind: imu.KindAttitude, Capacity: 4},
			{Kind: imu.KindAttitude, Capacity: 4},
		}})
		assert.ErrorIs(t, err, ErrDuplicateKind)
	})
}

func TestNewSyncerCopiesSlots(t *testing.T) {
	t.Parallel()

	slots := []Slot{
		{Kind: imu.KindAttitude, Capacity: 4},
		{Kind: imu.KindAccelerometer, Capacity: 4},
	}
	sy, err := NewSyncer(collect.NewSimSource(), Config{Slots: slots})
	require.NoError(t, err)

	// The master slot is forced required on the syncer's own copy, not
	// through the caller's backing array.
	assert.True(t, sy.slots[0].slot.Required)
	assert.False(t, slots[0].Required)
}

func TestSyncerStartWhileRunning(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.syncer.Start(0)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.False(t, ok)
	assert.True(t, h.syncer.Running())
}

func TestSyncerPartialStartLeavesStartedCollectors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	h.src.FailRegistration(imu.KindAccelerometer, true)

	ok, err := h.syncer.Start(500)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.syncer.Running())
	// The start timestamp is recorded even though the start failed.
	assert.Equal(t, int64(500), h.syncer.StartTimestamp())
	// The master collector registered before the failure and is not
	// rolled back.
	assert.Equal(t, 1, h.src.RegistrationCount(imu.KindAttitude))
	assert.Equal(t, 0, h.src.RegistrationCount(imu.KindAccelerometer))

	// Stop unwinds the partial registration; a retry then succeeds.
	h.syncer.Stop()
	assert.Equal(t, 0, h.src.RegistrationCount(imu.KindAttitude))

	h.src.FailRegistration(imu.KindAccelerometer, false)
	ok, err = h.syncer.Start(600)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncerPairsSecondaryArrivingFirst(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 999, 1, 2, 3))
	assert.Empty(t, h.tuples, "no emission before the first master measurement")

	h.src.Emit(testutil.AttitudeEvent(1000))

	require.Len(t, h.tuples, 1)
	sm := h.tuples[0]
	assert.Equal(t, int64(1000), sm.Timestamp)
	require.True(t, sm.HasAttitude)
	assert.Equal(t, int64(1000), sm.Attitude.Timestamp)
	require.True(t, sm.HasAccelerometer)
	assert.Equal(t, int64(999), sm.Accelerometer.Timestamp)
	assert.Equal(t, imu.Vector3{X: 1, Y: 2, Z: 3}, sm.Accelerometer.Value)
}

func TestSyncerMasterTimestampGovernsTuples(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer, imu.KindGyroscope}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, imu.KindAttitude, h.syncer.MasterKind())

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 95, 1, 0, 0))
	h.src.Emit(testutil.TriadEvent(imu.KindGyroscope, 97, 2, 0, 0))
	h.src.Emit(testutil.AttitudeEvent(100))
	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 195, 3, 0, 0))
	h.src.Emit(testutil.TriadEvent(imu.KindGyroscope, 198, 4, 0, 0))
	h.src.Emit(testutil.AttitudeEvent(200))

	require.Len(t, h.tuples, 2)
	assert.Equal(t, int64(100), h.tuples[0].Timestamp)
	assert.Equal(t, int64(200), h.tuples[1].Timestamp)
	// Slot timestamps stay the raw sensor timestamps.
	assert.Equal(t, int64(95), h.tuples[0].Accelerometer.Timestamp)
	assert.Equal(t, int64(198), h.tuples[1].Gyroscope.Timestamp)

	mr, ok2 := h.syncer.MostRecentTimestamp()
	require.True(t, ok2)
	assert.Equal(t, int64(200), mr)
	oldest, ok2 := h.syncer.OldestTimestamp()
	require.True(t, ok2)
	assert.Equal(t, int64(100), oldest)
	assert.Equal(t, uint64(2), h.syncer.NumberOfProcessedMeasurements())
}

func TestSyncerNewestMatchWins(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 90, 1, 0, 0))
	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 95, 2, 0, 0))
	h.src.Emit(testutil.AttitudeEvent(100))

	require.Len(t, h.tuples, 1)
	assert.Equal(t, int64(95), h.tuples[0].Accelerometer.Timestamp)
	assert.Equal(t, 2.0, h.tuples[0].Accelerometer.Value.X)
}

func TestSyncerCarriesForwardLastContribution(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 100, 7, 0, 0))
	h.src.Emit(testutil.AttitudeEvent(110))
	h.src.Emit(testutil.AttitudeEvent(120)) // no new accelerometer data

	require.Len(t, h.tuples, 2)
	assert.Equal(t, int64(120), h.tuples[1].Timestamp)
	require.True(t, h.tuples[1].HasAccelerometer)
	assert.Equal(t, int64(100), h.tuples[1].Accelerometer.Timestamp)
	assert.Equal(t, 7.0, h.tuples[1].Accelerometer.Value.X)
}

func TestSyncerSkipsEmissionUntilRequiredSlotSeen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.Emit(testutil.AttitudeEvent(100))
	h.src.Emit(testutil.AttitudeEvent(200))
	assert.Empty(t, h.tuples)
	// The passes still count as processed.
	assert.Equal(t, uint64(2), h.syncer.NumberOfProcessedMeasurements())

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 250, 1, 0, 0))
	h.src.Emit(testutil.AttitudeEvent(300))
	require.Len(t, h.tuples, 1)
	assert.Equal(t, int64(300), h.tuples[0].Timestamp)
}

func TestSyncerOptionalSlotDoesNotBlockEmission(t *testing.T) {
	t.Parallel()

	src := collect.NewSimSource()
	var tuples []*imu.SyncedMeasurement
	sy, err := NewSyncer(src, Config{
		Slots: []Slot{
			{Kind: imu.KindAttitude, Capacity: 8},
			{Kind: imu.KindAccelerometer, Required: true, Capacity: 8},
			{Kind: imu.KindGyroscope, Required: false, Capacity: 8},
		},
		OnSyncedMeasurements: func(_ *Syncer, sm *imu.SyncedMeasurement) {
			tuples = append(tuples, sm.Clone())
		},
	})
	require.NoError(t, err)
	ok, err := sy.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 95, 1, 0, 0))
	src.Emit(testutil.AttitudeEvent(100))

	require.Len(t, tuples, 1)
	assert.False(t, tuples[0].HasGyroscope)
	assert.True(t, tuples[0].HasAccelerometer)
}

func TestSyncerStaleSweep(t *testing.T) {
	t.Parallel()

	// A stale entry needs a master measurement batch whose span exceeds
	// the offset: the entry is too new for the first pass and too old for
	// the horizon. The batch is staged directly on the pending queues.
	stage := func(h *harness) {
		s := h.syncer
		master := s.state(imu.KindAttitude)
		acc := s.state(imu.KindAccelerometer)
		master.pending = append(master.pending, testutil.AttitudeAt(100), testutil.AttitudeAt(300))
		acc.pending = append(acc.pending, testutil.TriadAt(imu.KindAccelerometer, 90, 1, 0, 0),
			testutil.TriadAt(imu.KindAccelerometer, 150, 2, 0, 0))
		s.mostRecent = 300
		s.hasMostRecent = true
	}

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, func(cfg *Config) {
			cfg.StaleDetectionEnabled = true
			cfg.StaleOffsetNanos = 10
		})
		stage(h)
		h.syncer.drainMasterQueue(true)

		require.Len(t, h.tuples, 2)
		assert.Equal(t, int64(90), h.tuples[0].Accelerometer.Timestamp)
		// The entry at 150 was evicted by the sweep at horizon 290, so the
		// second tuple carries the 90 contribution forward.
		assert.Equal(t, int64(90), h.tuples[1].Accelerometer.Timestamp)

		require.Len(t, h.stale, 1)
		require.Len(t, h.stale[0], 1)
		assert.Equal(t, int64(150), h.stale[0][0].Timestamp)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, func(cfg *Config) {
			cfg.StaleOffsetNanos = 10
		})
		stage(h)
		h.syncer.drainMasterQueue(false)

		require.Len(t, h.tuples, 2)
		// Without the sweep the 150 entry survives to match the second
		// master measurement.
		assert.Equal(t, int64(150), h.tuples[1].Accelerometer.Timestamp)
		assert.Empty(t, h.stale)
	})
}

func TestSyncerStopWhenFilledBuffer(t *testing.T) {
	t.Parallel()

	newFillSyncer := func(t *testing.T, masterCap, secondaryCap int) (*collect.SimSource, *Syncer, *[]imu.SensorKind) {
		t.Helper()
		src := collect.NewSimSource()
		var filled []imu.SensorKind
		sy, err := NewSyncer(src, Config{
			Slots: []Slot{
				{Kind: imu.KindAttitude, Capacity: masterCap},
				{Kind: imu.KindAccelerometer, Capacity: secondaryCap},
			},
			StopWhenFilledBuffer: true,
			OnBufferFilled: func(_ *Syncer, kind imu.SensorKind) {
				filled = append(filled, kind)
			},
		})
		require.NoError(t, err)
		ok, err := sy.Start(0)
		require.NoError(t, err)
		require.True(t, ok)
		return src, sy, &filled
	}

	t.Run("master", func(t *testing.T) {
		t.Parallel()
		src, sy, filled := newFillSyncer(t, 1, 8)

		// A single-entry master buffer is full the moment the first event
		// lands, before the syncer gets to drain it; the whole syncer
		// stops synchronously.
		src.Emit(testutil.AttitudeEvent(100))
		assert.Equal(t, []imu.SensorKind{imu.KindAttitude}, *filled)
		assert.False(t, sy.Running())
		assert.Equal(t, 0, src.RegistrationCount(imu.KindAttitude))
		assert.Equal(t, 0, src.RegistrationCount(imu.KindAccelerometer))
		assert.Equal(t, uint64(0), sy.NumberOfProcessedMeasurements())
	})

	t.Run("secondary backlog", func(t *testing.T) {
		t.Parallel()
		src, sy, filled := newFillSyncer(t, 8, 2)

		// While the master is silent the secondary buffer is never
		// drained, so the backlog fills it mid-stream.
		src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 10, 1, 0, 0))
		require.True(t, sy.Running())
		src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 20, 2, 0, 0))
		assert.Equal(t, []imu.SensorKind{imu.KindAccelerometer}, *filled)
		assert.False(t, sy.Running())
		assert.Equal(t, 0, src.RegistrationCount(imu.KindAttitude))
		assert.Equal(t, 0, src.RegistrationCount(imu.KindAccelerometer))
	})
}

func TestSyncerStopClearsState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 95, 1, 0, 0))
	h.src.Emit(testutil.AttitudeEvent(100))
	require.Len(t, h.tuples, 1)

	h.syncer.Stop()
	assert.False(t, h.syncer.Running())
	assert.Equal(t, uint64(0), h.syncer.NumberOfProcessedMeasurements())
	_, hasMR := h.syncer.MostRecentTimestamp()
	assert.False(t, hasMR)
	_, hasOldest := h.syncer.OldestTimestamp()
	assert.False(t, hasOldest)

	// Stop is idempotent.
	h.syncer.Stop()

	// A restart begins from a clean slate: the pre-stop accelerometer
	// history is gone.
	ok, err = h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)
	h.src.Emit(testutil.AttitudeEvent(500))
	assert.Len(t, h.tuples, 1, "no emission without fresh accelerometer data")
}

func TestSyncerAccuracyForwarding(t *testing.T) {
	t.Parallel()

	type change struct {
		kind imu.SensorKind
		acc  imu.Accuracy
	}
	var changes []change
	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, func(cfg *Config) {
		cfg.OnAccuracyChanged = func(_ *Syncer, kind imu.SensorKind, a imu.Accuracy) {
			changes = append(changes, change{kind, a})
		}
	})
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.EmitAccuracy(imu.KindAccelerometer, imu.AccuracyLow)
	h.src.EmitAccuracy(imu.KindAttitude, imu.AccuracyHigh)

	assert.Equal(t, []change{
		{imu.KindAccelerometer, imu.AccuracyLow},
		{imu.KindAttitude, imu.AccuracyHigh},
	}, changes)
}

func TestSyncerUsageAndAvailability(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer}, nil)
	ok, err := h.syncer.Start(0)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.Emit(testutil.TriadEvent(imu.KindAccelerometer, 50, 1, 0, 0))
	assert.InDelta(t, 1.0/16.0, h.syncer.Usage(imu.KindAccelerometer), 1e-12)
	assert.Equal(t, 0.0, h.syncer.Usage(imu.KindGravity), "unmanaged kind")

	assert.True(t, h.syncer.SensorAvailable(imu.KindAttitude))
	assert.False(t, h.syncer.SensorAvailable(imu.KindGravity))
}

func TestVariantConstructors(t *testing.T) {
	t.Parallel()

	src := collect.NewSimSource()

	t.Run("two way", func(t *testing.T) {
		t.Parallel()
		sy, err := NewAttitudeAccelerometerSyncer(src, Options{})
		require.NoError(t, err)
		assert.Equal(t, imu.KindAttitude, sy.MasterKind())
		assert.Len(t, sy.slots, 2)
		assert.Equal(t, DefaultCapacity, sy.slots[1].slot.Capacity)
	})

	t.Run("three way", func(t *testing.T) {
		t.Parallel()
		sy, err := NewAttitudeAccelerometerGyroscopeSyncer(src, Options{
			Capacities: Capacities{Gyroscope: 32},
		})
		require.NoError(t, err)
		assert.Len(t, sy.slots, 3)
		assert.Equal(t, 32, sy.state(imu.KindGyroscope).slot.Capacity)
	})

	t.Run("four way", func(t *testing.T) {
		t.Parallel()
		sy, err := NewAttitudeAccelerometerGravityGyroscopeSyncer(src, Options{})
		require.NoError(t, err)
		assert.Len(t, sy.slots, 4)
		assert.NotNil(t, sy.state(imu.KindGravity))
	})

	t.Run("negative capacity rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewAttitudeAccelerometerSyncer(src, Options{
			Capacities: Capacities{Accelerometer: -1},
		})
		assert.ErrorIs(t, err, collect.ErrInvalidCapacity)
	})
}
