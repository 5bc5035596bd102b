// imusyncd reads an IMU sensor stream from a serial port or UDP socket,
// synchronizes the per-sensor streams into time-aligned tuples and
// records them to sqlite.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/inertial.report/internal/config"
	"github.com/banshee-data/inertial.report/internal/db"
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/imu/collect"
	"github.com/banshee-data/inertial.report/internal/imu/netsource"
	"github.com/banshee-data/inertial.report/internal/imu/pushsync"
	"github.com/banshee-data/inertial.report/internal/imu/serialsource"
	"github.com/banshee-data/inertial.report/internal/imu/syncer"
	"github.com/banshee-data/inertial.report/internal/monitoring"
	"github.com/banshee-data/inertial.report/internal/version"
)

var (
	sourceKind = flag.String("source", "serial", "Sensor source: serial or udp")
	serialPort = flag.String("port", "/dev/ttyUSB0", "Serial port path (source=serial)")
	baudRate   = flag.Int("baud", serialsource.DefaultBaudRate, "Serial baud rate")
	listenAddr = flag.String("listen", ":9001", "UDP listen address (source=udp)")
	configPath = flag.String("config", "", "Tuning config JSON (built-in defaults when empty)")
	dbPath     = flag.String("db", "", "Recording database path (overrides config)")
	usePush    = flag.Bool("push", false, "Use the push-based collector instead of the buffered syncer")
	debugMode  = flag.Bool("debug", false, "Enable debug logging")
	notes      = flag.String("notes", "", "Free-form session notes")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// runnable is the read-loop surface shared by the serial and UDP sources.
type runnable interface {
	collect.Source
	Run(ctx context.Context) error
	Close() error
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println("imusyncd", version.String())
		return
	}
	monitoring.SetDebug(*debugMode)

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	path := cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	store, err := db.NewDB(path)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", path, err)
	}
	defer store.Close()

	sessionID, err := store.BeginSession(*sourceKind, *notes)
	if err != nil {
		log.Fatalf("failed to begin session: %v", err)
	}
	log.Printf("recording session %s to %s", sessionID, path)

	kinds := []imu.SensorKind{imu.KindAttitude, imu.KindAccelerometer, imu.KindGyroscope}
	var src runnable
	switch *sourceKind {
	case "serial":
		src, err = serialsource.Open(*serialPort, *baudRate, kinds...)
	case "udp":
		src, err = netsource.Listen(*listenAddr, kinds...)
	default:
		log.Fatalf("unknown source %q (want serial or udp)", *sourceKind)
	}
	if err != nil {
		log.Fatalf("failed to open %s source: %v", *sourceKind, err)
	}
	defer src.Close()

	record := func(sm *imu.SyncedMeasurement) {
		if err := store.RecordSyncedMeasurement(sessionID, sm); err != nil {
			log.Printf("failed to record measurement: %v", err)
		}
	}

	var stop func()
	if *usePush {
		coll, err := pushsync.NewAttitudeAccelerometerGyroscopeCollector(src, pushsync.Options{
			Primary:              imu.ParseSensorKind(cfg.GetPrimarySensor()),
			WindowNanos:          cfg.GetWindowNanos(),
			InterpolationEnabled: cfg.GetInterpolation(),
			OnSyncedMeasurements: func(_ *pushsync.Collector, sm *imu.SyncedMeasurement) {
				record(sm)
			},
		})
		if err != nil {
			log.Fatalf("failed to build push collector: %v", err)
		}
		if !coll.Start() {
			log.Fatalf("push collector failed to start")
		}
		stop = coll.Stop
	} else {
		sy, err := syncer.NewAttitudeAccelerometerGyroscopeSyncer(src, syncer.Options{
			Capacities: syncer.Capacities{
				Attitude:      cfg.GetAttitudeCapacity(),
				Accelerometer: cfg.GetAccelerometerCapacity(),
				Gyroscope:     cfg.GetGyroscopeCapacity(),
			},
			StaleOffsetNanos:      cfg.GetStaleOffsetNanos(),
			StaleDetectionEnabled: cfg.GetStaleDetection(),
			StopWhenFilledBuffer:  cfg.GetStopWhenFilledBuffer(),
			OnSyncedMeasurements: func(_ *syncer.Syncer, sm *imu.SyncedMeasurement) {
				record(sm)
			},
			OnBufferFilled: func(_ *syncer.Syncer, kind imu.SensorKind) {
				log.Printf("%s collector buffer filled", kind)
			},
			OnStaleMeasurements: func(_ *syncer.Syncer, kind imu.SensorKind, stale []imu.Measurement) {
				monitoring.Debugf("evicted %d stale measurements (trigger %s)", len(stale), kind)
			},
		})
		if err != nil {
			log.Fatalf("failed to build syncer: %v", err)
		}
		ok, err := sy.Start()
		if err != nil {
			log.Fatalf("failed to start syncer: %v", err)
		}
		if !ok {
			sy.Stop() // unwind any collectors that did start
			log.Fatalf("syncer failed to start")
		}
		stop = sy.Stop
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Printf("source stopped: %v", err)
		}
	}

	stop()
	cancel()
	src.Close()

	if n, err := store.CountSyncedMeasurements(sessionID); err == nil {
		fmt.Printf("session %s: %d synced measurements recorded\n", sessionID, n)
	}
}
