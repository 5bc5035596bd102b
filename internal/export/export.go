// Package export writes recorded sessions out of the sqlite store for
// offline analysis. The writers go through fsutil.FileSystem and every
// destination is validated before anything is created.
package export

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/banshee-data/inertial.report/internal/db"
	"github.com/banshee-data/inertial.report/internal/fsutil"
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/security"
)

var csvHeader = []string{
	"timestamp",
	"att_timestamp", "att_a", "att_b", "att_c", "att_d", "att_heading_acc",
	"acc_timestamp", "acc_x", "acc_y", "acc_z",
	"gyr_timestamp", "gyr_x", "gyr_y", "gyr_z",
	"grv_timestamp", "grv_x", "grv_y", "grv_z",
}

// SessionExporter renders recorded sessions to CSV.
type SessionExporter struct {
	db *db.DB
	fs fsutil.FileSystem
}

// NewSessionExporter binds an exporter to a recording database. A nil
// filesystem selects the real one.
func NewSessionExporter(database *db.DB, filesystem fsutil.FileSystem) *SessionExporter {
	if filesystem == nil {
		filesystem = fsutil.OSFileSystem{}
	}
	return &SessionExporter{db: database, fs: filesystem}
}

// DefaultFilename returns the canonical export filename for a session.
func DefaultFilename(sessionID string) string {
	return "session_" + security.SanitizeFilename(sessionID) + ".csv"
}

// WriteCSV writes every tuple of the session to path and returns the
// number of rows written. Empty cells mark absent slots.
func (e *SessionExporter) WriteCSV(sessionID, path string) (int, error) {
	if err := security.ValidateExportPath(path); err != nil {
		return 0, err
	}
	tuples, err := e.db.SyncedMeasurements(sessionID)
	if err != nil {
		return 0, err
	}

	f, err := e.fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return 0, err
	}
	for i := range tuples {
		if err := w.Write(tupleRecord(&tuples[i])); err != nil {
			f.Close()
			return 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return len(tuples), nil
}

func tupleRecord(sm *imu.SyncedMeasurement) []string {
	rec := make([]string, 0, len(csvHeader))
	rec = append(rec, strconv.FormatInt(sm.Timestamp, 10))
	if sm.HasAttitude {
		m := &sm.Attitude
		rec = append(rec, strconv.FormatInt(m.Timestamp, 10),
			formatFloat(m.Attitude.A), formatFloat(m.Attitude.B),
			formatFloat(m.Attitude.C), formatFloat(m.Attitude.D),
			formatFloat(m.HeadingAccuracy))
	} else {
		rec = append(rec, "", "", "", "", "", "")
	}
	for _, slot := range []struct {
		m   *imu.Measurement
		has bool
	}{
		{&sm.Accelerometer, sm.HasAccelerometer},
		{&sm.Gyroscope, sm.HasGyroscope},
		{&sm.Gravity, sm.HasGravity},
	} {
		if slot.has {
			rec = append(rec, strconv.FormatInt(slot.m.Timestamp, 10),
				formatFloat(slot.m.Value.X), formatFloat(slot.m.Value.Y), formatFloat(slot.m.Value.Z))
		} else {
			rec = append(rec, "", "", "", "")
		}
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
