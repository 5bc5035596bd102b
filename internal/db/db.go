// Package db persists synced measurements to sqlite for offline
// analysis and replay. Recording is organised into sessions: one row per
// recording run, with every emitted tuple keyed to its session.
package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/inertial.report/internal/imu"
)

// DB wraps the sqlite handle with the recording schema.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the recording database at path.
func NewDB(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = sdb.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			source            TEXT,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			notes             TEXT
		);
		CREATE TABLE IF NOT EXISTS synced_measurements (
			session_id        TEXT,
			timestamp         BIGINT,
			att_timestamp     BIGINT,
			att_a             DOUBLE,
			att_b             DOUBLE,
			att_c             DOUBLE,
			att_d             DOUBLE,
			att_heading_acc   DOUBLE,
			acc_timestamp     BIGINT,
			acc_x             DOUBLE,
			acc_y             DOUBLE,
			acc_z             DOUBLE,
			gyr_timestamp     BIGINT,
			gyr_x             DOUBLE,
			gyr_y             DOUBLE,
			gyr_z             DOUBLE,
			grv_timestamp     BIGINT,
			grv_x             DOUBLE,
			grv_y             DOUBLE,
			grv_z             DOUBLE,
			recorded_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_synced_session_ts
			ON synced_measurements(session_id, timestamp);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{sdb}, nil
}

// BeginSession inserts a session row and returns its generated ID.
func (db *DB) BeginSession(source, notes string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, source, notes) VALUES (?, ?, ?)`,
		id, source, notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// RecordSyncedMeasurement appends one synced tuple to a session. Absent
// slots are stored as NULL.
func (db *DB) RecordSyncedMeasurement(sessionID string, sm *imu.SyncedMeasurement) error {
	var (
		attTS, accTS, gyrTS, grvTS         interface{}
		attA, attB, attC, attD, attHeading interface{}
		accX, accY, accZ                   interface{}
		gyrX, gyrY, gyrZ                   interface{}
		grvX, grvY, grvZ                   interface{}
	)
	if sm.HasAttitude {
		attTS = sm.Attitude.Timestamp
		attA, attB = sm.Attitude.Attitude.A, sm.Attitude.Attitude.B
		attC, attD = sm.Attitude.Attitude.C, sm.Attitude.Attitude.D
		attHeading = sm.Attitude.HeadingAccuracy
	}
	if sm.HasAccelerometer {
		accTS = sm.Accelerometer.Timestamp
		accX, accY, accZ = sm.Accelerometer.Value.X, sm.Accelerometer.Value.Y, sm.Accelerometer.Value.Z
	}
	if sm.HasGyroscope {
		gyrTS = sm.Gyroscope.Timestamp
		gyrX, gyrY, gyrZ = sm.Gyroscope.Value.X, sm.Gyroscope.Value.Y, sm.Gyroscope.Value.Z
	}
	if sm.HasGravity {
		grvTS = sm.Gravity.Timestamp
		grvX, grvY, grvZ = sm.Gravity.Value.X, sm.Gravity.Value.Y, sm.Gravity.Value.Z
	}

	_, err := db.Exec(`
		INSERT INTO synced_measurements (
			session_id, timestamp,
			att_timestamp, att_a, att_b, att_c, att_d, att_heading_acc,
			acc_timestamp, acc_x, acc_y, acc_z,
			gyr_timestamp, gyr_x, gyr_y, gyr_z,
			grv_timestamp, grv_x, grv_y, grv_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sm.Timestamp,
		attTS, attA, attB, attC, attD, attHeading,
		accTS, accX, accY, accZ,
		gyrTS, gyrX, gyrY, gyrZ,
		grvTS, grvX, grvY, grvZ,
	)
	if err != nil {
		return fmt.Errorf("failed to record synced measurement: %w", err)
	}
	return nil
}

// CountSyncedMeasurements returns the number of tuples recorded for a
// session.
func (db *DB) CountSyncedMeasurements(sessionID string) (int64, error) {
	var n int64
	err := db.QueryRow(
		`SELECT COUNT(*) FROM synced_measurements WHERE session_id = ?`,
		sessionID,
	).Scan(&n)
	return n, err
}

// SessionTimestampRange returns the oldest and newest tuple timestamps
// for a session, or ok=false when the session is empty.
func (db *DB) SessionTimestampRange(sessionID string) (oldest, newest int64, ok bool, err error) {
	var o, n sql.NullInt64
	err = db.QueryRow(
		`SELECT MIN(timestamp), MAX(timestamp) FROM synced_measurements WHERE session_id = ?`,
		sessionID,
	).Scan(&o, &n)
	if err != nil {
		return 0, 0, false, err
	}
	if !o.Valid || !n.Valid {
		return 0, 0, false, nil
	}
	return o.Int64, n.Int64, true, nil
}

// SyncedMeasurements returns the recorded tuples for a session in
// timestamp order, with absent slots left unset.
func (db *DB) SyncedMeasurements(sessionID string) ([]imu.SyncedMeasurement, error) {
	rows, err := db.Query(`
		SELECT timestamp,
			att_timestamp, att_a, att_b, att_c, att_d, att_heading_acc,
			acc_timestamp, acc_x, acc_y, acc_z,
			gyr_timestamp, gyr_x, gyr_y, gyr_z,
			grv_timestamp, grv_x, grv_y, grv_z
		FROM synced_measurements
		WHERE session_id = ?
		ORDER BY timestamp`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced measurements: %w", err)
	}
	defer rows.Close()

	var out []imu.SyncedMeasurement
	for rows.Next() {
		var (
			sm                                 imu.SyncedMeasurement
			attTS, accTS, gyrTS, grvTS         sql.NullInt64
			attA, attB, attC, attD, attHeading sql.NullFloat64
			accX, accY, accZ                   sql.NullFloat64
			gyrX, gyrY, gyrZ                   sql.NullFloat64
			grvX, grvY, grvZ                   sql.NullFloat64
		)
		err := rows.Scan(&sm.Timestamp,
			&attTS, &attA, &attB, &attC, &attD, &attHeading,
			&accTS, &accX, &accY, &accZ,
			&gyrTS, &gyrX, &gyrY, &gyrZ,
			&grvTS, &grvX, &grvY, &grvZ,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan synced measurement: %w", err)
		}
		if attTS.Valid {
			sm.Set(&imu.Measurement{
				Kind:            imu.KindAttitude,
				Timestamp:       attTS.Int64,
				Attitude:        imu.Quaternion{A: attA.Float64, B: attB.Float64, C: attC.Float64, D: attD.Float64},
				HeadingAccuracy: attHeading.Float64,
			})
		}
		if accTS.Valid {
			sm.Set(&imu.Measurement{
				Kind:      imu.KindAccelerometer,
				Timestamp: accTS.Int64,
				Value:     imu.Vector3{X: accX.Float64, Y: accY.Float64, Z: accZ.Float64},
			})
		}
		if gyrTS.Valid {
			sm.Set(&imu.Measurement{
				Kind:      imu.KindGyroscope,
				Timestamp: gyrTS.Int64,
				Value:     imu.Vector3{X: gyrX.Float64, Y: gyrY.Float64, Z: gyrZ.Float64},
			})
		}
		if grvTS.Valid {
			sm.Set(&imu.Measurement{
				Kind:      imu.KindGravity,
				Timestamp: grvTS.Int64,
				Value:     imu.Vector3{X: grvX.Float64, Y: grvY.Float64, Z: grvZ.Float64},
			})
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
