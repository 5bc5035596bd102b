package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/inertial.report/internal/db"
	"github.com/banshee-data/inertial.report/internal/fsutil"
	"github.com/banshee-data/inertial.report/internal/imu"
	"github.com/banshee-data/inertial.report/internal/testutil"
)

func recordedSession(t *testing.T) (*db.DB, string) {
	t.Helper()
	rdb, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	id, err := rdb.BeginSession("test", "")
	require.NoError(t, err)

	for _, ts := range []int64{100, 200} {
		var sm imu.SyncedMeasurement
		sm.Timestamp = ts
		att := testutil.AttitudeAt(ts)
		sm.Set(&att)
		acc := testutil.TriadAt(imu.KindAccelerometer, ts-1, 0.5, 1.5, 9.8)
		sm.Set(&acc)
		require.NoError(t, rdb.RecordSyncedMeasurement(id, &sm))
	}
	return rdb, id
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	rdb, id := recordedSession(t)
	fs := fsutil.NewMemoryFileSystem()
	e := NewSessionExporter(rdb, fs)

	path := filepath.Join(t.TempDir(), "out.csv")
	n, err := e.WriteCSV(id, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,att_timestamp"))
	assert.True(t, strings.HasPrefix(lines[1], "100,100,1,"), "row: %s", lines[1])
	// The gyroscope and gravity slots were never recorded: empty cells.
	assert.True(t, strings.HasSuffix(lines[1], ",,,,,,,,"), "row: %s", lines[1])
	assert.Contains(t, lines[2], ",199,0.5,1.5,9.8,")
}

func TestWriteCSVEmptySession(t *testing.T) {
	t.Parallel()

	rdb, _ := recordedSession(t)
	fs := fsutil.NewMemoryFileSystem()
	e := NewSessionExporter(rdb, fs)

	path := filepath.Join(t.TempDir(), "empty.csv")
	n, err := e.WriteCSV("no-such-session", path)
	require.NoError(t, err)
	assert.Zero(t, n)

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 1, "header only")
}

func TestWriteCSVRejectsUnsafePath(t *testing.T) {
	t.Parallel()

	rdb, id := recordedSession(t)
	e := NewSessionExporter(rdb, fsutil.NewMemoryFileSystem())

	_, err := e.WriteCSV(id, "/etc/passwd.csv")
	assert.Error(t, err)
}

func TestDefaultFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "session_ab12-cd.csv", DefaultFilename("ab12-cd"))
	assert.Equal(t, "session_run_42.csv", DefaultFilename("run 42!"))
	assert.Equal(t, "session_unknown.csv", DefaultFilename(""))
}
