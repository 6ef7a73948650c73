package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func captureFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "memstream_*.csv"))
	require.NoError(t, err)
	sort.Strings(matches)
	return matches
}

func TestRecordRows(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 0)
	r.Record(0, "BOOT|version=1.0.0|mode=tcp")
	r.Record(10, "PONG")
	r.Record(110, "DATA|addr=0x40800000|hex=0b000000")
	r.Close()

	files := captureFiles(t, dir)
	require.Len(t, files, 1)

	rows := readCSV(t, files[0])
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"ts_ms", "record", "detail"}, rows[0])
	assert.Equal(t, []string{"0", "BOOT", "version=1.0.0|mode=tcp"}, rows[1])
	assert.Equal(t, []string{"10", "PONG", ""}, rows[2])
	assert.Equal(t, []string{"110", "DATA", "addr=0x40800000|hex=0b000000"}, rows[3])
}

func TestNoFileUntilFirstRecord(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 0)
	r.Flush()
	r.Close()
	assert.Empty(t, captureFiles(t, dir))
}

func TestRotationAfterRowLimit(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 3)
	for i := 0; i < 7; i++ {
		r.Record(uint64(i*10), "HEARTBEAT|ts=0|active=0")
	}
	r.Close()

	files := captureFiles(t, dir)
	require.Len(t, files, 3)

	// 3 + 3 + 1 data rows, one header each.
	total := 0
	for _, f := range files {
		rows := readCSV(t, f)
		assert.Equal(t, []string{"ts_ms", "record", "detail"}, rows[0])
		total += len(rows) - 1
	}
	assert.Equal(t, 7, total)
}

func TestFlushMakesRowsVisible(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 0)
	defer r.Close()

	r.Record(0, "READY")
	r.Flush()

	files := captureFiles(t, dir)
	require.Len(t, files, 1)
	rows := readCSV(t, files[0])
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"0", "READY", ""}, rows[1])
}

func TestRecordAfterClose(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 0)
	r.Record(0, "READY")
	r.Close()

	// A record after Close opens a fresh capture file.
	r.Record(10, "PONG")
	r.Close()
	assert.Len(t, captureFiles(t, dir), 2)
}
