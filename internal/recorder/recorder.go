package recorder

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Recorder captures emitted wire records to CSV files with automatic
// rotation. Rows are ts_ms,record,detail where record is the record
// kind (BOOT, DATA, HEARTBEAT, ...) and detail the rest of the line.
type Recorder struct {
	mu      sync.Mutex
	dir     string
	maxRows int

	file    *os.File
	writer  *csv.Writer
	rows    int
	fileSeq int
}

const defaultMaxRows = 100_000

var csvHeader = []string{"ts_ms", "record", "detail"}

// New creates a Recorder writing under dir, rotating after maxRows rows
// per file. maxRows <= 0 picks the default. No file is created until the
// first record arrives.
func New(dir string, maxRows int) *Recorder {
	if dir == "" {
		dir = "/var/log/memstreamd"
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Recorder{
		dir:     dir,
		maxRows: maxRows,
	}
}

// Record appends one wire record. Safe to call from the engine tap.
// Rows are buffered; Flush runs on the daemon's schedule and on Close.
func (r *Recorder) Record(nowMS uint64, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil || r.rows >= r.maxRows {
		if err := r.rotateFile(time.Now()); err != nil {
			log.Printf("[recorder] rotate failed: %v", err)
			return
		}
	}

	kind, detail := splitRecord(line)
	row := []string{strconv.FormatUint(nowMS, 10), kind, detail}
	if err := r.writer.Write(row); err != nil {
		log.Printf("[recorder] write failed: %v", err)
		return
	}
	r.rows++
}

// Flush pushes buffered rows to disk.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer != nil {
		r.writer.Flush()
	}
}

// Close flushes and closes the current capture file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	// Later rotations in the same process get a sequence suffix so a
	// burst of rotations inside one second cannot reuse a name.
	r.fileSeq++
	filename := fmt.Sprintf("memstream_%s.csv", now.Format("2006-01-02_150405"))
	if r.fileSeq > 1 {
		filename = fmt.Sprintf("memstream_%s_%d.csv", now.Format("2006-01-02_150405"), r.fileSeq)
	}
	path := filepath.Join(r.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	r.rows = 0

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}

	log.Printf("[recorder] opened %s", path)
	return nil
}

func (r *Recorder) closeFile() {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}

func splitRecord(line string) (kind, detail string) {
	if i := strings.IndexByte(line, '|'); i >= 0 {
		return line[:i], line[i+1:]
	}
	return line, ""
}
