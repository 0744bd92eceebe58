// Package stats stores per-search timing rows for later comparison of worker counts.
//
// Row format (one per completed search, append only):
//
//	workerCount,elapsedSeconds
//	8,1.734521
package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

var (
	ErrNoPath       = errors.New("stats: path is empty")
	ErrMalformedRow = errors.New("stats: malformed row")
)

// Recorder is the telemetry sink the search engine calls once per completed search.
type Recorder interface {
	RecordStat(elapsedSeconds float64, workerCount int) error
}

// Row is one stored measurement.
type Row struct {
	WorkerCount    int
	ElapsedSeconds float64
}

// CSVSink appends rows to a CSV file.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink returns a sink writing to path. The file is created on first write.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the backing file path.
func (s *CSVSink) Path() string {
	return s.path
}

// RecordStat appends (workerCount, elapsedSeconds) and syncs the file.
func (s *CSVSink) RecordStat(elapsedSeconds float64, workerCount int) error {
	if s.path == "" {
		return ErrNoPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open stats file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := []string{
		strconv.Itoa(workerCount),
		strconv.FormatFloat(elapsedSeconds, 'f', -1, 64),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("failed to write stats row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush stats row: %w", err)
	}
	return f.Sync()
}

// Rows returns every stored row in file order. A missing file yields no rows.
func (s *CSVSink) Rows() ([]Row, error) {
	if s.path == "" {
		return nil, ErrNoPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open stats file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	var rows []Row
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Load returns elapsed seconds keyed by worker count; later rows replace earlier ones.
func (s *CSVSink) Load() (map[int]float64, error) {
	rows, err := s.Rows()
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(rows))
	for _, row := range rows {
		out[row.WorkerCount] = row.ElapsedSeconds
	}
	return out, nil
}

// SortedWorkerCounts returns the keys of a Load result in ascending order.
func SortedWorkerCounts(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func parseRow(record []string) (Row, error) {
	workers, err := strconv.Atoi(record[0])
	if err != nil {
		return Row{}, fmt.Errorf("worker count %q: %w", record[0], err)
	}
	seconds, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return Row{}, fmt.Errorf("elapsed seconds %q: %w", record[1], err)
	}
	return Row{WorkerCount: workers, ElapsedSeconds: seconds}, nil
}
