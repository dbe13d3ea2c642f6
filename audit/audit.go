// Package audit keeps the durable per-run record of every site collection:
// one JSON line per site per run, appended to a file per calendar day.
// Failure surfaces to the operator exclusively through this log and the run
// summary, so a record is written for every outcome.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Result is the outcome of collecting one site in one run. Immutable once
// appended.
type Result struct {
	RunID           string    `json:"run_id"`
	SiteID          string    `json:"site_id"`
	SiteName        string    `json:"site"`
	URL             string    `json:"url"`
	StartedAt       time.Time `json:"timestamp"`
	Status          string    `json:"status"` // success | error
	Collected       int       `json:"products_collected"`
	Inserted        int       `json:"products_inserted"`
	Errors          []string  `json:"errors"`
	DurationSeconds float64   `json:"duration_seconds"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"

	filePrefix = "scraping_"
	fileSuffix = ".jsonl"
	dateLayout = "20060102"

	// DefaultQueryLimit caps a Query when the caller passes limit <= 0.
	DefaultQueryLimit = 100
)

// Log is an append-only store of Results, one file per day under dir.
type Log struct {
	dir string
	mu  sync.Mutex
}

// NewLog creates a Log writing under dir. The directory is created on the
// first append.
func NewLog(dir string) *Log {
	return &Log{dir: dir}
}

// Append writes one result to the file of its start date.
func (l *Log) Append(r Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("audit: mkdir: %w", err)
	}

	name := filePrefix + r.StartedAt.Format(dateLayout) + fileSuffix
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

// Query returns results most-recent-first, up to limit. A date in YYYYMMDD
// form restricts the read to that day's file; empty reads all days, newest
// file first. A date with no file yields an empty slice.
func (l *Log) Query(date string, limit int) ([]Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var files []string
	if date != "" {
		path := filepath.Join(l.dir, filePrefix+date+fileSuffix)
		if _, err := os.Stat(path); err == nil {
			files = []string{path}
		}
	} else {
		matches, err := filepath.Glob(filepath.Join(l.dir, filePrefix+"*"+fileSuffix))
		if err != nil {
			return nil, fmt.Errorf("audit: glob: %w", err)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		files = matches
	}

	var results []Result
	for _, file := range files {
		day, err := readDay(file)
		if err != nil {
			return nil, err
		}
		// Lines are appended oldest-first; flip for most-recent-first.
		for i := len(day) - 1; i >= 0; i-- {
			results = append(results, day[i])
			if len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

func readDay(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	defer f.Close()

	var results []Result
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r Result
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			// A corrupt line is skipped, not fatal: the log must stay readable.
			continue
		}
		results = append(results, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan %s: %w", path, err)
	}
	return results, nil
}
