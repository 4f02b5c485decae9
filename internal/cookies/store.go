// Package cookies observes the health of an externally refreshed
// Netscape-format cookie jar. It never mutates the jar; a separate process
// owns refreshing it.
package cookies

import (
	"bufio"
	"os"
	"strings"
	"time"
)

type Status string

const (
	StatusFresh    Status = "fresh"
	StatusStale    Status = "stale"
	StatusCritical Status = "critical"
	StatusInvalid  Status = "invalid"
	StatusMissing  Status = "missing"
	StatusError    Status = "error"
)

const (
	MinEntries        = 5
	StaleThreshold    = 72 * time.Hour
	CriticalThreshold = 168 * time.Hour
)

type Snapshot struct {
	Present    bool     `json:"present"`
	AgeHours   *float64 `json:"age_hours,omitempty"`
	EntryCount int      `json:"entry_count"`
	Status     Status   `json:"status"`
}

type Store struct {
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path), now: time.Now}
}

// Path returns the jar location for callers that pass it to subprocesses.
// It must never appear in user-visible output.
func (s *Store) Path() string {
	return s.path
}

// Snapshot classifies the jar. A missing jar is a normal runtime condition
// (it degrades tier-1 availability) and yields StatusMissing, not an error.
func (s *Store) Snapshot() Snapshot {
	if s.path == "" {
		return Snapshot{Status: StatusMissing}
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{Status: StatusMissing}
		}
		return Snapshot{Status: StatusError}
	}

	count, err := countEntries(s.path)
	if err != nil {
		return Snapshot{Present: true, Status: StatusError}
	}

	age := s.now().Sub(info.ModTime())
	ageHours := age.Hours()
	snap := Snapshot{Present: true, AgeHours: &ageHours, EntryCount: count}

	switch {
	case count < MinEntries:
		snap.Status = StatusInvalid
	case age >= CriticalThreshold:
		snap.Status = StatusCritical
	case age > StaleThreshold:
		snap.Status = StatusStale
	default:
		snap.Status = StatusFresh
	}
	return snap
}

// countEntries counts structural cookie lines: non-empty, non-comment,
// tab-delimited.
func countEntries(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(scanner.Text(), "\t") {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
