package job

import (
	"sync"
	"time"

	"scribe/internal/media"
)

// Outcome describes one finished job attempt.
type Outcome struct {
	ID       string
	File     media.File
	Name     string
	Attempt  int
	Started  time.Time
	Duration time.Duration
	Success  bool
	// Err is nil on success and wraps one of the package sentinels otherwise.
	Err      error
	Segments int
	// MediaDuration is reported by the prober; zero when probing is off.
	MediaDuration time.Duration

	TranscriptPath string
	SubtitlePath   string
	ArchivePath    string
	QuarantinePath string
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Processed int
	Failed    int
	Outcomes  []Outcome
}

// Total returns the number of attempts recorded.
func (s Summary) Total() int {
	return s.Processed + s.Failed
}

// Results collects outcomes from concurrent jobs.
type Results struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// Add appends an outcome.
func (r *Results) Add(o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

// Summary returns a snapshot of the collected outcomes.
func (r *Results) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Outcomes: make([]Outcome, len(r.outcomes))}
	copy(s.Outcomes, r.outcomes)
	for _, o := range r.outcomes {
		if o.Success {
			s.Processed++
		} else {
			s.Failed++
		}
	}
	return s
}

// Unresolved returns the final attempt of every file whose last attempt
// failed, in the order those attempts finished.
func (s Summary) Unresolved() []Outcome {
	last := make(map[string]int, len(s.Outcomes))
	for i, o := range s.Outcomes {
		last[o.File.Path] = i
	}
	var failed []Outcome
	for i, o := range s.Outcomes {
		if last[o.File.Path] == i && !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}
