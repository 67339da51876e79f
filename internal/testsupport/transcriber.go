package testsupport

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"scribe/internal/transcriber"
)

// FakeTranscriber is a scripted transcriber.Transcriber. Responses are keyed
// by file base name; unknown names get a default two-segment result.
type FakeTranscriber struct {
	// Delay is applied to every call before responding.
	Delay time.Duration

	mu        sync.Mutex
	results   map[string]transcriber.Result
	errs      map[string][]error
	calls     []string
	active    atomic.Int32
	peak      atomic.Int32
	closed    atomic.Bool
	closeHits atomic.Int32
}

// NewFakeTranscriber returns an empty scripted transcriber.
func NewFakeTranscriber() *FakeTranscriber {
	return &FakeTranscriber{
		results: make(map[string]transcriber.Result),
		errs:    make(map[string][]error),
	}
}

// SetResult scripts the result returned for files named name.
func (f *FakeTranscriber) SetResult(name string, result transcriber.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = result
}

// FailWith queues errors returned, one per call, for files named name.
// Once the queue is drained calls succeed.
func (f *FakeTranscriber) FailWith(name string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = append(f.errs[name], errs...)
}

// Transcribe implements transcriber.Transcriber.
func (f *FakeTranscriber) Transcribe(ctx context.Context, path string) (transcriber.Result, error) {
	if f.closed.Load() {
		return transcriber.Result{}, transcriber.ErrClosed
	}
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	name := filepath.Base(path)
	f.mu.Lock()
	f.calls = append(f.calls, path)
	var scripted error
	if queue := f.errs[name]; len(queue) > 0 {
		scripted = queue[0]
		f.errs[name] = queue[1:]
	}
	result, ok := f.results[name]
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return transcriber.Result{}, ctx.Err()
		}
	}
	if scripted != nil {
		return transcriber.Result{}, scripted
	}
	if !ok {
		result = transcriber.Result{
			Text: "hello world",
			Segments: []transcriber.Segment{
				{StartMS: 0, EndMS: 1500, Text: "hello"},
				{StartMS: 1500, EndMS: 3000, Text: "world"},
			},
		}
	}
	return result, nil
}

// Name implements transcriber.Transcriber.
func (f *FakeTranscriber) Name() string { return "fake" }

// Close implements transcriber.Transcriber.
func (f *FakeTranscriber) Close() error {
	f.closeHits.Add(1)
	if f.closed.Swap(true) {
		return errors.New("fake transcriber closed twice")
	}
	return nil
}

// Calls returns the paths passed to Transcribe, in call order.
func (f *FakeTranscriber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Peak returns the highest number of concurrent Transcribe calls observed.
func (f *FakeTranscriber) Peak() int {
	return int(f.peak.Load())
}

// CloseCount returns how many times Close was called.
func (f *FakeTranscriber) CloseCount() int {
	return int(f.closeHits.Load())
}
