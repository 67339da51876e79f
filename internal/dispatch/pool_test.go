package dispatch_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/dispatch"
	"scribe/internal/media"
)

func file(name string) media.File {
	return media.File{Path: "/in/" + name, Name: name, Rel: name}
}

func TestPoolNeverExceedsWorkerCount(t *testing.T) {
	const workers = 3
	var active, peak atomic.Int32
	handler := func(ctx context.Context, f media.File) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
	}

	pool := dispatch.New(workers, handler, nil)
	pool.Start(context.Background())
	for i := 0; i < 20; i++ {
		if !pool.Submit(file(fmt.Sprintf("%02d.wav", i))) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	pool.Close()
	pool.Wait()

	if got := peak.Load(); got > workers {
		t.Fatalf("observed %d concurrent handlers, limit %d", got, workers)
	}
	stats := pool.Stats()
	if stats.Completed != 20 || stats.Submitted != 20 || stats.Queued != 0 || stats.Active != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Peak > workers || stats.Peak < 1 {
		t.Fatalf("unexpected peak %d", stats.Peak)
	}
}

func TestPoolDefaultsWorkers(t *testing.T) {
	pool := dispatch.New(0, func(context.Context, media.File) {}, nil)
	if got := pool.Stats().Workers; got != dispatch.DefaultWorkers {
		t.Fatalf("expected %d workers, got %d", dispatch.DefaultWorkers, got)
	}
	pool.Close()
	pool.Wait()
}

func TestSubmitRejectsDuplicatesWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var runs atomic.Int32
	pool := dispatch.New(2, func(ctx context.Context, f media.File) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}, nil)
	pool.Start(context.Background())

	if !pool.Submit(file("a.wav")) {
		t.Fatal("first submit rejected")
	}
	<-started
	if pool.Submit(file("a.wav")) {
		t.Fatal("duplicate submit accepted while in flight")
	}
	close(release)
	pool.Close()
	pool.Wait()

	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
	if pool.Stats().Rejected != 1 {
		t.Fatalf("expected one rejection, got %+v", pool.Stats())
	}
}

func TestSubmitAcceptsPathAgainAfterCompletion(t *testing.T) {
	done := make(chan struct{}, 2)
	pool := dispatch.New(1, func(ctx context.Context, f media.File) { done <- struct{}{} }, nil)
	pool.Start(context.Background())

	pool.Submit(file("a.wav"))
	<-done
	deadline := time.Now().Add(time.Second)
	for pool.Stats().Completed < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !pool.Submit(file("a.wav")) {
		t.Fatal("expected resubmit accepted after completion")
	}
	pool.Close()
	pool.Wait()
	if pool.Stats().Completed != 2 {
		t.Fatalf("expected 2 completions, got %+v", pool.Stats())
	}
}

func TestCloseDrainsQueueAndRejectsNewWork(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	pool := dispatch.New(1, func(ctx context.Context, f media.File) {
		mu.Lock()
		seen = append(seen, f.Name)
		mu.Unlock()
	}, nil)

	for _, name := range []string{"a.wav", "b.wav", "c.wav"} {
		pool.Submit(file(name))
	}
	pool.Close()
	if pool.Submit(file("late.wav")) {
		t.Fatal("submit accepted after Close")
	}
	pool.Wait()

	if len(seen) != 3 {
		t.Fatalf("expected queued files drained, got %v", seen)
	}
}

func TestPanickingHandlerDoesNotKillWorker(t *testing.T) {
	var ok atomic.Int32
	pool := dispatch.New(1, func(ctx context.Context, f media.File) {
		if f.Name == "bad.wav" {
			panic("decoder exploded")
		}
		ok.Add(1)
	}, nil)
	pool.Start(context.Background())
	pool.Submit(file("bad.wav"))
	pool.Submit(file("good.wav"))
	pool.Close()
	pool.Wait()

	if ok.Load() != 1 {
		t.Fatalf("expected the good file processed after a panic, got %d", ok.Load())
	}
	stats := pool.Stats()
	if stats.Panics != 1 || stats.Completed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHandlersReceiveStartContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run-1")
	var got atomic.Value
	pool := dispatch.New(1, func(ctx context.Context, f media.File) {
		got.Store(ctx.Value(key{}))
	}, nil)
	pool.Start(ctx)
	pool.Submit(file("a.wav"))
	pool.Close()
	pool.Wait()
	if got.Load() != "run-1" {
		t.Fatalf("handler did not receive start context, got %v", got.Load())
	}
}
