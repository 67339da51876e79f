package transcriber

import "context"

type serialized struct {
	inner Transcriber
	slot  chan struct{}
}

// Serialize wraps t so at most one Transcribe call runs at a time. Callers
// waiting for the slot give up when their context is cancelled.
func Serialize(t Transcriber) Transcriber {
	if s, ok := t.(*serialized); ok {
		return s
	}
	return &serialized{inner: t, slot: make(chan struct{}, 1)}
}

func (s *serialized) Transcribe(ctx context.Context, path string) (Result, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-s.slot }()
	return s.inner.Transcribe(ctx, path)
}

func (s *serialized) Name() string { return s.inner.Name() }

func (s *serialized) Close() error { return s.inner.Close() }
