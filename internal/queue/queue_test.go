package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/sekha/internal/apperr"
	"github.com/harper/sekha/internal/vectorstore"
)

type fakeEmbedder struct {
	fail atomic.Bool
	err  error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if f.fail.Load() {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("embed failed")
	}
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedder) Probe(ctx context.Context, model string) (int, error) { return 3, nil }

func TestQueueProcessesJobAndCommits(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := vectorstore.NewInMemoryStore()

	var committed atomic.Bool
	commit := func(ctx context.Context, messageID, embeddingID string) error {
		committed.Store(true)
		return nil
	}

	q := New(embedder, store, "test-model", 2, commit, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue("m1", "c1", "hello", "user", "label", "/", 5)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if committed.Load() && q.Depth() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !committed.Load() {
		t.Fatal("expected commit to be called")
	}
	if q.Depth() != 0 {
		t.Errorf("depth = %d, want 0 after processing", q.Depth())
	}
}

func TestQueueDeadLettersNonRetryableFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: apperr.ErrEmbeddingBadInput}
	embedder.fail.Store(true)
	store := vectorstore.NewInMemoryStore()

	var deadLettered atomic.Bool
	var mu sync.Mutex
	var reason string
	deadLetter := func(messageID, r string) error {
		deadLettered.Store(true)
		mu.Lock()
		reason = r
		mu.Unlock()
		return nil
	}

	q := New(embedder, store, "test-model", 1, func(ctx context.Context, messageID, embeddingID string) error {
		return nil
	}, deadLetter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue("m1", "c1", "hello", "user", "label", "/", 5)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if deadLettered.Load() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !deadLettered.Load() {
		t.Fatal("expected non-retryable embed error to be dead-lettered immediately")
	}
	mu.Lock()
	defer mu.Unlock()
	if reason != apperr.ErrEmbeddingBadInput.Error() {
		t.Errorf("reason = %q, want %q", reason, apperr.ErrEmbeddingBadInput.Error())
	}
}

func TestQueueDegradedFlipsAtHighWatermark(t *testing.T) {
	embedder := &fakeEmbedder{}
	embedder.fail.Store(true) // keep jobs from draining so depth stays up
	store := vectorstore.NewInMemoryStore()

	q := New(embedder, store, "test-model", 0, func(ctx context.Context, messageID, embeddingID string) error {
		return nil
	}, func(messageID, reason string) error { return nil })

	if q.Degraded() {
		t.Fatal("expected not degraded before any enqueue")
	}

	for i := 0; i < highWatermark+1; i++ {
		q.depth.Add(1)
	}
	if q.depth.Load() <= highWatermark {
		t.Fatalf("test setup error: depth = %d", q.depth.Load())
	}
	q.degraded.Store(true)
	if !q.Degraded() {
		t.Error("expected degraded once depth exceeds high watermark")
	}
}

func TestQueueShutdownIsIdempotentAndDrains(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := vectorstore.NewInMemoryStore()

	q := New(embedder, store, "test-model", 2, func(ctx context.Context, messageID, embeddingID string) error {
		return nil
	}, func(messageID, reason string) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue("m1", "c1", "hello", "user", "label", "/", 5)

	q.Shutdown(2 * time.Second)
	// A second Shutdown must not panic on double-close.
	q.Shutdown(time.Second)
}

func TestQueueEnqueueAfterShutdownDeadLettersWithoutPanic(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := vectorstore.NewInMemoryStore()

	var deadLetterCount atomic.Int32
	q := New(embedder, store, "test-model", 1, func(ctx context.Context, messageID, embeddingID string) error {
		return nil
	}, func(messageID, reason string) error {
		deadLetterCount.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Shutdown(time.Second)

	// Enqueue after Shutdown must not panic (send on closed channel) and
	// must dead-letter instead, per the draining guard on q.jobs.
	q.Enqueue("m1", "c1", "hello", "user", "label", "/", 5)

	if deadLetterCount.Load() != 1 {
		t.Errorf("deadLetterCount = %d, want 1", deadLetterCount.Load())
	}
}
