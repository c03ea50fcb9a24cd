package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/ndachunk/internal/chunker"
	"github.com/dgallion1/ndachunk/internal/store"
)

const testNDA = `MUTUAL NON-DISCLOSURE AGREEMENT

This Agreement is made between Acme Corp. (the "Disclosing Party") and Beta LLC (the "Receiving Party").

1. Confidential Information. The Receiving Party shall hold all Confidential Information in strict confidence and shall not disclose it to any third party without prior written consent.

2. Term. This Agreement remains in effect for three years from the Effective Date unless terminated earlier by either party on thirty days written notice.

3. Governing Law. This Agreement is governed by the laws of the State of Delaware without regard to its conflict of laws rules.
`

// flakySink fails the first failures saves with err.
type flakySink struct {
	*store.Memory
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (f *flakySink) SaveAnalysis(ctx context.Context, a store.Analysis) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.Memory.SaveAnalysis(ctx, a)
}

func newTestWorker(sink store.Sink) *Worker {
	w := NewWorker(chunker.NewLegalChunker(nil, nil), sink, nil, nil)
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func TestWorker_ProcessStoresChunks(t *testing.T) {
	mem := store.NewMemory()
	w := newTestWorker(mem)
	job := NewJob("doc-1", "nda.txt", "Acme NDA", []byte(testNDA))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Progress.Errors)
	require.NotZero(t, snap.Progress.TotalChunks)
	assert.Equal(t, snap.Progress.TotalChunks, snap.Progress.ChunksStored)
	assert.Equal(t, 3, snap.Progress.Sections)
	a, ok := mem.Get("doc-1")
	require.True(t, ok, "expected analysis in store")
	assert.Equal(t, "Acme NDA", a.Title)
	assert.Equal(t, "Acme Corp.", a.Structure.Parties.Disclosing)
	assert.Nil(t, job.FileData(), "upload should be released after parsing")
}

func TestWorker_NoSinkCompletes(t *testing.T) {
	w := newTestWorker(nil)
	job := NewJob("doc-2", "nda.md", "", []byte(testNDA))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	require.NotEmpty(t, snap.Result.Chunks)
	for i, c := range snap.Result.Chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := newTestWorker(store.NewMemory())
	job := NewJob("doc-3", "scan.pdf", "", []byte("%PDF"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "parsing", snap.Phase)
}

func TestWorker_EmptyDocumentFails(t *testing.T) {
	w := newTestWorker(store.NewMemory())
	job := NewJob("doc-4", "blank.txt", "", []byte("   \n\n  "))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "chunking", snap.Phase)
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	mem := store.NewMemory()
	w := newTestWorker(mem)
	w.Process(context.Background(), NewJob("first", "a.txt", "", []byte(testNDA)))

	dup := NewJob("second", "b.txt", "", []byte(testNDA))
	w.Process(context.Background(), dup)
	assert.Equal(t, StatusDupSkipped, dup.Snapshot().Status)

	// Re-analyzing the same document ID is not a duplicate.
	again := NewJob("first", "a.txt", "", []byte(testNDA))
	w.Process(context.Background(), again)
	assert.Equal(t, StatusCompleted, again.Snapshot().Status)

	forced := NewJob("third", "c.txt", "", []byte(testNDA))
	forced.Force = true
	w.Process(context.Background(), forced)
	assert.Equal(t, StatusCompleted, forced.Snapshot().Status)
}

func TestWorker_RetriesRetryableStoreErrors(t *testing.T) {
	sink := &flakySink{
		Memory:   store.NewMemory(),
		failures: 2,
		err:      &store.RetryableError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("busy")},
	}
	w := newTestWorker(sink)
	job := NewJob("doc-5", "nda.txt", "", []byte(testNDA))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Progress.Errors)
	assert.Equal(t, 3, snap.Progress.StoreAttempts)
}

func TestWorker_GivesUpAfterMaxRetries(t *testing.T) {
	sink := &flakySink{
		Memory:   store.NewMemory(),
		failures: 10,
		err:      &store.RetryableError{StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")},
	}
	w := newTestWorker(sink)
	job := NewJob("doc-6", "nda.txt", "", []byte(testNDA))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Equal(t, "storing", snap.Phase)
	assert.Equal(t, MaxRetries, snap.Progress.StoreAttempts)
	require.NotEmpty(t, snap.Progress.Errors)
	assert.Contains(t, snap.Progress.Errors[0], "slow down")
}

func TestWorker_PermanentStoreErrorNotRetried(t *testing.T) {
	sink := &flakySink{Memory: store.NewMemory(), failures: 10, err: errors.New("bad request")}
	w := newTestWorker(sink)
	job := NewJob("doc-7", "nda.txt", "", []byte(testNDA))
	w.Process(context.Background(), job)

	assert.Equal(t, 1, job.Snapshot().Progress.StoreAttempts)
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := min(time.Duration(1<<uint(attempt))*time.Second, 30*time.Second)
		assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
		assert.Less(t, d, base+base/2, "attempt %d", attempt)
	}
}

func TestOrchestrator_ProcessesSubmittedJobs(t *testing.T) {
	mem := store.NewMemory()
	o := NewOrchestrator(Config{WorkerCount: 2, MaxQueueSize: 4}, chunker.NewLegalChunker(nil, nil), mem, nil, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("orch-1", "nda.txt", "", []byte(testNDA))
	require.NoError(t, o.Submit(job))
	require.Same(t, job, o.GetJob(job.ID))

	require.Eventually(t, func() bool {
		return job.Snapshot().Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusCompleted, job.Snapshot().Status)
}

func TestOrchestrator_QueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(Config{WorkerCount: 1, MaxQueueSize: 1}, chunker.NewLegalChunker(nil, nil), nil, nil, nil)
	require.NoError(t, o.Submit(NewJob("a", "a.txt", "", []byte("x"))))
	second := NewJob("b", "b.txt", "", []byte("y"))
	require.Error(t, o.Submit(second))
	assert.Equal(t, StatusFailed, second.Snapshot().Status)
	assert.Equal(t, 1, o.QueueDepth())
}
