package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/ndachunk/internal/chunker"
	"github.com/dgallion1/ndachunk/internal/doctree"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	assert.Equal(t, h1, ContentHashHex(data))
	// SHA-256 of "hello world" is well-known.
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", h1)
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	assert.NotEqual(t, ContentHashHex([]byte("aaa")), ContentHashHex([]byte("bbb")))
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	// SHA-256 of empty input is well-known.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHashHex([]byte{}))
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("doc-1", "nda.txt", "", []byte("x"))
	require.Equal(t, StatusQueued, job.Status)

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing document"},
		{StatusChunking, "detecting structure"},
		{StatusStoring, "storing results"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		assert.Equal(t, tr.status, job.Status)
		assert.Equal(t, tr.phase, job.Phase)
		assert.True(t, job.UpdatedAt.After(before), "UpdatedAt should advance after SetStatus(%q)", tr.status)
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusFailed, StatusDupSkipped} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []JobStatus{StatusQueued, StatusParsing, StatusChunking, StatusStoring} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestNewJob_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewJob("d", "f.txt", "", nil).ID
		require.False(t, seen[id], "duplicate job id %q", id)
		seen[id] = true
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("parse failed")
	job.AddError("store failed")

	snap := job.Snapshot()
	require.Len(t, snap.Progress.Errors, 2)
	assert.Equal(t, "parse failed", snap.Progress.Errors[0])
}

func TestJob_SetResult(t *testing.T) {
	job := &Job{ID: "result-test", UpdatedAt: time.Now()}
	job.SetResult(chunker.Result{
		Chunks: []doctree.LegalChunk{{Index: 0}, {Index: 1}},
		Structure: doctree.DocumentStructure{
			Sections: []doctree.PositionedSection{{Title: "1. Term"}},
			Source:   doctree.SourceLLM,
		},
		Rechunked: true,
	})

	snap := job.Snapshot()
	assert.Equal(t, 2, snap.Progress.TotalChunks)
	assert.Equal(t, 1, snap.Progress.Sections)
	assert.Equal(t, doctree.SourceLLM, snap.Progress.StructureSource)
	assert.True(t, snap.Progress.Rechunked)
	// The result is only exposed once the job completed.
	assert.Nil(t, snap.Result)
	job.SetStatus(StatusCompleted, "done")
	assert.NotNil(t, job.Snapshot().Result)
}

func TestJob_StoreProgress(t *testing.T) {
	job := &Job{ID: "store-test", UpdatedAt: time.Now()}
	job.IncrStoreAttempts()
	job.IncrStoreAttempts()
	job.SetChunksStored(7)

	snap := job.Snapshot()
	assert.Equal(t, 2, snap.Progress.StoreAttempts)
	assert.Equal(t, 7, snap.Progress.ChunksStored)
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	assert.Equal(t, data, job.FileData())
	job.releaseFileData()
	assert.Nil(t, job.FileData())
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	assert.NotNil(t, snap.Progress.Errors)
	assert.Empty(t, snap.Progress.Errors)
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)
	assert.Equal(t, 1, store.Len())

	got := store.Get("store-1")
	require.NotNil(t, got)
	assert.Equal(t, "store-1", got.ID)
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	assert.Nil(t, store.Get("nonexistent"))
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	assert.Nil(t, store.Get("old"), "expired job should be cleaned up")
	assert.NotNil(t, store.Get("new"), "fresh job should survive cleanup")
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	assert.NotPanics(t, store.Cleanup)
}
