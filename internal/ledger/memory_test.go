package ledger

import (
	"context"
	"errors"
	"testing"

	"scriptcheck/internal/services"
	"scriptcheck/internal/verdict"
)

func newTestJob(t *testing.T) (*MemoryStore, string) {
	t.Helper()
	store := NewMemoryStore()
	id := "intv-123"
	if err := store.EnsureJob(context.Background(), id, Event(StatusQueued, "", "producer", "Video uploaded.")); err != nil {
		t.Fatalf("EnsureJob: %v", err)
	}
	return store, id
}

func TestEnsureJobIsIdempotent(t *testing.T) {
	store, id := newTestJob(t)
	ctx := context.Background()

	if _, err := store.Transition(ctx, id, StatusProcessing, StageVideoConversion,
		Event(StatusProcessing, StageVideoConversion, "segmenter", "started"), StatusQueued, StatusFailed); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := store.EnsureJob(ctx, id, Event(StatusQueued, "", "producer", "duplicate")); err != nil {
		t.Fatalf("EnsureJob repeat: %v", err)
	}

	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusProcessing {
		t.Fatalf("repeat EnsureJob reset status to %s", job.Status)
	}
	if len(job.History) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(job.History))
	}
}

func TestTransitionGuardsOnExpectedStatus(t *testing.T) {
	store, id := newTestJob(t)
	ctx := context.Background()

	job, err := store.Transition(ctx, id, StatusProcessing, StageVideoConversion,
		Event(StatusProcessing, StageVideoConversion, "segmenter", "started"), StatusQueued, StatusFailed)
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if job.ProcessingAttempts != 1 {
		t.Fatalf("attempts = %d, want 1", job.ProcessingAttempts)
	}

	// A concurrent consumer of a redelivered message must lose the race.
	_, err = store.Transition(ctx, id, StatusProcessing, StageVideoConversion,
		Event(StatusProcessing, StageVideoConversion, "segmenter", "duplicate"), StatusQueued, StatusFailed)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	job, _ = store.Get(ctx, id)
	if job.ProcessingAttempts != 1 {
		t.Fatalf("losing transition changed attempts to %d", job.ProcessingAttempts)
	}
}

func TestTransitionUnknownJob(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Transition(context.Background(), "ghost", StatusProcessing, StageVideoConversion,
		Event(StatusProcessing, StageVideoConversion, "segmenter", "started"), StatusQueued)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFailedIsReentrant(t *testing.T) {
	store, id := newTestJob(t)

	mustTransition(t, store, id, StatusProcessing, StageVideoConversion, StatusQueued, StatusFailed)
	mustTransition(t, store, id, StatusFailed, StageVideoConversion, StatusProcessing)
	job := mustTransition(t, store, id, StatusProcessing, StageVideoConversion, StatusQueued, StatusFailed)

	if job.ProcessingAttempts != 2 {
		t.Fatalf("attempts = %d after retry, want 2", job.ProcessingAttempts)
	}
}

func TestRecordResultsOnce(t *testing.T) {
	store, id := newTestJob(t)
	ctx := context.Background()

	mustTransition(t, store, id, StatusProcessing, StageVideoConversion, StatusQueued, StatusFailed)
	mustTransition(t, store, id, StatusAudioExtractedQueued, StageVideoConversion, StatusProcessing)
	mustTransition(t, store, id, StatusProcessing, StageMLInference, StatusAudioExtractedQueued, StatusFailed)

	update := ResultsUpdate{
		Result: verdict.InterviewResult{
			InterviewID:  id,
			FinalVerdict: verdict.FinalNonCheating,
		},
		EmbeddingsGCSPath: "embeddings/intv-123/",
		Event:             Event(StatusCompleted, StageMLInference, "analyzer", "done"),
	}
	if err := store.RecordResults(ctx, id, update); err != nil {
		t.Fatalf("RecordResults: %v", err)
	}

	// Results are immutable once written; reprocessing must be a no-op.
	update.Result.FinalVerdict = verdict.FinalCheating
	err := store.RecordResults(ctx, id, update)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict on second write, got %v", err)
	}

	job, _ := store.Get(ctx, id)
	if job.Status != StatusCompleted {
		t.Fatalf("status %s, want COMPLETED", job.Status)
	}
	if job.Results.FinalVerdict != verdict.FinalNonCheating {
		t.Fatalf("results were overwritten: %q", job.Results.FinalVerdict)
	}
	if job.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if job.EmbeddingsGCSPath != "embeddings/intv-123/" {
		t.Fatalf("embeddings path %q", job.EmbeddingsGCSPath)
	}
}

func TestRecordResultsRequiresProcessing(t *testing.T) {
	store, id := newTestJob(t)
	err := store.RecordResults(context.Background(), id, ResultsUpdate{
		Result: verdict.InterviewResult{InterviewID: id},
		Event:  Event(StatusCompleted, StageMLInference, "analyzer", "done"),
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict from QUEUED, got %v", err)
	}
}

func TestHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	store, id := newTestJob(t)
	ctx := context.Background()

	mustTransition(t, store, id, StatusProcessing, StageVideoConversion, StatusQueued, StatusFailed)
	if err := store.AppendHistory(ctx, id, Event(StatusProcessing, StageVideoConversion, "segmenter", "uploading clips")); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	mustTransition(t, store, id, StatusAudioExtractedQueued, StageVideoConversion, StatusProcessing)

	job, _ := store.Get(ctx, id)
	want := []Status{StatusQueued, StatusProcessing, StatusProcessing, StatusAudioExtractedQueued}
	if len(job.History) != len(want) {
		t.Fatalf("history length %d, want %d", len(job.History), len(want))
	}
	for i, event := range job.History {
		if event.Status != want[i] {
			t.Fatalf("history[%d] status %s, want %s", i, event.Status, want[i])
		}
	}
	for i := 1; i < len(job.History); i++ {
		if job.History[i].Timestamp.Before(job.History[i-1].Timestamp) {
			t.Fatalf("history[%d] out of chronological order", i)
		}
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	store, id := newTestJob(t)
	ctx := context.Background()

	job, _ := store.Get(ctx, id)
	job.History = append(job.History, Event(StatusFailed, "", "test", "mutated copy"))
	job.Status = StatusFailed

	fresh, _ := store.Get(ctx, id)
	if fresh.Status != StatusQueued || len(fresh.History) != 1 {
		t.Fatal("mutating a returned job leaked into the store")
	}
}

func mustTransition(t *testing.T, store Store, id string, to Status, stage string, expected ...Status) *InterviewJob {
	t.Helper()
	job, err := store.Transition(context.Background(), id, to, stage, Event(to, stage, "test", string(to)), expected...)
	if err != nil {
		t.Fatalf("transition to %s: %v", to, err)
	}
	return job
}
