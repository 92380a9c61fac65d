package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scriptcheck/internal/ledger"
	"scriptcheck/internal/verdict"
)

func completedJob() *ledger.InterviewJob {
	completed := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return &ledger.InterviewJob{
		ID:                 "intv-42",
		Status:             ledger.StatusCompleted,
		Stage:              ledger.StageMLInference,
		ProcessingAttempts: 2,
		LastUpdated:        completed,
		CompletedAt:        &completed,
		Results: &verdict.InterviewResult{
			InterviewID:           "intv-42",
			FinalVerdict:          verdict.FinalCheating,
			CheatingSegments:      1,
			TotalSegments:         3,
			ProcessingTimeSeconds: 4.2,
			JSONFilePath:          "results/intv-42.json",
			SegmentsDetails: []verdict.SegmentResult{
				{SegmentNo: 1, ReadingCosine: 0.91, NaturalCosine: 0.42, Verdict: verdict.SegmentReading},
				{SegmentNo: 2, ReadingCosine: 0.31, NaturalCosine: 0.88, Verdict: verdict.SegmentNatural},
				{SegmentNo: 3, ReadingCosine: 0.5, NaturalCosine: 0.5, Verdict: verdict.SegmentNatural},
			},
		},
		History: []ledger.HistoryEvent{
			ledger.Event(ledger.StatusQueued, "", "segmenter", "Video ready notification received."),
			ledger.Event(ledger.StatusCompleted, ledger.StageMLInference, "analyzer", "ML inference completed in 4.20s."),
		},
	}
}

func TestRenderJobStatus(t *testing.T) {
	out := renderJobStatus(completedJob(), false)

	for _, want := range []string{
		"intv-42",
		string(ledger.StatusCompleted),
		"Attempts:   2",
		verdict.FinalCheating,
		"Video ready notification received.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered status missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, ansiGreen) {
		t.Fatal("color codes emitted with colorize disabled")
	}
}

func TestRenderJobStatusColorized(t *testing.T) {
	out := renderJobStatus(completedJob(), true)
	if !strings.Contains(out, ansiGreen) {
		t.Fatal("expected green status with colorize enabled")
	}
}

func TestRenderResults(t *testing.T) {
	out := renderResults(completedJob())

	for _, want := range []string{
		verdict.FinalCheating,
		"1 flagged of 3",
		"0.9100",
		"0.8800",
		verdict.SegmentNatural,
		"results/intv-42.json",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered results missing %q:\n%s", want, out)
		}
	}
}

func writeAPIConfig(t *testing.T, apiBind string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("[paths]\nwork_dir = %q\nlog_dir = %q\n\n[workflow]\napi_bind = %q\n",
		filepath.Join(dir, "work"), filepath.Join(dir, "logs"), apiBind)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestStatusCommandFetchesFromDaemon(t *testing.T) {
	job := completedJob()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs/intv-42" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job) //nolint:errcheck
	}))
	defer server.Close()

	configPath := writeAPIConfig(t, strings.TrimPrefix(server.URL, "http://"))

	out, err := runCLI(t, []string{"--config", configPath, "status", "intv-42", "--json"})
	if err != nil {
		t.Fatalf("status command: %v", err)
	}
	var decoded ledger.InterviewJob
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.ID != "intv-42" || decoded.Results == nil {
		t.Fatalf("unexpected job payload: %+v", decoded)
	}
}

func TestStatusCommandUnknownInterview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	configPath := writeAPIConfig(t, strings.TrimPrefix(server.URL, "http://"))

	_, err := runCLI(t, []string{"--config", configPath, "status", "ghost"})
	if err == nil || !strings.Contains(err.Error(), "interview not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
