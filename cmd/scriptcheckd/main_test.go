package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"scriptcheck/internal/broker"
	"scriptcheck/internal/config"
	"scriptcheck/internal/ledger"
	"scriptcheck/internal/logging"
	"scriptcheck/internal/storage"
)

func testDeps(t *testing.T) (*config.Config, *ledger.MemoryStore, *storage.MemoryStore, *broker.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return &cfg, ledger.NewMemoryStore(), storage.NewMemoryStore(), broker.NewWithRedis(rdb, &cfg, logging.NewNop())
}

func TestBuildStagesDefaultRunsBoth(t *testing.T) {
	cfg, store, objects, queue := testDeps(t)

	stages, err := buildStages(cfg, store, objects, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("buildStages: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("got %d stages, want 2", len(stages))
	}
	if stages[0].Name() != "segmenter" || stages[1].Name() != "analyzer" {
		t.Fatalf("unexpected stage order: %s, %s", stages[0].Name(), stages[1].Name())
	}
}

func TestBuildStagesDedicatedHost(t *testing.T) {
	cfg, store, objects, queue := testDeps(t)
	cfg.Workflow.Stages = []string{"verdict"}

	stages, err := buildStages(cfg, store, objects, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("buildStages: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("got %d stages, want 1", len(stages))
	}
	if stages[0].Queue() != cfg.Broker.AudioReadyQueue {
		t.Fatalf("stage consumes %q, want %q", stages[0].Queue(), cfg.Broker.AudioReadyQueue)
	}
}

func TestBuildStagesNoneEnabled(t *testing.T) {
	cfg, store, objects, queue := testDeps(t)
	cfg.Workflow.Stages = nil

	if _, err := buildStages(cfg, store, objects, queue, logging.NewNop()); err == nil {
		t.Fatal("expected error for empty stage list")
	}
}
