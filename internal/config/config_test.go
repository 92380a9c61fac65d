package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config file")
	}
	if cfg.Broker.VideoReadyQueue != defaultVideoReadyQueue {
		t.Fatalf("unexpected video queue %q", cfg.Broker.VideoReadyQueue)
	}
	if cfg.Media.SegmentSeconds != defaultSegmentSeconds {
		t.Fatalf("unexpected segment length %d", cfg.Media.SegmentSeconds)
	}
	if !cfg.RunsStage("segmenter") || !cfg.RunsStage("verdict") {
		t.Fatal("expected both stages enabled by default")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[broker]
max_deliveries = 7

[storage]
audio_prefix = "/clips"

[workflow]
stages = ["Segmenter"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Broker.MaxDeliveries != 7 {
		t.Fatalf("expected max_deliveries 7, got %d", cfg.Broker.MaxDeliveries)
	}
	if cfg.Storage.AudioPrefix != "clips/" {
		t.Fatalf("expected normalized prefix clips/, got %q", cfg.Storage.AudioPrefix)
	}
	if !cfg.RunsStage("segmenter") {
		t.Fatal("expected stage name to be case-normalized")
	}
	if cfg.RunsStage("verdict") {
		t.Fatal("verdict stage should be disabled by override")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		keyword string
	}{
		{"missing broker url", func(c *Config) { c.Broker.URL = "" }, "broker.url"},
		{"same queues", func(c *Config) { c.Broker.AudioReadyQueue = c.Broker.VideoReadyQueue }, "distinct"},
		{"zero deliveries", func(c *Config) { c.Broker.MaxDeliveries = 0 }, "max_deliveries"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, "storage.bucket"},
		{"zero segment length", func(c *Config) { c.Media.SegmentSeconds = 0 }, "segment_seconds"},
		{"bad ratio", func(c *Config) { c.Workflow.CheatingSegmentRatio = 1.5 }, "cheating_segment_ratio"},
		{"unknown stage", func(c *Config) { c.Workflow.Stages = []string{"transcode"} }, "unknown stage"},
		{"no stages", func(c *Config) { c.Workflow.Stages = nil }, "workflow.stages"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.keyword) {
				t.Fatalf("error %q does not mention %q", err, tc.keyword)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"audio":    "audio/",
		"/audio/":  "audio/",
		" audio//": "audio/",
		"a/b":      "a/b/",
		"":         "",
	}
	for in, want := range cases {
		if got := normalizePrefix(in); got != want {
			t.Fatalf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config invalid: %v", err)
	}
}
