package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks semantic constraints on the loaded configuration.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Broker.URL) == "" {
		problems = append(problems, "broker.url must be set")
	}
	if strings.TrimSpace(c.Broker.VideoReadyQueue) == "" {
		problems = append(problems, "broker.video_ready_queue must be set")
	}
	if strings.TrimSpace(c.Broker.AudioReadyQueue) == "" {
		problems = append(problems, "broker.audio_ready_queue must be set")
	}
	if c.Broker.VideoReadyQueue == c.Broker.AudioReadyQueue {
		problems = append(problems, "broker queues must be distinct")
	}
	if c.Broker.MaxDeliveries < 1 {
		problems = append(problems, "broker.max_deliveries must be at least 1")
	}
	if c.Broker.PublishAttempts < 1 {
		problems = append(problems, "broker.publish_attempts must be at least 1")
	}

	if strings.TrimSpace(c.Ledger.URI) == "" {
		problems = append(problems, "ledger.uri must be set")
	}
	if strings.TrimSpace(c.Ledger.Database) == "" || strings.TrimSpace(c.Ledger.Collection) == "" {
		problems = append(problems, "ledger.database and ledger.collection must be set")
	}

	if strings.TrimSpace(c.Storage.Bucket) == "" {
		problems = append(problems, "storage.bucket must be set")
	}
	if c.Storage.AudioPrefix == "" {
		problems = append(problems, "storage.audio_prefix must be set")
	}

	if c.Media.SegmentSeconds < 1 {
		problems = append(problems, "media.segment_seconds must be at least 1")
	}
	if c.Media.MinSegments < 1 {
		problems = append(problems, "media.min_segments must be at least 1")
	}

	if c.Inference.MaxBatchClips < 1 {
		problems = append(problems, "inference.max_batch_clips must be at least 1")
	}
	if c.Workflow.CheatingSegmentRatio < 0 || c.Workflow.CheatingSegmentRatio >= 1 {
		problems = append(problems, "workflow.cheating_segment_ratio must be in [0, 1)")
	}

	if len(c.Workflow.Stages) == 0 {
		problems = append(problems, "workflow.stages must name at least one stage")
	}
	for _, stage := range c.Workflow.Stages {
		if stage != "segmenter" && stage != "verdict" {
			problems = append(problems, fmt.Sprintf("workflow.stages: unknown stage %q", stage))
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
