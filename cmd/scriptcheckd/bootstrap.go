package main

import (
	"errors"
	"log/slog"

	"scriptcheck/internal/analyzer"
	"scriptcheck/internal/broker"
	"scriptcheck/internal/config"
	"scriptcheck/internal/inference"
	"scriptcheck/internal/ledger"
	"scriptcheck/internal/media"
	"scriptcheck/internal/segmenter"
	"scriptcheck/internal/stage"
	"scriptcheck/internal/storage"
)

// buildStages assembles the stage handlers this process is configured to
// run. A host can run both stages or be dedicated to one of them.
func buildStages(cfg *config.Config, store ledger.Store, objects storage.ObjectStore, queue *broker.Client, logger *slog.Logger) ([]stage.Handler, error) {
	var stages []stage.Handler

	if cfg.RunsStage("segmenter") {
		extractor := media.NewService(cfg)
		stages = append(stages, segmenter.New(cfg, store, objects, extractor, queue, logger))
	}

	if cfg.RunsStage("verdict") {
		embedder, err := inference.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		stages = append(stages, analyzer.New(cfg, store, objects, embedder, queue, logger))
	}

	if len(stages) == 0 {
		return nil, errors.New("no stages enabled; set workflow.stages in the configuration")
	}
	return stages, nil
}
