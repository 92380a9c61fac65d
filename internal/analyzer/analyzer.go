package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"scriptcheck/internal/broker"
	"scriptcheck/internal/config"
	"scriptcheck/internal/inference"
	"scriptcheck/internal/ledger"
	"scriptcheck/internal/logging"
	"scriptcheck/internal/media"
	"scriptcheck/internal/metrics"
	"scriptcheck/internal/services"
	"scriptcheck/internal/stage"
	"scriptcheck/internal/storage"
	"scriptcheck/internal/verdict"
)

const (
	stageName = "analyzer"
	actor     = "analyzer"
)

// Pinger lets the stage report broker reachability in its health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stage consumes audio-ready messages: it validates the clip set, drives the
// embedding collaborator in bounded batches, scores every segment against
// the two references, and finalizes the job with its verdict.
type Stage struct {
	cfg      *config.Config
	store    ledger.Store
	objects  storage.ObjectStore
	embedder inference.Embedder
	pinger   Pinger
	logger   *slog.Logger
}

// New builds the verdict stage.
func New(cfg *config.Config, store ledger.Store, objects storage.ObjectStore, embedder inference.Embedder, pinger Pinger, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:      cfg,
		store:    store,
		objects:  objects,
		embedder: embedder,
		pinger:   pinger,
		logger:   logging.NewComponentLogger(logger, stageName),
	}
}

var _ stage.Handler = (*Stage)(nil)

func (s *Stage) Name() string { return stageName }

func (s *Stage) Queue() string { return s.cfg.Broker.AudioReadyQueue }

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.pinger.Ping(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

// Handle processes one audio-ready delivery. The broker acknowledges only
// after the verdict has been recorded, so a crash mid-analysis redelivers
// the message and the CAS transition decides who finishes the job.
func (s *Stage) Handle(ctx context.Context, delivery broker.Delivery) (err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveHandled(stageName, string(services.Classify(err)), time.Since(started))
	}()

	msg, err := broker.DecodeAudioReady(delivery.Body)
	if err != nil {
		return err
	}

	ctx = services.WithInterviewID(ctx, msg.InterviewID)
	ctx = services.WithStage(ctx, ledger.StageMLInference)
	logger := logging.WithContext(ctx, s.logger)

	// Directly-submitted audio (clips uploaded out of band, no video stage)
	// has no ledger document yet; ensure one so the job is trackable. QUEUED
	// is accepted below for the same reason.
	queuedEvent := ledger.Event(ledger.StatusQueued, "", actor, "Audio ready notification received.")
	queuedEvent.AudioGCSPrefix = msg.GCSAudioPrefix
	if err := s.store.EnsureJob(ctx, msg.InterviewID, queuedEvent); err != nil {
		return err
	}

	startEvent := ledger.Event(ledger.StatusProcessing, ledger.StageMLInference, actor, "Started ML inference.")
	startEvent.AudioGCSPrefix = msg.GCSAudioPrefix
	job, err := s.store.Transition(ctx, msg.InterviewID, ledger.StatusProcessing, ledger.StageMLInference,
		startEvent, ledger.StatusAudioExtractedQueued, ledger.StatusQueued, ledger.StatusFailed)
	if err != nil {
		// Completed jobs keep their recorded results; duplicates are dropped.
		return err
	}
	logger.Info("inference started", logging.Int("attempt", job.ProcessingAttempts))

	result, embeddings, err := s.analyze(ctx, logger, msg.InterviewID, msg.GCSAudioPrefix, started)
	if err != nil {
		s.markFailed(ctx, logger, msg.InterviewID, err)
		return err
	}

	// Both uploads are best-effort: losing the sidecar files must not lose
	// the verdict.
	embeddingsPath := s.uploadEmbeddings(ctx, logger, msg.InterviewID, embeddings)
	result.EmbeddingsFilePath = embeddingsPath
	resultsPath := s.uploadResults(ctx, logger, msg.InterviewID, result)
	result.JSONFilePath = resultsPath

	completeEvent := ledger.Event(ledger.StatusCompleted, ledger.StageMLInference, actor,
		fmt.Sprintf("ML inference completed in %.2fs.", result.ProcessingTimeSeconds))
	if err := s.store.RecordResults(ctx, msg.InterviewID, ledger.ResultsUpdate{
		Result:            result,
		EmbeddingsGCSPath: embeddingsPath,
		JSONGCSPath:       resultsPath,
		Event:             completeEvent,
	}); err != nil {
		return err
	}

	metrics.ObserveVerdict(result.FinalVerdict, result.TotalSegments)
	logger.Info("verdict recorded",
		logging.String("final_verdict", result.FinalVerdict),
		logging.Int("cheating_segments", result.CheatingSegments),
		logging.Int("total_segments", result.TotalSegments),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

// analyze validates the clip set, embeds everything, and builds the result.
// It returns the per-clip embeddings for the optional sidecar upload.
func (s *Stage) analyze(ctx context.Context, logger *slog.Logger, interviewID, prefix string, started time.Time) (verdict.InterviewResult, map[string][]float64, error) {
	segments, err := s.listClips(ctx, prefix)
	if err != nil {
		return verdict.InterviewResult{}, nil, err
	}

	// Reference embeddings are computed exactly once and reused for every
	// batch.
	referenceClips, err := s.fetchClips(ctx, prefix, []string{media.ReferenceNaturalFile, media.ReferenceReadingFile})
	if err != nil {
		return verdict.InterviewResult{}, nil, err
	}
	referenceVectors, err := s.embedder.Embed(ctx, referenceClips)
	if err != nil {
		return verdict.InterviewResult{}, nil, err
	}
	metrics.ObserveEmbeddingBatch()
	naturalVector, readingVector := referenceVectors[0], referenceVectors[1]

	embeddings := map[string][]float64{
		media.ReferenceNaturalFile: naturalVector,
		media.ReferenceReadingFile: readingVector,
	}

	var results []verdict.SegmentResult
	batchSize := s.cfg.Inference.MaxBatchClips
	for start := 0; start < len(segments); start += batchSize {
		end := start + batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		names := make([]string, len(batch))
		for i, clip := range batch {
			names[i] = clip.name
		}
		clips, err := s.fetchClips(ctx, prefix, names)
		if err != nil {
			return verdict.InterviewResult{}, nil, err
		}
		vectors, err := s.embedder.Embed(ctx, clips)
		if err != nil {
			return verdict.InterviewResult{}, nil, err
		}
		metrics.ObserveEmbeddingBatch()

		for i, vector := range vectors {
			clip := batch[i]
			embeddings[clip.name] = vector
			results = append(results, verdict.Score(clip.no, vector, readingVector, naturalVector, time.Now()))
		}
		logger.Debug("batch scored",
			logging.Int("batch_start", start+1),
			logging.Int("batch_size", len(batch)))
	}

	result := verdict.Aggregate(interviewID, results, s.cfg.Workflow.CheatingSegmentRatio, time.Now())
	result.ProcessingTimeSeconds = time.Since(started).Seconds()
	return result, embeddings, nil
}

// segmentClip pairs a clip's object name with the chronological number
// parsed from it. The file number is the segment's position in the
// recording; it is reported as-is, even when the numbering has gaps.
type segmentClip struct {
	no   int
	name string
}

// listClips checks the prefix holds both references and enough segments, and
// returns the segment clips in chronological order.
func (s *Stage) listClips(ctx context.Context, prefix string) ([]segmentClip, error) {
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var hasNatural, hasReading bool
	numbered := make(map[int]string)
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		switch {
		case name == media.ReferenceNaturalFile:
			hasNatural = true
		case name == media.ReferenceReadingFile:
			hasReading = true
		case strings.HasPrefix(name, media.SegmentFilePrefix) && strings.HasSuffix(name, ".wav"):
			raw := strings.TrimSuffix(strings.TrimPrefix(name, media.SegmentFilePrefix), ".wav")
			if no, err := strconv.Atoi(raw); err == nil && no > 0 {
				numbered[no] = name
			}
		}
	}

	if !hasNatural || !hasReading {
		return nil, services.Wrap(services.ErrValidation, stageName, "validate",
			"missing reference audio files under "+prefix, nil)
	}
	if len(numbered) < s.cfg.Media.MinSegments {
		return nil, services.Wrap(services.ErrValidation, stageName, "validate",
			fmt.Sprintf("found %d interview segments under %s, expected at least %d", len(numbered), prefix, s.cfg.Media.MinSegments), nil)
	}

	order := make([]int, 0, len(numbered))
	for no := range numbered {
		order = append(order, no)
	}
	sort.Ints(order)

	segments := make([]segmentClip, 0, len(order))
	for _, no := range order {
		segments = append(segments, segmentClip{no: no, name: numbered[no]})
	}
	return segments, nil
}

func (s *Stage) fetchClips(ctx context.Context, prefix string, names []string) ([][]byte, error) {
	clips := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := s.objects.Get(ctx, prefix+name)
		if err != nil {
			return nil, err
		}
		clips = append(clips, data)
	}
	return clips, nil
}

func (s *Stage) uploadEmbeddings(ctx context.Context, logger *slog.Logger, interviewID string, embeddings map[string][]float64) string {
	key := s.cfg.Storage.EmbeddingsPrefix + interviewID + ".json"
	if err := s.putJSON(ctx, key, embeddings); err != nil {
		logger.Warn("embeddings upload skipped", logging.Error(err))
		return ""
	}
	return key
}

func (s *Stage) uploadResults(ctx context.Context, logger *slog.Logger, interviewID string, result verdict.InterviewResult) string {
	key := s.cfg.Storage.ResultsPrefix + interviewID + ".json"
	if err := s.putJSON(ctx, key, result); err != nil {
		logger.Warn("results upload skipped", logging.Error(err))
		return ""
	}
	return key
}

func (s *Stage) putJSON(ctx context.Context, key string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "upload", "encode "+key, err)
	}
	return s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json")
}

// markFailed records the failure in the ledger; conflicts mean the job moved
// under us and are only logged.
func (s *Stage) markFailed(ctx context.Context, logger *slog.Logger, interviewID string, cause error) {
	message := "ML inference failed."
	if services.Classify(cause) == services.KindValidation {
		message = "Missing or insufficient audio clips for inference."
	}
	event := ledger.Event(ledger.StatusFailed, ledger.StageMLInference, actor, message)
	event.Error = cause.Error()

	if _, err := s.store.Transition(ctx, interviewID, ledger.StatusFailed, ledger.StageMLInference,
		event, ledger.StatusProcessing); err != nil {
		logger.Warn("could not record failure", logging.Error(err))
	}
}
