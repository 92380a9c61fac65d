package segmenter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"scriptcheck/internal/broker"
	"scriptcheck/internal/config"
	"scriptcheck/internal/ledger"
	"scriptcheck/internal/logging"
	"scriptcheck/internal/media"
	"scriptcheck/internal/metrics"
	"scriptcheck/internal/services"
	"scriptcheck/internal/stage"
	"scriptcheck/internal/storage"
)

const (
	stageName = "segmenter"
	actor     = "segmenter"
)

// Extractor produces the clip set from a downloaded recording.
type Extractor interface {
	ExtractClips(ctx context.Context, source, workDir string) (media.ExtractResult, error)
}

// Queue is the broker surface this stage needs.
type Queue interface {
	Publish(ctx context.Context, queue string, payload any) error
	Ping(ctx context.Context) error
}

// Stage consumes video-ready messages: it downloads the recording, extracts
// the reference and segment clips, uploads them under the interview's audio
// prefix, and hands the job to the analysis stage.
type Stage struct {
	cfg       *config.Config
	store     ledger.Store
	objects   storage.ObjectStore
	extractor Extractor
	queue     Queue
	logger    *slog.Logger
}

// New builds the segmentation stage.
func New(cfg *config.Config, store ledger.Store, objects storage.ObjectStore, extractor Extractor, queue Queue, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:       cfg,
		store:     store,
		objects:   objects,
		extractor: extractor,
		queue:     queue,
		logger:    logging.NewComponentLogger(logger, stageName),
	}
}

var _ stage.Handler = (*Stage)(nil)

func (s *Stage) Name() string { return stageName }

func (s *Stage) Queue() string { return s.cfg.Broker.VideoReadyQueue }

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.queue.Ping(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

// Handle processes one video-ready delivery end to end. The message is only
// acknowledged (by the broker layer) once the audio-ready message for the
// next stage has been accepted.
func (s *Stage) Handle(ctx context.Context, delivery broker.Delivery) (err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveHandled(stageName, string(services.Classify(err)), time.Since(started))
	}()

	msg, err := broker.DecodeVideoReady(delivery.Body)
	if err != nil {
		return err
	}

	ctx = services.WithInterviewID(ctx, msg.InterviewID)
	ctx = services.WithStage(ctx, ledger.StageVideoConversion)
	logger := logging.WithContext(ctx, s.logger)

	videoKey := normalizeStorageKey(msg.Path)
	logger.Info("video ready", logging.String("video_key", videoKey))

	queuedEvent := ledger.Event(ledger.StatusQueued, "", actor, "Video ready notification received.")
	queuedEvent.VideoGCSPath = videoKey
	if err := s.store.EnsureJob(ctx, msg.InterviewID, queuedEvent); err != nil {
		return err
	}

	startEvent := ledger.Event(ledger.StatusProcessing, ledger.StageVideoConversion, actor, "Started video to audio conversion.")
	startEvent.VideoGCSPath = videoKey
	job, err := s.store.Transition(ctx, msg.InterviewID, ledger.StatusProcessing, ledger.StageVideoConversion,
		startEvent, ledger.StatusQueued, ledger.StatusFailed)
	if err != nil {
		// A conflict means another worker owns the job or it already moved
		// on; the broker acknowledges and drops the duplicate.
		return err
	}
	logger.Info("conversion started", logging.Int("attempt", job.ProcessingAttempts))

	audioPrefix, err := s.convert(ctx, logger, msg.InterviewID, videoKey)
	if err != nil {
		s.markFailed(ctx, logger, msg.InterviewID, err)
		return err
	}

	doneEvent := ledger.Event(ledger.StatusAudioExtractedQueued, ledger.StageVideoConversion, actor,
		"Video conversion completed and audio segments uploaded.")
	doneEvent.AudioGCSPrefix = audioPrefix
	if _, err := s.store.Transition(ctx, msg.InterviewID, ledger.StatusAudioExtractedQueued, ledger.StageVideoConversion,
		doneEvent, ledger.StatusProcessing); err != nil {
		return err
	}

	audioReady := broker.AudioReadyMessage{InterviewID: msg.InterviewID, GCSAudioPrefix: audioPrefix}
	if err := s.queue.Publish(ctx, s.cfg.Broker.AudioReadyQueue, audioReady); err != nil {
		// The job would otherwise strand in AUDIO_EXTRACTED_QUEUED with no
		// message carrying it forward; fail it so redelivery restarts the
		// stage from a clean state.
		s.markFailed(ctx, logger, msg.InterviewID, err)
		return err
	}

	logger.Info("audio ready published",
		logging.String("audio_prefix", audioPrefix),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

// convert downloads the recording into a locked scratch directory, extracts
// the clips, and uploads them under a fresh per-interview prefix.
func (s *Stage) convert(ctx context.Context, logger *slog.Logger, interviewID, videoKey string) (string, error) {
	workDir := filepath.Join(s.cfg.Paths.WorkDir, interviewID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "workspace", "create scratch directory", err)
	}

	lock := flock.New(workDir + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "workspace", "acquire workspace lock", err)
	}
	if !locked {
		return "", services.Wrap(services.ErrTransient, stageName, "workspace", "workspace busy with another delivery", nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			logger.Warn("scratch cleanup failed", logging.Error(removeErr))
		}
	}()

	localVideo := filepath.Join(workDir, "source"+filepath.Ext(videoKey))
	if err := s.objects.GetFile(ctx, videoKey, localVideo); err != nil {
		return "", err
	}

	result, err := s.extractor.ExtractClips(ctx, localVideo, workDir)
	if err != nil {
		return "", err
	}

	// Reprocessing replaces the prefix wholesale so a half-written earlier
	// run can never leave stray clips behind.
	audioPrefix := s.cfg.Storage.AudioPrefix + interviewID + "/"
	if err := s.objects.RemovePrefix(ctx, audioPrefix); err != nil {
		return "", err
	}
	for name, path := range result.Clips() {
		if err := s.objects.PutFile(ctx, audioPrefix+name, path, "audio/wav"); err != nil {
			return "", err
		}
	}

	logger.Info("clips uploaded",
		logging.Int("segments", len(result.Segments)),
		logging.String("audio_prefix", audioPrefix))
	return audioPrefix, nil
}

// markFailed records the failure in the ledger. The job may already be in
// AUDIO_EXTRACTED_QUEUED when the audio-ready publish fails, so that status
// is accepted too; without it the job would strand there while every
// redelivery bounces off the PROCESSING entry guard. A conflict here means
// the job moved under us, which the caller already reports.
func (s *Stage) markFailed(ctx context.Context, logger *slog.Logger, interviewID string, cause error) {
	message := "Video conversion failed."
	if services.Classify(cause) == services.KindValidation {
		message = "Video conversion produced no/insufficient segments."
	}
	event := ledger.Event(ledger.StatusFailed, ledger.StageVideoConversion, actor, message)
	event.Error = cause.Error()

	if _, err := s.store.Transition(ctx, interviewID, ledger.StatusFailed, ledger.StageVideoConversion,
		event, ledger.StatusProcessing, ledger.StatusAudioExtractedQueued); err != nil {
		logger.Warn("could not record failure", logging.Error(err))
	}
}

// normalizeStorageKey converts producer-supplied paths (which may carry
// Windows separators or a leading slash) into a canonical object key.
func normalizeStorageKey(path string) string {
	key := strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	key = strings.TrimPrefix(key, "/")
	return key
}
