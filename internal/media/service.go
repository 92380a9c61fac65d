package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"scriptcheck/internal/config"
	"scriptcheck/internal/services"
)

// Clip file names inside an interview's storage prefix. The first two fixed
// windows of the recording are the candidate's unscripted warm-up and the
// scripted read-aloud passage, in that order.
const (
	ReferenceNaturalFile = "reference_natural.wav"
	ReferenceReadingFile = "reference_reading.wav"
	SegmentFilePrefix    = "segment_"
	fullAudioFile        = "audio.wav"
)

// SegmentFile returns the clip file name for a 1-based segment number.
func SegmentFile(segmentNo int) string {
	return fmt.Sprintf("%s%d.wav", SegmentFilePrefix, segmentNo)
}

// ExtractResult describes the clips produced from one recording, with
// Segments ordered by chronological position.
type ExtractResult struct {
	FullAudioPath    string
	ReferenceNatural string
	ReferenceReading string
	Segments         []string
}

// Clips returns every produced clip path paired with its object file name,
// references first, then segments in order.
func (r ExtractResult) Clips() map[string]string {
	clips := map[string]string{
		ReferenceNaturalFile: r.ReferenceNatural,
		ReferenceReadingFile: r.ReferenceReading,
	}
	for i, path := range r.Segments {
		clips[SegmentFile(i+1)] = path
	}
	return clips
}

// Service extracts audio from interview recordings and cuts it into
// fixed-length mono 16kHz WAV windows with ffmpeg.
type Service struct {
	ffmpegBinary   string
	ffprobeBinary  string
	segmentSeconds int
	minSegments    int
	commandRunner  func(ctx context.Context, name string, args ...string) error
	probeRunner    func(ctx context.Context, name string, args ...string) (string, error)
}

// NewService creates an extraction service from configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		ffmpegBinary:   cfg.FFmpegBinary(),
		ffprobeBinary:  cfg.FFprobeBinary(),
		segmentSeconds: cfg.Media.SegmentSeconds,
		minSegments:    cfg.Media.MinSegments,
	}
}

// WithCommandRunner sets a custom ffmpeg runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// WithProbeRunner sets a custom ffprobe runner (for testing).
func (s *Service) WithProbeRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	s.probeRunner = runner
}

// ExtractClips pulls the full audio stream out of the video at source, then
// cuts it into fixed windows inside workDir. The first two windows become the
// reference clips; every later window becomes segment_1, segment_2, and so
// on. A recording too short to yield both references and the minimum segment
// count is a validation failure.
func (s *Service) ExtractClips(ctx context.Context, source, workDir string) (ExtractResult, error) {
	var result ExtractResult

	duration, err := s.probeDuration(ctx, source)
	if err != nil {
		return result, err
	}

	fullAudio := filepath.Join(workDir, fullAudioFile)
	if err := s.run(ctx, extractFullAudioArgs(source, fullAudio)); err != nil {
		return result, classifyExtract("extract audio stream", err)
	}
	result.FullAudioPath = fullAudio

	windows := windowCount(duration, s.segmentSeconds)
	if windows < 2+s.minSegments {
		return result, services.Wrap(
			services.ErrValidation,
			"media",
			"segment",
			fmt.Sprintf("recording yields %d windows, need %d (2 references + %d segments)", windows, 2+s.minSegments, s.minSegments),
			nil,
		)
	}

	for i := 0; i < windows; i++ {
		dest := filepath.Join(workDir, windowFileName(i))
		args := cutWindowArgs(fullAudio, i*s.segmentSeconds, s.segmentSeconds, dest)
		if err := s.run(ctx, args); err != nil {
			return result, classifyExtract(fmt.Sprintf("cut window %d", i), err)
		}
		switch i {
		case 0:
			result.ReferenceNatural = dest
		case 1:
			result.ReferenceReading = dest
		default:
			result.Segments = append(result.Segments, dest)
		}
	}
	return result, nil
}

// probeDuration reads the container duration in seconds with ffprobe.
func (s *Service) probeDuration(ctx context.Context, source string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	}
	output, err := s.probe(ctx, args)
	if err != nil {
		return 0, classifyExtract("probe duration", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil || duration <= 0 {
		return 0, services.Wrap(services.ErrValidation, "media", "probe", "unreadable duration from ffprobe", err)
	}
	return duration, nil
}

func (s *Service) run(ctx context.Context, args []string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.ffmpegBinary, args...)
	}
	cmd := exec.CommandContext(ctx, s.ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.ffmpegBinary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (s *Service) probe(ctx context.Context, args []string) (string, error) {
	if s.probeRunner != nil {
		return s.probeRunner(ctx, s.ffprobeBinary, args...)
	}
	cmd := exec.CommandContext(ctx, s.ffprobeBinary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.ffprobeBinary, err)
	}
	return string(output), nil
}

func extractFullAudioArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func cutWindowArgs(source string, startSec, durationSec int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.Itoa(startSec),
		"-t", strconv.Itoa(durationSec),
		"-i", source,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

// windowCount returns how many fixed windows the recording yields. A partial
// tail shorter than one second is dropped rather than producing a sliver
// clip.
func windowCount(durationSeconds float64, segmentSeconds int) int {
	if durationSeconds <= 0 || segmentSeconds <= 0 {
		return 0
	}
	full := int(durationSeconds) / segmentSeconds
	tail := durationSeconds - float64(full*segmentSeconds)
	if tail >= 1 {
		return full + 1
	}
	return full
}

// windowFileName maps a 0-based window index to its clip file name.
func windowFileName(index int) string {
	switch index {
	case 0:
		return ReferenceNaturalFile
	case 1:
		return ReferenceReadingFile
	default:
		return SegmentFile(index - 1)
	}
}

// classifyExtract maps subprocess failures onto the error taxonomy: a missing
// binary is a configuration fault, a killed or timed-out process is worth a
// retry, anything else means the input itself is bad.
func classifyExtract(operation string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(services.ErrConfiguration, "media", operation, "ffmpeg/ffprobe not installed", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrTransient, "media", operation, "extraction interrupted", err)
	default:
		return services.Wrap(services.ErrValidation, "media", operation, "extraction failed", err)
	}
}
