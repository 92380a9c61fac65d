package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Broker contains the Redis Streams connection and queue settings.
type Broker struct {
	URL             string `toml:"url"`
	VideoReadyQueue string `toml:"video_ready_queue"`
	AudioReadyQueue string `toml:"audio_ready_queue"`
	ConsumerGroup   string `toml:"consumer_group"`
	// MaxDeliveries bounds redelivery of transient failures before a
	// message is dead-lettered and the job terminally failed.
	MaxDeliveries int `toml:"max_deliveries"`
	// PublishAttempts bounds connection retries before Publish reports
	// the broker unavailable.
	PublishAttempts int `toml:"publish_attempts"`
	// BlockSeconds is how long a consumer read blocks waiting for a
	// new message before checking for shutdown and stale deliveries.
	BlockSeconds int `toml:"block_seconds"`
	// RedeliverAfterSeconds is the pending-entry idle time after which a
	// message is considered abandoned and reclaimed for redelivery.
	RedeliverAfterSeconds int `toml:"redeliver_after_seconds"`
}

// Ledger contains the MongoDB connection settings for the job ledger.
type Ledger struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Storage contains the S3/GCS-compatible object storage settings.
type Storage struct {
	Endpoint         string `toml:"endpoint"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	UseSSL           bool   `toml:"use_ssl"`
	Region           string `toml:"region"`
	Bucket           string `toml:"bucket"`
	AudioPrefix      string `toml:"audio_prefix"`
	EmbeddingsPrefix string `toml:"embeddings_prefix"`
	ResultsPrefix    string `toml:"results_prefix"`
}

// Media contains audio extraction settings.
type Media struct {
	// SegmentSeconds is the fixed window length segments are cut to.
	SegmentSeconds int `toml:"segment_seconds"`
	// MinSegments is the minimum number of interview segments (beyond the
	// two reference clips) required for a usable extraction.
	MinSegments int `toml:"min_segments"`
}

// Inference contains the embedding service settings.
type Inference struct {
	Endpoint string `toml:"endpoint"`
	// MaxBatchClips bounds how many clips are sent per embedding request.
	MaxBatchClips  int  `toml:"max_batch_clips"`
	ForceCPU       bool `toml:"force_cpu"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// Workflow contains worker behaviour settings.
type Workflow struct {
	// Stages selects which consumers this process runs: "segmenter",
	// "verdict", or both.
	Stages  []string `toml:"stages"`
	APIBind string   `toml:"api_bind"`
	// CheatingSegmentRatio is the fraction of Reading segments above which
	// the interview verdict is Cheating. Zero means any Reading segment.
	CheatingSegmentRatio float64 `toml:"cheating_segment_ratio"`
	// WorkspaceMaxAgeHours controls stale scratch directory cleanup.
	WorkspaceMaxAgeHours int `toml:"workspace_max_age_hours"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scriptcheck. It is built
// once at process start and injected into each component at construction;
// nothing mutates it afterwards.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Broker    Broker    `toml:"broker"`
	Ledger    Ledger    `toml:"ledger"`
	Storage   Storage   `toml:"storage"`
	Media     Media     `toml:"media"`
	Inference Inference `toml:"inference"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scriptcheck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("scriptcheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required local directories for worker operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// RunsStage reports whether this process is configured to consume the named
// stage's queue.
func (c *Config) RunsStage(name string) bool {
	for _, stage := range c.Workflow.Stages {
		if strings.EqualFold(strings.TrimSpace(stage), name) {
			return true
		}
	}
	return false
}

// ExpandPath resolves a leading ~ against the user's home directory and
// returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
