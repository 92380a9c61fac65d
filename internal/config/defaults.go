package config

const (
	defaultWorkDir               = "~/.local/share/scriptcheck/work"
	defaultLogDir                = "~/.local/share/scriptcheck/logs"
	defaultBrokerURL             = "redis://localhost:6379/0"
	defaultVideoReadyQueue       = "interviews.video-ready"
	defaultAudioReadyQueue       = "interviews.audio-ready"
	defaultConsumerGroup         = "scriptcheck"
	defaultMaxDeliveries         = 3
	defaultPublishAttempts       = 5
	defaultBlockSeconds          = 5
	defaultRedeliverAfterSeconds = 300
	defaultLedgerURI             = "mongodb://localhost:27017"
	defaultLedgerDatabase        = "scriptcheck"
	defaultLedgerCollection      = "interviews"
	defaultStorageEndpoint       = "localhost:9000"
	defaultStorageBucket         = "interviews"
	defaultAudioPrefix           = "audio/"
	defaultEmbeddingsPrefix      = "embeddings/"
	defaultResultsPrefix         = "results/"
	defaultSegmentSeconds        = 60
	defaultMinSegments           = 1
	defaultInferenceEndpoint     = "http://localhost:8591"
	defaultMaxBatchClips         = 8
	defaultInferenceTimeout      = 300
	defaultAPIBind               = "127.0.0.1:8590"
	defaultWorkspaceMaxAgeHours  = 24
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Broker: Broker{
			URL:                   defaultBrokerURL,
			VideoReadyQueue:       defaultVideoReadyQueue,
			AudioReadyQueue:       defaultAudioReadyQueue,
			ConsumerGroup:         defaultConsumerGroup,
			MaxDeliveries:         defaultMaxDeliveries,
			PublishAttempts:       defaultPublishAttempts,
			BlockSeconds:          defaultBlockSeconds,
			RedeliverAfterSeconds: defaultRedeliverAfterSeconds,
		},
		Ledger: Ledger{
			URI:        defaultLedgerURI,
			Database:   defaultLedgerDatabase,
			Collection: defaultLedgerCollection,
		},
		Storage: Storage{
			Endpoint:         defaultStorageEndpoint,
			Bucket:           defaultStorageBucket,
			AudioPrefix:      defaultAudioPrefix,
			EmbeddingsPrefix: defaultEmbeddingsPrefix,
			ResultsPrefix:    defaultResultsPrefix,
		},
		Media: Media{
			SegmentSeconds: defaultSegmentSeconds,
			MinSegments:    defaultMinSegments,
		},
		Inference: Inference{
			Endpoint:       defaultInferenceEndpoint,
			MaxBatchClips:  defaultMaxBatchClips,
			TimeoutSeconds: defaultInferenceTimeout,
		},
		Workflow: Workflow{
			Stages:               []string{"segmenter", "verdict"},
			APIBind:              defaultAPIBind,
			WorkspaceMaxAgeHours: defaultWorkspaceMaxAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
