package collector

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"runtime"
	"segmentd/internal/global"
	"segmentd/pkg/protocol"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Loads config from file. YAML by extension, otherwise JSON with comments and trailing commas.
func LoadConfig(path string) (cfg FileConfig, err error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %w", err)
		return
	}

	cfg, err = ParseConfig(configFile, filepath.Ext(path))
	if err != nil {
		err = fmt.Errorf("invalid config syntax in '%s': %w", path, err)
		return
	}
	return
}

// Parses config content in the format named by extension (".yaml", ".yml", anything else is JSON)
func ParseConfig(content []byte, extension string) (cfg FileConfig, err error) {
	switch strings.ToLower(extension) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &cfg)
	default:
		err = json.Unmarshal(jsonc.ToJSON(content), &cfg)
	}
	return
}

// Parses file config into daemon config
func (cfg FileConfig) NewDaemonConf() (config Config, err error) {
	// Network settings
	config.ListenIP = cfg.Listen.Address
	config.ListenPort = cfg.Listen.Port
	config.MinListeners = cfg.Listen.Workers
	config.MaxDatagramBytes = cfg.Listen.MaxDatagramBytes
	config.ReceiveBufferBytes = cfg.Listen.ReceiveBuffer

	// Queue
	config.QueueSize = cfg.Queue.Size
	config.MinQueueSize = cfg.Queue.Min
	config.MaxQueueSize = cfg.Queue.Max
	config.DropPolicy = cfg.Queue.DropPolicy

	// Decode
	config.MinDecoders = cfg.Decode.Workers

	// Batching
	config.BatchMaxCount = cfg.Batch.MaxCount
	config.BatchMaxBytes = cfg.Batch.MaxBytes

	// Upload
	config.Backend = cfg.Upload.Backend
	config.MaxAttempts = cfg.Upload.MaxAttempts
	config.UploadConcurrency = cfg.Upload.Concurrency
	config.BatchQueueSize = cfg.Upload.QueueSize
	config.SpoolDir = cfg.Upload.SpoolDir
	config.BeatsAddress = cfg.Upload.BeatsAddress
	config.AWS.Region = cfg.AWS.Region
	config.AWS.Endpoint = cfg.AWS.Endpoint
	config.AWS.CredentialSource = cfg.AWS.CredentialSource
	config.AWS.CredentialsFile = cfg.AWS.CredentialsFile
	config.AWS.Profile = cfg.AWS.Profile

	// Scaling settings
	config.AutoscaleEnabled = cfg.AutoScaling.Enabled
	config.MaxListeners = cfg.AutoScaling.MaxListeners
	config.MaxDecoders = cfg.AutoScaling.MaxDecoders

	// Metric settings
	config.MetricQueryServerEnabled = cfg.Metrics.EnableQueryServer
	config.MetricQueryServerPort = cfg.Metrics.QueryServerPort
	config.PrometheusAddress = cfg.Metrics.PrometheusAddress

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"batch flush interval", cfg.Batch.FlushInterval, &config.FlushInterval},
		{"upload backoff base", cfg.Upload.BackoffBase, &config.BackoffBase},
		{"upload backoff cap", cfg.Upload.BackoffCap, &config.BackoffCap},
		{"upload request timeout", cfg.Upload.RequestTimeout, &config.RequestTimeout},
		{"drain timeout", cfg.DrainTimeout, &config.DrainTimeout},
		{"autoscale check interval", cfg.AutoScaling.PollInterval, &config.AutoscaleCheckInterval},
		{"metric max age", cfg.Metrics.MaxAge, &config.MetricMaxAge},
		{"metric collection interval", cfg.Metrics.Interval, &config.MetricCollectionInterval},
	}
	for _, duration := range durations {
		if duration.raw == "" {
			continue
		}
		*duration.field, err = time.ParseDuration(duration.raw)
		if err != nil {
			err = fmt.Errorf("failed to parse %s: %w", duration.name, err)
			return
		}
	}
	return
}

// Sets defaults for any missing values
func (cfg *Config) setDefaults() {
	// Network
	envHost, envPort := protocol.DefaultDaemonAddress()
	if cfg.ListenIP == "" {
		cfg.ListenIP = envHost
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = envPort
	}
	if cfg.MaxDatagramBytes == 0 {
		cfg.MaxDatagramBytes = global.MaxUDPPayload
	}

	// Queue
	if cfg.QueueSize == 0 {
		cfg.QueueSize = global.DefaultQueueSize
	}
	if cfg.MinQueueSize == 0 {
		cfg.MinQueueSize = global.DefaultMinQueueSize
	}
	if cfg.MaxQueueSize == 0 {
		cfg.MaxQueueSize = global.DefaultMaxQueueSize
	}
	if cfg.QueueSize > 0 {
		cfg.QueueSize = ceilPowerOfTwo(cfg.QueueSize)
	}
	if cfg.DropPolicy == "" {
		cfg.DropPolicy = global.DropNewest
	}

	// Workers
	logicalCPUCount := runtime.NumCPU()
	if cfg.MinListeners == 0 {
		cfg.MinListeners = 1
	}
	if cfg.MinDecoders == 0 {
		cfg.MinDecoders = 1
	}
	if cfg.MaxListeners == 0 {
		cfg.MaxListeners = max(logicalCPUCount, cfg.MinListeners)
	}
	if cfg.MaxDecoders == 0 {
		cfg.MaxDecoders = max(logicalCPUCount, cfg.MinDecoders)
	}

	// Batching
	if cfg.BatchMaxCount == 0 {
		cfg.BatchMaxCount = global.DefaultMaxBatchCount
	}
	if cfg.BatchMaxBytes == 0 {
		cfg.BatchMaxBytes = global.DefaultMaxBatchBytes
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = global.DefaultFlushInterval
	}

	// Upload
	if cfg.Backend == "" {
		cfg.Backend = global.BackendXRay
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = global.DefaultMaxUploadAttempts
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = global.DefaultBackoffBase
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = global.DefaultBackoffCap
	}
	if cfg.UploadConcurrency == 0 {
		cfg.UploadConcurrency = global.DefaultUploadConcurrency
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = global.DefaultRequestTimeout
	}
	if cfg.BatchQueueSize == 0 {
		cfg.BatchQueueSize = global.DefaultBatchQueueSize
	}
	if cfg.BatchQueueSize > 0 {
		cfg.BatchQueueSize = ceilPowerOfTwo(cfg.BatchQueueSize)
	}
	if cfg.AWS.CredentialSource == "" {
		cfg.AWS.CredentialSource = global.CredentialsEnv
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = os.Getenv(global.RegionEnvVar)
	}

	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = global.DefaultDrainTimeout
	}

	// Scaling
	if cfg.AutoscaleCheckInterval == 0 {
		cfg.AutoscaleCheckInterval = global.DefaultAutoscaleInterval
	}

	// Metrics
	if cfg.MetricMaxAge == 0 {
		cfg.MetricMaxAge = global.DefaultMetricRetention
	}
	if cfg.MetricQueryServerPort == 0 {
		cfg.MetricQueryServerPort = global.HTTPListenPort
	}
	if cfg.MetricCollectionInterval == 0 {
		cfg.MetricCollectionInterval = global.DefaultMetricInterval
	}
}

// Rejects configurations the pipeline cannot run with
func (cfg Config) Validate() (err error) {
	var problems []string
	add := func(format string, vars ...any) {
		problems = append(problems, fmt.Sprintf(format, vars...))
	}

	if cfg.ListenPort < 0 || cfg.ListenPort > 65535 {
		add("listen port %d out of range", cfg.ListenPort)
	}
	if cfg.MaxDatagramBytes <= 0 || cfg.MaxDatagramBytes > global.MaxUDPPayload {
		add("max datagram size must be between 1 and %d bytes", global.MaxUDPPayload)
	}
	if cfg.DropPolicy != global.DropNewest && cfg.DropPolicy != global.DropOldest {
		add("unknown drop policy %q (expected %s or %s)", cfg.DropPolicy, global.DropNewest, global.DropOldest)
	}
	if cfg.QueueSize < 2 || cfg.MinQueueSize < 2 || cfg.MinQueueSize > cfg.MaxQueueSize {
		add("queue sizes must be at least 2 with min <= max")
	}
	if cfg.QueueSize > cfg.MaxQueueSize {
		add("queue.size %d (rounded up to a power of two) exceeds queue.max %d", cfg.QueueSize, cfg.MaxQueueSize)
	}
	if cfg.BatchQueueSize <= 0 {
		add("upload.queueSize must be positive, got %d", cfg.BatchQueueSize)
	}
	if cfg.MinListeners <= 0 || cfg.MinListeners > cfg.MaxListeners {
		add("listener workers must be positive and not exceed the maximum")
	}
	if cfg.MinDecoders <= 0 || cfg.MinDecoders > cfg.MaxDecoders {
		add("decode workers must be positive and not exceed the maximum")
	}
	if cfg.BatchMaxCount <= 0 || cfg.BatchMaxBytes <= 0 || cfg.FlushInterval <= 0 {
		add("batch limits and flush interval must be positive")
	}
	if cfg.MaxAttempts <= 0 || cfg.UploadConcurrency <= 0 || cfg.RequestTimeout <= 0 {
		add("upload attempts, concurrency and request timeout must be positive")
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffCap <= 0 || cfg.BackoffBase > cfg.BackoffCap {
		add("upload backoff base must be positive and not exceed the cap")
	}
	if cfg.DrainTimeout <= 0 {
		add("drain timeout must be positive")
	}

	switch cfg.Backend {
	case global.BackendXRay:
		switch cfg.AWS.CredentialSource {
		case global.CredentialsEnv, global.CredentialsFile, global.CredentialsProfile:
		default:
			add("unknown credential source %q", cfg.AWS.CredentialSource)
		}
	case global.BackendBeats:
		if cfg.BeatsAddress == "" {
			add("beats backend requires upload.beatsAddress")
		}
	case global.BackendStdout:
	default:
		add("unknown upload backend %q", cfg.Backend)
	}

	if len(problems) > 0 {
		err = fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return
}

// Smallest power of two >= value (minimum 2)
func ceilPowerOfTwo(value int) (rounded int) {
	if value <= 2 {
		rounded = 2
		return
	}
	rounded = 1 << bits.Len(uint(value-1))
	return
}

// Validates the configuration as the daemon would see it after defaults are applied
func (cfg Config) Check() (err error) {
	cfg.setDefaults()
	err = cfg.Validate()
	return
}
