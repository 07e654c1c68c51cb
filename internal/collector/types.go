package collector

import (
	"context"
	"io"
	"net/http"
	"segmentd/internal/collector/metrics"
	"segmentd/internal/collector/shared"
	"segmentd/internal/externalio/xray"
	"sync"
	"time"
)

// On-disk configuration (JSON with comments, or YAML)
type FileConfig struct {
	Listen struct {
		Address          string `json:"address" yaml:"address"`
		Port             int    `json:"port" yaml:"port"`
		Workers          int    `json:"workers,omitempty" yaml:"workers,omitempty"`
		MaxDatagramBytes int    `json:"maxDatagramBytes,omitempty" yaml:"maxDatagramBytes,omitempty"`
		ReceiveBuffer    int    `json:"receiveBufferBytes,omitempty" yaml:"receiveBufferBytes,omitempty"`
	} `json:"listen" yaml:"listen"`
	Queue struct {
		Size       int    `json:"size,omitempty" yaml:"size,omitempty"`
		Min        int    `json:"min,omitempty" yaml:"min,omitempty"`
		Max        int    `json:"max,omitempty" yaml:"max,omitempty"`
		DropPolicy string `json:"dropPolicy,omitempty" yaml:"dropPolicy,omitempty"`
	} `json:"queue" yaml:"queue"`
	Decode struct {
		Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
	} `json:"decode" yaml:"decode"`
	Batch struct {
		MaxCount      int    `json:"maxCount,omitempty" yaml:"maxCount,omitempty"`
		MaxBytes      int    `json:"maxBytes,omitempty" yaml:"maxBytes,omitempty"`
		FlushInterval string `json:"flushInterval,omitempty" yaml:"flushInterval,omitempty"`
	} `json:"batch" yaml:"batch"`
	Upload struct {
		Backend        string `json:"backend,omitempty" yaml:"backend,omitempty"`
		MaxAttempts    int    `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
		BackoffBase    string `json:"backoffBase,omitempty" yaml:"backoffBase,omitempty"`
		BackoffCap     string `json:"backoffCap,omitempty" yaml:"backoffCap,omitempty"`
		Concurrency    int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
		RequestTimeout string `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
		QueueSize      int    `json:"queueSize,omitempty" yaml:"queueSize,omitempty"`
		SpoolDir       string `json:"spoolDir,omitempty" yaml:"spoolDir,omitempty"`
		BeatsAddress   string `json:"beatsAddress,omitempty" yaml:"beatsAddress,omitempty"`
	} `json:"upload" yaml:"upload"`
	AWS struct {
		Region           string `json:"region,omitempty" yaml:"region,omitempty"`
		Endpoint         string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
		CredentialSource string `json:"credentialSource,omitempty" yaml:"credentialSource,omitempty"`
		CredentialsFile  string `json:"credentialsFile,omitempty" yaml:"credentialsFile,omitempty"`
		Profile          string `json:"profile,omitempty" yaml:"profile,omitempty"`
	} `json:"aws" yaml:"aws"`
	DrainTimeout string `json:"drainTimeout,omitempty" yaml:"drainTimeout,omitempty"`
	Metrics      struct {
		Interval          string `json:"collectionInterval,omitempty" yaml:"collectionInterval,omitempty"`
		MaxAge            string `json:"maximumRetention,omitempty" yaml:"maximumRetention,omitempty"`
		EnableQueryServer bool   `json:"enableHTTPQueryServer" yaml:"enableHTTPQueryServer"`
		QueryServerPort   int    `json:"queryServerPort,omitempty" yaml:"queryServerPort,omitempty"`
		PrometheusAddress string `json:"prometheusAddress,omitempty" yaml:"prometheusAddress,omitempty"`
	} `json:"metrics" yaml:"metrics"`
	AutoScaling struct {
		Enabled      bool   `json:"enabled" yaml:"enabled"`
		PollInterval string `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
		MaxListeners int    `json:"maxListeners,omitempty" yaml:"maxListeners,omitempty"`
		MaxDecoders  int    `json:"maxDecoders,omitempty" yaml:"maxDecoders,omitempty"`
	} `json:"autoscaling" yaml:"autoscaling"`
}

type Config struct {
	// Network
	ListenIP           string
	ListenPort         int
	MaxDatagramBytes   int
	ReceiveBufferBytes int

	// Decode queue
	QueueSize    int
	MinQueueSize int
	MaxQueueSize int
	DropPolicy   string

	// Worker scaling boundaries
	MinListeners int
	MaxListeners int
	MinDecoders  int
	MaxDecoders  int

	// Batching
	BatchMaxCount int
	BatchMaxBytes int
	FlushInterval time.Duration

	// Upload
	Backend           string
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	UploadConcurrency int
	RequestTimeout    time.Duration
	BatchQueueSize    int
	SpoolDir          string
	BeatsAddress      string
	AWS               xray.Config
	Output            io.Writer // stdout backend destination, nil is os.Stdout

	DrainTimeout time.Duration

	// Scaling
	AutoscaleEnabled       bool
	AutoscaleCheckInterval time.Duration

	// Metrics
	MetricQueryServerEnabled bool
	MetricQueryServerPort    int
	MetricCollectionInterval time.Duration
	MetricMaxAge             time.Duration
	PrometheusAddress        string
}

type Daemon struct {
	cfg   Config
	state stateMachine

	// Guards the fields below against Shutdown racing Start
	mu              sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc
	startCalled     bool
	shutdownPending bool // Shutdown arrived mid startup, honoured once running

	done     chan struct{} // closed once the daemon has stopped
	stopOnce sync.Once

	wg sync.WaitGroup

	Mgrs             shared.Managers
	metricsCollector *metrics.Gatherer
	MetricServer     *http.Server
	PromServer       *http.Server
}
