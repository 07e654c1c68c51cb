package global

import "time"

const (
	// Descriptive Names for available verbosity levels
	VerbosityNone int = iota
	VerbosityStandard
	VerbosityProgress
	VerbosityData
	VerbosityFullData
	VerbosityDebug

	// Descriptive names for available severity levels
	ErrorLog string = "Error"
	WarnLog  string = "Warn"
	InfoLog  string = "Info"
)

const (
	ProgBaseName string = "segmentd"
	ProgVersion  string = "v0.3.0"

	// Context keys
	LoggerKey  CtxKey = "logger"  // Event queue (mostly for variable log verbosity handling)
	LogTagsKey CtxKey = "logtags" // List of tags in order of broad->specific appended/popped at various parts of the program

	DefaultConfigPath   string = "/etc/segmentd/segmentd.json"
	DefaultConfigDir    string = "/etc/segmentd"
	DefaultSpoolDir     string = "/var/spool/segmentd"
	DefaultBinaryPath   string = "/usr/local/bin/segmentd"
	DefaultUnitPath     string = "/etc/systemd/system/segmentd.service"
	DefaultListenAddr   string = "127.0.0.1"
	DefaultListenPort   int    = 2000
	DaemonAddressEnvVar string = "AWS_XRAY_DAEMON_ADDRESS"
	RegionEnvVar        string = "AWS_REGION"

	// Datagram limits
	MaxUDPPayload       int = 65507
	DefaultMinQueueSize int = 512
	DefaultQueueSize    int = 1024
	DefaultMaxQueueSize int = 16384

	// Batching defaults
	DefaultMaxBatchCount      int           = 50
	DefaultMaxBatchBytes      int           = 1 << 20
	DefaultFlushInterval      time.Duration = 1 * time.Second
	DefaultMaxUploadAttempts  int           = 5
	DefaultBackoffBase        time.Duration = 100 * time.Millisecond
	DefaultBackoffCap         time.Duration = 10 * time.Second
	DefaultUploadConcurrency  int           = 4
	DefaultRequestTimeout     time.Duration = 5 * time.Second
	DefaultDrainTimeout       time.Duration = 10 * time.Second
	DefaultBatchQueueSize     int           = 64
	DefaultAutoscaleInterval  time.Duration = 5 * time.Second
	DefaultMetricInterval     time.Duration = 15 * time.Second
	DefaultMetricRetention    time.Duration = 1 * time.Hour
	DefaultBeatsTimeout       time.Duration = 3 * time.Second
	SocketDrainPollInterval   time.Duration = 20 * time.Millisecond
	ControllerShutdownTimeout time.Duration = 30 * time.Second

	// Drop policies for full queues
	DropNewest string = "newest"
	DropOldest string = "oldest"

	// Upload backends
	BackendXRay   string = "xray"
	BackendBeats  string = "beats"
	BackendStdout string = "stdout"

	// Credential sources
	CredentialsEnv     string = "env"
	CredentialsFile    string = "file"
	CredentialsProfile string = "profile"

	// Metric HTTP server
	HTTPListenPort   int           = 22000
	HTTPListenAddr   string        = "localhost" // Metric queries only exposed to local machine
	HTTPReadTimeout  time.Duration = 30 * time.Second
	HTTPWriteTimeout time.Duration = 10 * time.Second
	HTTPIdleTimeout  time.Duration = 180 * time.Second
	DiscoveryPath    string        = "/discover/"
	DataPath         string        = "/data/"
	AggregationPath  string        = "/aggregate/"
	PrometheusPath   string        = "/metrics"

	// Namespacing Name Components
	NSMetric    string = "Metrics"
	NSMetricSrv string = "Server"
	NSPromSrv   string = "Prometheus"
	NSTest      string = "Test"
	NSCLI       string = "CLI"
	NSDaemon    string = "Collector"
	NSDecode    string = "Decoder"
	NSBuffer    string = "Buffer"
	NSUpload    string = "Uploader"
	NSQueue     string = "Queue"
	NSListen    string = "Listener"
	NSWorker    string = "Worker"
	NSScaler    string = "Scaler"
	NSSpool     string = "Spool"
	NSmInput    string = "In"
	NSmProc     string = "Proc"
	NSoXRay     string = "XRay"
	NSoBeats    string = "Beats"
	NSoStdout   string = "Stdout"
)
