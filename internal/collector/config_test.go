package collector

import (
	"os"
	"path/filepath"
	"segmentd/internal/global"
	"strings"
	"testing"
	"time"
)

const jsoncConfig = `{
	// Local agent
	"listen": {"address": "0.0.0.0", "port": 2100, "workers": 2},
	"queue": {"size": 1000, "dropPolicy": "oldest"},
	"batch": {"maxCount": 10, "flushInterval": "250ms"},
	"upload": {
		"backend": "beats",
		"beatsAddress": "127.0.0.1:5044",
		"backoffBase": "50ms",
		"backoffCap": "2s", /* trailing comma next */
	},
	"drainTimeout": "3s",
}`

const yamlConfig = `
listen:
  address: 127.0.0.2
  port: 2200
decode:
  workers: 3
upload:
  backend: stdout
  maxAttempts: 2
  requestTimeout: 1s
metrics:
  enableHTTPQueryServer: true
  prometheusAddress: 127.0.0.1:9464
autoscaling:
  enabled: true
  maxDecoders: 6
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		file  string
		body  string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "json with comments",
			file: "segmentd.json",
			body: jsoncConfig,
			check: func(t *testing.T, cfg Config) {
				if cfg.ListenIP != "0.0.0.0" || cfg.ListenPort != 2100 || cfg.MinListeners != 2 {
					t.Errorf("listen = %s:%d x%d", cfg.ListenIP, cfg.ListenPort, cfg.MinListeners)
				}
				if cfg.DropPolicy != global.DropOldest || cfg.QueueSize != 1000 {
					t.Errorf("queue = %d %s", cfg.QueueSize, cfg.DropPolicy)
				}
				if cfg.FlushInterval != 250*time.Millisecond || cfg.BatchMaxCount != 10 {
					t.Errorf("batch = %d %s", cfg.BatchMaxCount, cfg.FlushInterval)
				}
				if cfg.BackoffBase != 50*time.Millisecond || cfg.BackoffCap != 2*time.Second {
					t.Errorf("backoff = %s-%s", cfg.BackoffBase, cfg.BackoffCap)
				}
				if cfg.Backend != global.BackendBeats || cfg.BeatsAddress != "127.0.0.1:5044" {
					t.Errorf("backend = %s %s", cfg.Backend, cfg.BeatsAddress)
				}
				if cfg.DrainTimeout != 3*time.Second {
					t.Errorf("drain timeout = %s", cfg.DrainTimeout)
				}
			},
		},
		{
			name: "yaml",
			file: "segmentd.yaml",
			body: yamlConfig,
			check: func(t *testing.T, cfg Config) {
				if cfg.ListenIP != "127.0.0.2" || cfg.ListenPort != 2200 {
					t.Errorf("listen = %s:%d", cfg.ListenIP, cfg.ListenPort)
				}
				if cfg.MinDecoders != 3 || cfg.MaxDecoders != 6 || !cfg.AutoscaleEnabled {
					t.Errorf("decoders = %d..%d autoscale=%v", cfg.MinDecoders, cfg.MaxDecoders, cfg.AutoscaleEnabled)
				}
				if cfg.Backend != global.BackendStdout || cfg.MaxAttempts != 2 || cfg.RequestTimeout != time.Second {
					t.Errorf("upload = %s %d %s", cfg.Backend, cfg.MaxAttempts, cfg.RequestTimeout)
				}
				if !cfg.MetricQueryServerEnabled || cfg.PrometheusAddress != "127.0.0.1:9464" {
					t.Errorf("metrics = %v %s", cfg.MetricQueryServerEnabled, cfg.PrometheusAddress)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			fileCfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			cfg, err := fileCfg.NewDaemonConf()
			if err != nil {
				t.Fatalf("NewDaemonConf: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.json")
	os.WriteFile(broken, []byte(`{"listen": `), 0o600)

	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(broken); err == nil {
		t.Error("expected syntax error")
	}

	var fileCfg FileConfig
	fileCfg.Batch.FlushInterval = "soon"
	if _, err := fileCfg.NewDaemonConf(); err == nil || !strings.Contains(err.Error(), "flush interval") {
		t.Errorf("expected flush interval parse error, got %v", err)
	}
}

func TestSetDefaults(t *testing.T) {
	t.Setenv(global.DaemonAddressEnvVar, "")
	t.Setenv(global.RegionEnvVar, "eu-west-1")

	var cfg Config
	cfg.QueueSize = 1000
	cfg.setDefaults()

	if cfg.ListenIP != global.DefaultListenAddr || cfg.ListenPort != global.DefaultListenPort {
		t.Errorf("listen = %s:%d", cfg.ListenIP, cfg.ListenPort)
	}
	if cfg.QueueSize != 1024 {
		t.Errorf("queue size rounded to %d, want 1024", cfg.QueueSize)
	}
	if cfg.DropPolicy != global.DropNewest || cfg.Backend != global.BackendXRay {
		t.Errorf("policy/backend = %s/%s", cfg.DropPolicy, cfg.Backend)
	}
	if cfg.BatchMaxCount != 50 || cfg.BatchMaxBytes != 1<<20 || cfg.FlushInterval != time.Second {
		t.Errorf("batch defaults = %d/%d/%s", cfg.BatchMaxCount, cfg.BatchMaxBytes, cfg.FlushInterval)
	}
	if cfg.MaxAttempts != 5 || cfg.BackoffBase != 100*time.Millisecond || cfg.BackoffCap != 10*time.Second {
		t.Errorf("upload defaults = %d/%s/%s", cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffCap)
	}
	if cfg.AWS.Region != "eu-west-1" || cfg.AWS.CredentialSource != global.CredentialsEnv {
		t.Errorf("aws = %+v", cfg.AWS)
	}
	if cfg.DrainTimeout != global.DefaultDrainTimeout {
		t.Errorf("drain timeout = %s", cfg.DrainTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestSetDefaults_DaemonAddressEnv(t *testing.T) {
	t.Setenv(global.DaemonAddressEnvVar, "10.1.2.3:3000")

	var cfg Config
	cfg.setDefaults()
	if cfg.ListenIP != "10.1.2.3" || cfg.ListenPort != 3000 {
		t.Errorf("listen = %s:%d", cfg.ListenIP, cfg.ListenPort)
	}

	explicit := Config{ListenIP: "127.0.0.1", ListenPort: 2000}
	explicit.setDefaults()
	if explicit.ListenIP != "127.0.0.1" || explicit.ListenPort != 2000 {
		t.Errorf("explicit listen overridden: %s:%d", explicit.ListenIP, explicit.ListenPort)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"valid", func(cfg *Config) {}, ""},
		{"unknown drop policy", func(cfg *Config) { cfg.DropPolicy = "random" }, "drop policy"},
		{"negative batch count", func(cfg *Config) { cfg.BatchMaxCount = -1 }, "batch limits"},
		{"base above cap", func(cfg *Config) { cfg.BackoffBase = time.Minute }, "backoff"},
		{"beats without address", func(cfg *Config) { cfg.Backend = global.BackendBeats }, "beatsAddress"},
		{"unknown backend", func(cfg *Config) { cfg.Backend = "kafka" }, "unknown upload backend"},
		{"unknown credential source", func(cfg *Config) { cfg.AWS.CredentialSource = "vault" }, "credential source"},
		{"oversize datagram limit", func(cfg *Config) { cfg.MaxDatagramBytes = 70000 }, "datagram"},
		{"min decoders above max", func(cfg *Config) { cfg.MinDecoders = 4; cfg.MaxDecoders = 2 }, "decode workers"},
		{"negative queue size", func(cfg *Config) { cfg.QueueSize = -8 }, "queue sizes"},
		{"queue size above max", func(cfg *Config) { cfg.QueueSize = 4096; cfg.MaxQueueSize = 2048 }, "exceeds queue.max"},
		{"queue size rounds above max", func(cfg *Config) { cfg.QueueSize = 1000; cfg.MaxQueueSize = 1000 }, "exceeds queue.max"},
		{"negative upload queue size", func(cfg *Config) { cfg.BatchQueueSize = -1 }, "upload.queueSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Mutations apply before defaults, as a loaded file would
			cfg := Config{AWS: xrayRegion("us-east-1")}
			tt.mutate(&cfg)
			cfg.setDefaults()

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCeilPowerOfTwo(t *testing.T) {
	tests := map[int]int{0: 2, 1: 2, 2: 2, 3: 4, 64: 64, 65: 128, 1000: 1024}
	for in, want := range tests {
		if got := ceilPowerOfTwo(in); got != want {
			t.Errorf("ceilPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
