// Setup helpers: template configuration and the systemd service
package install

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"segmentd/internal/collector"
	"segmentd/internal/global"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// True when stdin and stdout are both a terminal
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Asks before replacing an existing file. Non-interactive callers never overwrite.
func ConfirmOverwrite(path string, in io.Reader, out io.Writer, interactive bool) (proceed bool, err error) {
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		err = nil
		proceed = true
		return
	}
	if err != nil {
		err = fmt.Errorf("failed checking '%s': %w", path, err)
		return
	}

	// No terminal - no overwrite
	if !interactive {
		fmt.Fprintf(out, "Existing file present at '%s', not overwriting\n", path)
		return
	}

	fmt.Fprintf(out, "File already exists at '%s'. Are you SURE you want to overwrite it? (yes/no): ", path)
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if strings.ToLower(input) != "yes" {
		fmt.Fprintf(out, "Not overwriting '%s'\n", path)
		return
	}
	proceed = true
	return
}

// Starting point configuration with every section filled in
func TemplateConfig() (newCfg collector.FileConfig) {
	newCfg.Listen.Address = global.DefaultListenAddr
	newCfg.Listen.Port = global.DefaultListenPort
	newCfg.Listen.Workers = 1
	newCfg.Listen.MaxDatagramBytes = global.MaxUDPPayload
	newCfg.Listen.ReceiveBuffer = 4 << 20

	newCfg.Queue.Size = global.DefaultQueueSize
	newCfg.Queue.Min = global.DefaultMinQueueSize
	newCfg.Queue.Max = global.DefaultMaxQueueSize
	newCfg.Queue.DropPolicy = global.DropNewest

	newCfg.Decode.Workers = 2

	newCfg.Batch.MaxCount = global.DefaultMaxBatchCount
	newCfg.Batch.MaxBytes = global.DefaultMaxBatchBytes
	newCfg.Batch.FlushInterval = global.DefaultFlushInterval.String()

	newCfg.Upload.Backend = global.BackendXRay
	newCfg.Upload.MaxAttempts = global.DefaultMaxUploadAttempts
	newCfg.Upload.BackoffBase = global.DefaultBackoffBase.String()
	newCfg.Upload.BackoffCap = global.DefaultBackoffCap.String()
	newCfg.Upload.Concurrency = global.DefaultUploadConcurrency
	newCfg.Upload.RequestTimeout = global.DefaultRequestTimeout.String()
	newCfg.Upload.QueueSize = global.DefaultBatchQueueSize
	newCfg.Upload.SpoolDir = global.DefaultSpoolDir

	newCfg.AWS.Region = "us-east-1"
	newCfg.AWS.CredentialSource = global.CredentialsEnv

	newCfg.DrainTimeout = global.DefaultDrainTimeout.String()

	newCfg.Metrics.Interval = global.DefaultMetricInterval.String()
	newCfg.Metrics.MaxAge = global.DefaultMetricRetention.String()
	newCfg.Metrics.QueryServerPort = global.HTTPListenPort

	newCfg.AutoScaling.Enabled = true
	newCfg.AutoScaling.PollInterval = global.DefaultAutoscaleInterval.String()
	newCfg.AutoScaling.MaxListeners = 4
	newCfg.AutoScaling.MaxDecoders = 8
	return
}

// Writes the template config. YAML for .yaml/.yml paths, JSON otherwise.
func CreateTemplateConfig(path string) (err error) {
	if path == "" {
		err = fmt.Errorf("specify template file path via the --config/-c arguments")
		return
	}

	newCfg := TemplateConfig()

	var confBytes []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		confBytes, err = yaml.Marshal(newCfg)
	default:
		confBytes, err = json.MarshalIndent(newCfg, "", "  ")
		confBytes = append(confBytes, '\n')
	}
	if err != nil {
		err = fmt.Errorf("error marshaling new config: %w", err)
		return
	}

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		err = fmt.Errorf("failed to create configuration directory: %w", err)
		return
	}

	err = os.WriteFile(path, confBytes, 0o600)
	if err != nil {
		err = fmt.Errorf("failed to write config to file: %w", err)
		return
	}
	return
}
