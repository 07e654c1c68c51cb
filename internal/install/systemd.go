package install

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const unitTemplate = `[Unit]
Description=Trace segment collector
After=network-online.target
Wants=network-online.target

[Service]
Type=notify
ExecStart=$executableFilePath run --config $configFilePath
Restart=on-failure
RestartSec=5s
TimeoutStopSec=45s
KillSignal=SIGTERM
NoNewPrivileges=true
ProtectSystem=strict
ProtectHome=true
PrivateTmp=true
StateDirectory=segmentd
ReadWritePaths=$spoolDir

[Install]
WantedBy=multi-user.target
`

// Unit file content for the given install locations
func RenderUnit(binaryPath, configPath, spoolDir string) (unit string) {
	unit = strings.NewReplacer(
		"$executableFilePath", binaryPath,
		"$configFilePath", configPath,
		"$spoolDir", spoolDir,
	).Replace(unitTemplate)
	return
}

// Writes and enables the systemd service (idempotent)
func InstallService(unitFilePath, binaryPath, configPath, spoolDir string) (err error) {
	unitName := filepath.Base(unitFilePath)

	err = os.WriteFile(unitFilePath, []byte(RenderUnit(binaryPath, configPath, spoolDir)), 0o644)
	if err != nil {
		err = fmt.Errorf("failed to write unit file: %w", err)
		return
	}

	// Reload for new unit file
	output, err := exec.Command("systemctl", "daemon-reload").CombinedOutput()
	if err != nil {
		err = fmt.Errorf("failed to reload systemd units: %w: %s", err, string(output))
		return
	}

	// Disabled status is exit code 1
	output, err = exec.Command("systemctl", "is-enabled", unitName).CombinedOutput()
	if err != nil && !strings.Contains(string(output), "disabled") {
		err = fmt.Errorf("failed to check systemd service enablement status: %w: %s", err, string(output))
		return
	}
	err = nil

	if strings.ToLower(strings.TrimSpace(string(output))) != "enabled" {
		output, err = exec.Command("systemctl", "enable", unitName).CombinedOutput()
		if err != nil {
			err = fmt.Errorf("failed to enable systemd service: %w: %s", err, string(output))
			return
		}
	}

	fmt.Printf("Successfully installed systemd service\n")
	fmt.Printf("  IMPORTANT: modify the configuration to your needs and start the service with 'systemctl start %s'\n", unitName)
	return
}

// Stops, disables and deletes the systemd service
func RemoveService(unitFilePath string) (err error) {
	unitName := filepath.Base(unitFilePath)

	output, err := exec.Command("systemctl", "is-enabled", unitName).CombinedOutput()
	if err != nil {
		status := string(output)
		if !strings.Contains(status, "not-found") && !strings.Contains(status, "disabled") {
			err = fmt.Errorf("failed to check systemd service enablement status: %w: %s", err, status)
			return
		}
		err = nil
	}
	if strings.ToLower(strings.TrimSpace(string(output))) == "enabled" {
		output, err = exec.Command("systemctl", "disable", "--now", unitName).CombinedOutput()
		if err != nil {
			err = fmt.Errorf("failed to disable systemd service: %w: %s", err, string(output))
			return
		}
	}

	err = os.Remove(unitFilePath)
	if err != nil && !os.IsNotExist(err) {
		err = fmt.Errorf("failed to remove unit file: %w", err)
		return
	}
	err = nil

	output, err = exec.Command("systemctl", "daemon-reload").CombinedOutput()
	if err != nil {
		err = fmt.Errorf("failed to reload systemd units: %w: %s", err, string(output))
		return
	}

	fmt.Printf("Successfully uninstalled systemd service\n")
	return
}
