package cli

import (
	"context"
	"fmt"
	"os"
	"segmentd/internal/global"
	"segmentd/internal/install"
)

// Setup/installation options
func SetupMode(ctx context.Context, commandname string, args []string) {
	var templatePath string
	var installService bool
	var uninstallService bool
	var configPath string
	var binaryPath string

	commandFlags := newCommandFlags(commandname)
	commandFlags.StringVar(&templatePath, "config-template", "", "Write a template config to this path (.json or .yaml)")
	commandFlags.BoolVar(&installService, "install-service", false, "Install/Upgrade and enable the systemd service")
	commandFlags.BoolVar(&uninstallService, "uninstall-service", false, "Stop and remove the systemd service")
	commandFlags.StringVarP(&configPath, "config", "c", global.DefaultConfigPath, "Config path used by the installed service")
	commandFlags.StringVar(&binaryPath, "binary", global.DefaultBinaryPath, "Executable path used by the installed service")

	if len(args) < 1 {
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
		os.Exit(1)
	}
	commandFlags.Parse(args)
	applyGlobalArguments(ctx)

	var err error
	switch {
	case templatePath != "":
		var proceed bool
		proceed, err = install.ConfirmOverwrite(templatePath, os.Stdin, os.Stdout, install.Interactive())
		if err == nil && proceed {
			err = install.CreateTemplateConfig(templatePath)
			if err == nil {
				fmt.Printf("Successfully wrote template configuration file to '%s'\n", templatePath)
			}
		}
	case installService, uninstallService:
		// Must run as root
		if os.Geteuid() != 0 {
			fmt.Fprintf(os.Stderr, "Service installation must be run as root\n")
			os.Exit(1)
		}
		if installService {
			err = install.InstallService(global.DefaultUnitPath, binaryPath, configPath, global.DefaultSpoolDir)
		} else {
			err = install.RemoveService(global.DefaultUnitPath)
		}
	default:
		PrintHelpMenu(commandFlags, commandname, global.CmdOpts)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
