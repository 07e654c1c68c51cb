package cli

import (
	"context"
	"fmt"
	"os"
	"segmentd/internal/collector"
)

// Runs the collector daemon in the foreground until it has drained
func RunMode(ctx context.Context, commandname string, args []string) {
	var configPath string
	var checkOnly bool

	commandFlags := newCommandFlags(commandname)
	SetCommon(commandFlags, &configPath)
	commandFlags.BoolVar(&checkOnly, "check", false, "Validate the configuration file and exit")
	commandFlags.Parse(args)
	applyGlobalArguments(ctx)

	fileCfg, err := collector.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	daemonConfig, err := fileCfg.NewDaemonConf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if checkOnly {
		err = daemonConfig.Check()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration '%s' is valid\n", configPath)
		return
	}

	daemon := collector.NewDaemon(daemonConfig)
	err = daemon.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	daemon.Run()
}
