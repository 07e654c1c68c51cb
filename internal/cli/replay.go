package cli

import (
	"context"
	"fmt"
	"os"
	"segmentd/internal/collector"
)

// Re-sends spooled batches through the configured backend
func ReplayMode(ctx context.Context, commandname string, args []string) {
	var configPath string
	var spoolDir string

	commandFlags := newCommandFlags(commandname)
	SetCommon(commandFlags, &configPath)
	commandFlags.StringVarP(&spoolDir, "dir", "d", "", "Spool directory (overrides upload.spoolDir)")
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

	result, err := collector.Replay(ctx, daemonConfig, spoolDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Replayed %d batches (%d segments), %d left in spool\n", result.Replayed, result.Segments, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
