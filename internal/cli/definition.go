package cli

import "segmentd/internal/global"

func DefineOptions() (cmdOpts *global.CommandSet) {
	// Root level
	root := &global.CommandSet{
		Description:     "Trace Segment Collector (segmentd)",
		FullDescription: "  Receives trace segments over UDP, batches them, and uploads to an ingestion API",
		CommandName:     RootCLICommand,
		UsageOption:     "[command]",
		ChildCommands:   make(map[string]*global.CommandSet),
	}

	root.ChildCommands["run"] = &global.CommandSet{
		CommandName:     "run",
		Description:     "Run the Collector Daemon",
		FullDescription: "Listens for segment datagrams, decodes and batches them, and uploads batches with bounded retry until signalled to drain",
	}

	root.ChildCommands["emit"] = &global.CommandSet{
		CommandName:     "emit",
		Description:     "Send Test Segments",
		FullDescription: "Generates segments (optionally with subsegments) and sends them to a running daemon",
	}

	root.ChildCommands["replay"] = &global.CommandSet{
		CommandName:     "replay",
		Description:     "Re-send Spooled Batches",
		FullDescription: "Uploads batches the daemon discarded to the spool directory, removing each one once accepted",
	}

	root.ChildCommands["configure"] = &global.CommandSet{
		CommandName:     "configure",
		Description:     "Setup Actions",
		FullDescription: "Write a template configuration or install the systemd service",
	}

	root.ChildCommands["version"] = &global.CommandSet{
		CommandName:     "version",
		Description:     "Show Version Information",
		FullDescription: "Display meta information about program",
	}

	cmdOpts = root
	return
}
