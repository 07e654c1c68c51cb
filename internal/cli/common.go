package cli

import (
	"context"
	"segmentd/internal/global"
	"segmentd/internal/logctx"

	"github.com/spf13/pflag"
)

func SetGlobalArguments(fs *pflag.FlagSet) {
	fs.IntVarP(&global.Verbosity, "verbosity", "v", global.VerbosityStandard, "Increase detailed progress messages (Higher is more verbose) <0...5>")
	fs.StringVar(&global.LogFormat, "log-format", "text", "Log line format <text|json>")
}

func SetCommon(fs *pflag.FlagSet, configPath *string) {
	fs.StringVarP(configPath, "config", "c", global.DefaultConfigPath, "Path to the configuration file")
}

// Reapplies global flags given after the subcommand
func applyGlobalArguments(ctx context.Context) {
	logctx.SetLogLevel(ctx, global.Verbosity)
	logger := logctx.GetLogger(ctx)
	if logger != nil {
		logger.SetFormat(global.LogFormat)
	}
}

// New flag set for a subcommand, with help wired to the custom menu
func newCommandFlags(commandname string) (fs *pflag.FlagSet) {
	fs = pflag.NewFlagSet(commandname, pflag.ExitOnError)
	fs.SortFlags = false
	SetGlobalArguments(fs)
	fs.Usage = func() {
		PrintHelpMenu(fs, commandname, global.CmdOpts)
	}
	return
}
