package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"segmentd/internal/cli"
	"segmentd/internal/global"
	"segmentd/internal/logctx"

	"github.com/spf13/pflag"
)

func main() {
	global.CmdOpts = cli.DefineOptions()

	commandFlags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	commandFlags.SetInterspersed(false) // global options stop at the command name
	cli.SetGlobalArguments(commandFlags)

	commandFlags.Usage = func() {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, global.CmdOpts)
	}
	if len(os.Args) < 2 {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, global.CmdOpts)
		os.Exit(1)
	}
	commandFlags.Parse(os.Args[1:])
	if commandFlags.NArg() < 1 {
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, global.CmdOpts)
		os.Exit(1)
	}

	// Retrieve command and args
	command := commandFlags.Arg(0)
	args := commandFlags.Args()[1:]

	// Setting global logging
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logctx.NewLogger("global", global.Verbosity, ctx.Done()) // New logger tied to global
	logger.SetFormat(global.LogFormat)
	ctx = logctx.WithLogger(ctx, logger) // Add logger to global ctx
	logctx.StartWatcher(logger, os.Stdout)

	// Process commands
	switch command {
	case "run":
		cli.RunMode(ctx, command, args)
	case "emit":
		cli.EmitMode(ctx, command, args)
	case "replay":
		cli.ReplayMode(ctx, command, args)
	case "configure":
		cli.SetupMode(ctx, command, args)
	case "version":
		if len(args) > 0 && (args[0] == "--verbosity" || args[0] == "-v") {
			fmt.Printf("%s %s\n", global.ProgBaseName, global.ProgVersion)
			fmt.Printf("Built using %s(%s) for %s on %s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH)
		} else {
			fmt.Println(global.ProgVersion)
		}
	default:
		cli.PrintHelpMenu(commandFlags, cli.RootCLICommand, global.CmdOpts)
		os.Exit(1)
	}

	// Finish up any stdout writes for global logger
	cancel()
	logger.Wake()
	logger.Wait()
}
