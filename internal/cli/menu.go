package cli

import (
	"fmt"
	"io"
	"os"
	"segmentd/internal/global"
	"strings"

	"github.com/spf13/pflag"
)

const (
	RootCLICommand  string = "root"
	helpMenuTrailer string = `
Send a test segment:  segmentd emit --count 3
Query live metrics:   curl http://localhost:22000/discover/
`
)

// Full standardized help menu (wraps option printer as well)
func PrintHelpMenu(fs *pflag.FlagSet, command string, rootCmd *global.CommandSet) {
	writeHelpMenu(os.Stdout, os.Args[0], fs, command, rootCmd)
}

func writeHelpMenu(w io.Writer, program string, fs *pflag.FlagSet, command string, rootCmd *global.CommandSet) {
	const baseIndentSpaces = 2

	var curCmdSet *global.CommandSet
	usageParts := []string{program}

	// Find the command in tree
	if command == "" || command == RootCLICommand {
		curCmdSet = rootCmd
	} else if cmd, ok := rootCmd.ChildCommands[command]; ok {
		curCmdSet = cmd
		usageParts = append(usageParts, cmd.CommandName)
	} else {
		fmt.Fprintf(w, "Unknown command: %s\n", command)
		return
	}

	if curCmdSet.UsageOption != "" {
		usageParts = append(usageParts, curCmdSet.UsageOption)
	}
	if fs != nil && fs.HasAvailableFlags() {
		usageParts = append(usageParts, "[options]")
	}

	fmt.Fprintf(w, "Usage: %s\n\n", strings.Join(usageParts, " "))

	// Description
	if curCmdSet == rootCmd {
		fmt.Fprintln(w, curCmdSet.Description)
		fmt.Fprintln(w, curCmdSet.FullDescription)
		fmt.Fprintln(w)
	} else if curCmdSet.FullDescription != "" {
		fmt.Fprintln(w, "  Description:")
		fmt.Fprintf(w, "    %s\n\n", curCmdSet.FullDescription)
	}

	// Subcommands
	if len(curCmdSet.ChildCommands) > 0 {
		indent := strings.Repeat(" ", baseIndentSpaces)
		fmt.Fprintf(w, "%sCommands:\n", indent)

		subNames := curCmdSet.ChildNames()
		maxLen := 0
		for _, name := range subNames {
			maxLen = max(maxLen, len(name))
		}

		cmdIndent := strings.Repeat(" ", baseIndentSpaces+2)
		for _, name := range subNames {
			fmt.Fprintf(w, "%s%-*s - %s\n", cmdIndent, maxLen+1, name, curCmdSet.ChildCommands[name].Description)
		}
		fmt.Fprintln(w)
	}

	if fs != nil {
		printFlagOptions(w, fs, baseIndentSpaces)
	}

	if curCmdSet == rootCmd {
		fmt.Fprint(w, helpMenuTrailer)
	}
}

// Aligned option list, long-only flags indented past the short column
func printFlagOptions(w io.Writer, fs *pflag.FlagSet, baseIndentSpaces int) {
	const argToUsageSpaces int = 2 // like "  -t, --test[  ]Some usage text"
	const shortColumn string = "-x, "

	type optInfo struct {
		left  string
		usage string
	}

	var opts []optInfo
	fs.VisitAll(func(arg *pflag.Flag) {
		if arg.Hidden {
			return
		}

		left := strings.Repeat(" ", len(shortColumn)) + "--" + arg.Name
		if arg.Shorthand != "" {
			left = "-" + arg.Shorthand + ", --" + arg.Name
		}
		if arg.Value.Type() != "bool" {
			left += " " + arg.Value.Type()
		}

		// Skip printing any "empty" defaults
		desc := arg.Usage
		switch arg.DefValue {
		case "", "false", "0", "[]", "map[]":
		default:
			desc += fmt.Sprintf(" [default: %s]", arg.DefValue)
		}

		opts = append(opts, optInfo{left: left, usage: desc})
	})
	if len(opts) == 0 {
		return
	}

	maxLen := 0
	for _, opt := range opts {
		maxLen = max(maxLen, len(opt.left))
	}

	indent := strings.Repeat(" ", baseIndentSpaces)
	fmt.Fprintf(w, "%sOptions:\n", indent)
	for _, opt := range opts {
		padding := strings.Repeat(" ", maxLen-len(opt.left)+argToUsageSpaces)
		fmt.Fprintf(w, "%s%s%s%s\n", indent, opt.left, padding, opt.usage)
	}
}
