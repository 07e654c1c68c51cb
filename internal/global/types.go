package global

import "sort"

// Node in the CLI command tree, rendered by the help menu
type CommandSet struct {
	CommandName     string
	UsageOption     string // positional placeholder shown after the command name
	Description     string // one line, shown in the parent's command list
	FullDescription string
	ChildCommands   map[string]*CommandSet
}

// Child command names in display order
func (set *CommandSet) ChildNames() (names []string) {
	names = make([]string, 0, len(set.ChildCommands))
	for name := range set.ChildCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Context value keys
type CtxKey string
