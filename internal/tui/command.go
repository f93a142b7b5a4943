package tui

import "strings"

// Command is a parsed ':' command line.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':'). The name
// is lowercased; the arguments keep their case.
func ParseCommand(input string) Command {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	return Command{
		Name: strings.ToLower(strings.TrimPrefix(name, ":")),
		Args: strings.TrimSpace(args),
	}
}

// Arg returns the i-th whitespace separated argument, or empty.
func (c Command) Arg(i int) string {
	fields := strings.Fields(c.Args)
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
