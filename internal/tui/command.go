package tui

import (
	"fmt"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"o":       "open",
	"open":    "open",
	"f":       "filter",
	"filter":  "filter",
	"s":       "search",
	"search":  "search",
	"lock":    "lock",
	"unlock":  "unlock",
	"retry":   "retry",
	"reload":  "reload",
	"d":       "details",
	"details": "details",
	"h":       "help",
	"help":    "help",
	"q":       "quit",
	"quit":    "quit",
}

// ParseCommand parses a command string (without the leading ':') and resolves
// aliases to the canonical name.
func ParseCommand(input string) (Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Command{}, fmt.Errorf("empty command")
	}
	parts := strings.SplitN(input, " ", 2)
	name, ok := commandAliases[strings.ToLower(parts[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q (try :help)", parts[0])
	}
	cmd := Command{Name: name}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	if name == "open" && cmd.Args == "" {
		return Command{}, fmt.Errorf(":open needs a phone number")
	}
	return cmd, nil
}
