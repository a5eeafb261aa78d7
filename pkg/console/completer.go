package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// commands is the static list of console commands (without the / prefix).
var commands = []string{
	"quit",
	"exit",
	"q",
	"help",
	"h",
	"models",
	"load",
	"unload",
	"health",
	"run",
	"tokens",
}

// modelCommands expect a model name as their first argument.
var modelCommands = []string{"load", "unload"}

// Completer provides tab completion for console commands and model
// names. Model names come from a provider so the list stays current
// with the server's registry.
type Completer struct {
	models func() []string
}

// NewCompleter creates a completer. The models provider may be nil.
func NewCompleter(models func() []string) *Completer {
	return &Completer{models: models}
}

var _ readline.AutoCompleter = (*Completer)(nil)

// Do implements readline.AutoCompleter.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	if len(line) == 0 || pos <= 0 {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}
	lineStr := string(line[:pos])

	wordStart := strings.LastIndexAny(lineStr, " \t") + 1
	currentWord := lineStr[wordStart:]
	if currentWord == "" && wordStart == 0 {
		return nil, 0
	}

	if strings.HasPrefix(currentWord, "/") {
		return c.completeCommand(currentWord)
	}
	if c.isModelCommandContext(lineStr[:wordStart]) {
		return c.completeModel(currentWord)
	}
	return nil, 0
}

// isModelCommandContext reports whether the text before the current
// word is a command that takes a model name.
func (c *Completer) isModelCommandContext(before string) bool {
	before = strings.TrimSpace(before)
	if !strings.HasPrefix(before, "/") {
		return false
	}
	cmd := strings.TrimPrefix(before, "/")
	if idx := strings.IndexAny(cmd, " \t"); idx != -1 {
		cmd = cmd[:idx]
	}
	for _, mc := range modelCommands {
		if cmd == mc {
			return true
		}
	}
	return false
}

func (c *Completer) completeCommand(prefix string) ([][]rune, int) {
	cmdPrefix := strings.TrimPrefix(prefix, "/")

	var matches [][]rune
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, cmdPrefix) {
			matches = append(matches, []rune(cmd[len(cmdPrefix):]+" "))
		}
	}
	return matches, len(prefix)
}

func (c *Completer) completeModel(prefix string) ([][]rune, int) {
	if c.models == nil {
		return nil, 0
	}

	var matches [][]rune
	for _, name := range c.models() {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, []rune(name[len(prefix):]+" "))
		}
	}
	return matches, len(prefix)
}
