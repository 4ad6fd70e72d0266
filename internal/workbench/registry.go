// Package workbench implements the interactive formula workbench: a command
// registry, per-connection sessions and the telnet session handler.
package workbench

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Categories for organizing commands.
const (
	CategoryFormula  = "formula"
	CategoryContext  = "context"
	CategoryEffect   = "effect"
	CategoryAnalysis = "analysis"
	CategoryPreset   = "preset"
	CategorySystem   = "system"
)

// categoryOrder is the order help lists categories in.
var categoryOrder = []string{
	CategoryFormula, CategoryContext, CategoryEffect,
	CategoryAnalysis, CategoryPreset, CategorySystem,
}

var (
	// ErrUnknownCommand is returned for input naming no registered command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command's arguments are malformed.
	ErrUsage = errors.New("usage")
	// ErrQuit ends the session.
	ErrQuit = errors.New("quit")
	// ErrUnknownPreset is returned by preset for an ID not in the library.
	ErrUnknownPreset = errors.New("unknown preset")
)

// RunFunc executes a command for a session and returns its output.
type RunFunc func(s *Session, in Input) (string, error)

// Command defines a workbench command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument form, e.g. "eval <formula>".
	Usage string
	// Help is the one-line description shown by help.
	Help     string
	Category string
	Run      RunFunc
}

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions or a
// command without a RunFunc.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Run == nil {
			return nil, fmt.Errorf("command %q has no run function", cmd.Name)
		}
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if _, exists := r.aliases[cmd.Name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", cmd.Name)
		}
		r.commands[cmd.Name] = cmd

		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}

	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias.
func (r *Registry) Resolve(name string) (*Command, bool) {
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// CommandsByCategory returns commands grouped by category, each group sorted
// by name.
func (r *Registry) CommandsByCategory() map[string][]*Command {
	categories := make(map[string][]*Command)
	for _, cmd := range r.Commands() {
		categories[cmd.Category] = append(categories[cmd.Category], cmd)
	}
	return categories
}

// Input holds the parsed command name and arguments from a text line.
type Input struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command.
	Args []string
	// RawArgs is the text after the command with inner spacing preserved.
	RawArgs string
}

// ParseInput splits a text line into a command and arguments.
//
// Postcondition: If line is blank, Command is empty.
func ParseInput(line string) Input {
	line = strings.TrimSpace(line)
	if line == "" {
		return Input{}
	}
	name, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		name, rest = line[:i], strings.TrimSpace(line[i:])
	}
	in := Input{Command: strings.ToLower(name), RawArgs: rest}
	if rest != "" {
		in.Args = strings.Fields(rest)
	}
	return in
}
