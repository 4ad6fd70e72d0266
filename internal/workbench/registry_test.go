package workbench

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func noop(*Session, Input) (string, error) { return "", nil }

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Len(t, r.Commands(), len(BuiltinCommands()))
}

func TestResolve_CanonicalAndAlias(t *testing.T) {
	r := DefaultRegistry()

	cmd, ok := r.Resolve("eval")
	require.True(t, ok)
	assert.Equal(t, "eval", cmd.Name)

	cmd, ok = r.Resolve("e")
	require.True(t, ok)
	assert.Equal(t, "eval", cmd.Name)

	_, ok = r.Resolve("roll")
	assert.False(t, ok)
}

func TestNewRegistry_Collisions(t *testing.T) {
	cases := map[string][]Command{
		"duplicate name": {
			{Name: "a", Run: noop},
			{Name: "a", Run: noop},
		},
		"alias shadows name": {
			{Name: "a", Run: noop},
			{Name: "b", Aliases: []string{"a"}, Run: noop},
		},
		"name shadows alias": {
			{Name: "a", Aliases: []string{"x"}, Run: noop},
			{Name: "x", Run: noop},
		},
		"duplicate alias": {
			{Name: "a", Aliases: []string{"x"}, Run: noop},
			{Name: "b", Aliases: []string{"x"}, Run: noop},
		},
		"missing run": {
			{Name: "a"},
		},
	}
	for name, cmds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(cmds)
			assert.Error(t, err)
		})
	}
}

func TestBuiltinCommands_Complete(t *testing.T) {
	known := make(map[string]bool, len(categoryOrder))
	for _, c := range categoryOrder {
		known[c] = true
	}
	for _, cmd := range BuiltinCommands() {
		assert.NotEmpty(t, cmd.Help, cmd.Name)
		assert.True(t, strings.HasPrefix(cmd.Usage, cmd.Name), cmd.Name)
		assert.True(t, known[cmd.Category], "%s has unknown category %q", cmd.Name, cmd.Category)
	}
}

func TestCommandsByCategory_Sorted(t *testing.T) {
	for category, cmds := range DefaultRegistry().CommandsByCategory() {
		for i := 1; i < len(cmds); i++ {
			assert.Less(t, cmds[i-1].Name, cmds[i].Name, category)
		}
	}
}

func TestParseInput(t *testing.T) {
	cases := []struct {
		line string
		want Input
	}{
		{"", Input{}},
		{"   ", Input{}},
		{"HELP", Input{Command: "help"}},
		{"eval 2d6 +  3", Input{Command: "eval", Args: []string{"2d6", "+", "3"}, RawArgs: "2d6 +  3"}},
		{"\tstats\t1d20 ", Input{Command: "stats", Args: []string{"1d20"}, RawArgs: "1d20"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseInput(c.line), "%q", c.line)
	}
}

func TestPropertyParseInput_CommandIsLowerWord(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.String().Draw(t, "line")
		in := ParseInput(line)
		if in.Command != strings.ToLower(in.Command) {
			t.Fatalf("command %q is not lower case", in.Command)
		}
		if strings.ContainsAny(in.Command, " \t\r\n") {
			t.Fatalf("command %q contains whitespace", in.Command)
		}
		if in.Command == "" && (len(in.Args) > 0 || in.RawArgs != "") {
			t.Fatalf("arguments without a command: %+v", in)
		}
	})
}
