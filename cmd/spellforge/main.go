// Command spellforge checks, analyzes and resolves effect formulas and
// presets from the shell.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
