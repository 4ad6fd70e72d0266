// Package telnet serves line-oriented sessions over TCP with telnet option
// filtering and optional ANSI styling.
package telnet

import (
	"fmt"
	"strings"
)

// ANSI styles used by the workbench.
const (
	Reset       = "\033[0m"
	Bold        = "\033[1m"
	Dim         = "\033[2m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Yellow      = "\033[33m"
	Blue        = "\033[34m"
	Magenta     = "\033[35m"
	Cyan        = "\033[36m"
	BrightBlack = "\033[90m"
)

// Colorize wraps text in color and a reset.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Palette applies ANSI styles when Enabled and passes text through otherwise.
type Palette struct {
	Enabled bool
}

// Paint styles text with color.
func (p Palette) Paint(color, text string) string {
	if !p.Enabled || text == "" {
		return text
	}
	return Colorize(color, text)
}

// Paintf formats and styles.
func (p Palette) Paintf(color, format string, args ...any) string {
	return p.Paint(color, fmt.Sprintf(format, args...))
}

// StripANSI removes CSI sequences ending in 'm'. An unterminated sequence is
// kept verbatim.
func StripANSI(s string) string {
	if !strings.Contains(s, "\033[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			if end := strings.IndexByte(s[i+2:], 'm'); end >= 0 {
				i += end + 3
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
