package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	// Message colors
	Success = color.New(color.FgGreen)
	Warning = color.New(color.FgYellow)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Dim     = color.New(color.Faint)

	// Structural colors
	Header = color.New(color.FgWhite, color.Bold)
	Label  = color.New(color.FgBlue, color.Bold)
	Accent = color.New(color.FgMagenta, color.Bold)
	Mono   = color.New(color.FgWhite)
)

// NoColor disables color output
func NoColor() {
	color.NoColor = true
}

// ForceColor enables color output even when not a TTY
func ForceColor() {
	color.NoColor = false
}

// PrintSuccess writes a green "✓" line to w
func PrintSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, Success.Sprintf("✓ "+format, args...))
}

// PrintError writes a red "✗" line to w. An empty message writes nothing.
func PrintError(w io.Writer, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		return
	}
	fmt.Fprintln(w, Error.Sprint("✗ "+msg))
}

// Sprintf returns a colored string without printing
func Sprintf(c *color.Color, format string, args ...interface{}) string {
	return c.Sprintf(format, args...)
}

// Sprint returns a colored string without printing
func Sprint(c *color.Color, a ...interface{}) string {
	return c.Sprint(a...)
}

// Field formats a "LABEL  value" row of a location card.
func Field(label, value string) string {
	if value == "" {
		value = Sprint(Dim, "—")
	}
	return fmt.Sprintf("%s %s", Label.Sprintf("%-12s", strings.ToUpper(label)), value)
}

// Checkbox renders a selection marker for history rows.
func Checkbox(checked bool) string {
	if checked {
		return Accent.Sprint("[x]")
	}
	return Dim.Sprint("[ ]")
}

// Box writes a boxed block of lines to w
func Box(w io.Writer, title string, lines []string) {
	fmt.Fprintln(w, Header.Sprint("┌─ "+title+" ─"))
	fmt.Fprintln(w, "│")
	for _, line := range lines {
		fmt.Fprintln(w, "│  "+line)
	}
	fmt.Fprintln(w, "│")
	fmt.Fprintln(w, Header.Sprint("└────────────────"))
}
