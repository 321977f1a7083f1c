// Package cli provides the command-line interface for the signal recorder.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ANSI styles for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

var ansiCodes = []string{ColorReset, ColorRed, ColorGreen, ColorYellow, ColorCyan, ColorBold, ColorDim}

// Output writes command results as styled text or, with --json, as JSON.
type Output struct {
	w     io.Writer
	json  bool
	color bool
}

// NewOutput creates an Output for cmd's stdout and flags.
func NewOutput(cmd *cobra.Command) *Output {
	asJSON, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{w: w, json: asJSON, color: !asJSON && isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// IsJSON reports whether --json was given.
func (o *Output) IsJSON() bool { return o.json }

// JSON writes v as indented JSON.
func (o *Output) JSON(v interface{}) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *Output) Println(args ...interface{}) { fmt.Fprintln(o.w, args...) }
func (o *Output) Printf(format string, args ...interface{}) { fmt.Fprintf(o.w, format, args...) }

func (o *Output) Success(format string, args ...interface{}) { o.line(ColorGreen, format, args...) }
func (o *Output) Error(format string, args ...interface{}) { o.line(ColorRed, format, args...) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(ColorYellow, format, args...) }
func (o *Output) Info(format string, args ...interface{}) { o.line(ColorCyan, format, args...) }
func (o *Output) Bold(format string, args ...interface{}) { o.line(ColorBold, format, args...) }
func (o *Output) Dim(format string, args ...interface{}) { o.line(ColorDim, format, args...) }

func (o *Output) line(style, format string, args ...interface{}) {
	fmt.Fprintln(o.w, o.Style(style, fmt.Sprintf(format, args...)))
}

// Style wraps text in an ANSI style when writing to a terminal.
func (o *Output) Style(style, text string) string {
	if !o.color {
		return text
	}
	return style + text + ColorReset
}

// EventColor colors buy-side events green and sell-side events red.
func (o *Output) EventColor(event string) string {
	switch strings.ToLower(event) {
	case "buy", "long", "entry_long", "cover":
		return o.Style(ColorGreen, event)
	case "sell", "short", "entry_short", "exit":
		return o.Style(ColorRed, event)
	}
	return event
}

// Table collects rows and prints them as aligned columns.
type Table struct {
	out     *Output
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(out *Output, headers ...string) *Table {
	return &Table{out: out, headers: headers}
}

// AddRow appends a row; cells past the header count are ignored.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the header, a rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for _, row := range append([][]string{t.headers}, t.rows...) {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], visibleLen(row[i]))
		}
	}

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}

	t.out.Println(t.format(t.headers, widths, ColorBold))
	t.out.Println(t.out.Style(ColorDim, strings.Join(rule, "  ")))
	for _, row := range t.rows {
		t.out.Println(t.format(row, widths, ""))
	}
}

func (t *Table) format(cells []string, widths []int, style string) string {
	var b strings.Builder
	for i := 0; i < len(cells) && i < len(widths); i++ {
		if i > 0 {
			b.WriteString("  ")
		}
		cell := cells[i]
		if style != "" {
			cell = t.out.Style(style, cell)
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-visibleLen(cells[i])))
	}
	return strings.TrimRight(b.String(), " ")
}

// visibleLen is the length of s without ANSI style codes.
func visibleLen(s string) int {
	for _, code := range ansiCodes {
		s = strings.ReplaceAll(s, code, "")
	}
	return len(s)
}
