// Package output renders command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents the output format type.
type Format string

const (
	// FormatTable renders human-readable tables with humanized sizes.
	FormatTable Format = "table"
	// FormatJSON keeps exact byte counts and RFC 3339 timestamps.
	FormatJSON Format = "json"
	// FormatYAML is FormatJSON's field set in YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses the --output flag. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// EmptyNotice is implemented by table data that prints a one-line notice
// instead of a header-only table when it has no rows.
type EmptyNotice interface {
	EmptyNotice() string
}

// DetailRenderer is implemented by single records shown as key/value pairs
// in table format.
type DetailRenderer interface {
	Pairs() [][2]string
}

// Printer writes command results in one format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer. color enables ANSI colors for status lines.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		format: format,
		color:  color,
	}
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Print outputs data in the configured format.
//
// In table format a DetailRenderer is printed as pairs and a TableRenderer
// as a table, or as its EmptyNotice when it has no rows. Anything else falls
// back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		return p.printTable(data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

func (p *Printer) printTable(data any) error {
	switch d := data.(type) {
	case DetailRenderer:
		return SimpleTable(p.out, d.Pairs())
	case TableRenderer:
		if n, ok := d.(EmptyNotice); ok && len(d.Rows()) == 0 {
			p.Println(n.EmptyNotice())
			return nil
		}
		return PrintTable(p.out, d)
	default:
		return PrintJSON(p.out, data)
	}
}

// Println prints a message followed by a newline.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func (p *Printer) colored(color, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "%s%s%s\n", color, msg, colorReset)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}

// Success prints a status line for a completed operation.
func (p *Printer) Success(msg string) { p.colored(colorGreen, msg) }

// Error prints a status line for a failed operation.
func (p *Printer) Error(msg string) { p.colored(colorRed, msg) }

// Warning prints a status line for a suspicious but non-fatal condition.
func (p *Printer) Warning(msg string) { p.colored(colorYellow, msg) }
