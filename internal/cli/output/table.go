package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	// Headers returns the column headers for the table.
	Headers() []string
	// Rows returns the data rows for the table.
	Rows() [][]string
}

// NumericColumns is an optional TableRenderer extension. The returned column
// indexes are right-aligned.
type NumericColumns interface {
	NumericColumns() []int
}

// newTable returns a borderless writer shared by every table layout.
func newTable(w io.Writer, columnSeparator string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(columnSeparator)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// PrintTable writes data as a formatted table to the writer. Headers are
// upper-cased.
func PrintTable(w io.Writer, data TableRenderer) error {
	headers := data.Headers()

	table := newTable(w, "")
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(true)

	if nc, ok := data.(NumericColumns); ok {
		align := make([]int, len(headers))
		for i := range align {
			align[i] = tablewriter.ALIGN_LEFT
		}
		for _, col := range nc.NumericColumns() {
			if col >= 0 && col < len(align) {
				align[col] = tablewriter.ALIGN_RIGHT
			}
		}
		table.SetColumnAlignment(align)
	}

	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// SimpleTable prints "key: value" lines, one per pair.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	table := newTable(w, ":")
	table.SetAutoFormatHeaders(false)

	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}

	table.Render()
	return nil
}
