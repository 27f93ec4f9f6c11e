package output

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/visiblefs/pkg/catalog"
)

// EntryList renders catalog entries. JSON and YAML output keep exact byte
// counts and RFC 3339 timestamps; the table shows human-readable values.
type EntryList []catalog.Entry

func (l EntryList) Headers() []string {
	return []string{"Path", "Size", "Bytes", "Store", "Committed"}
}

// NumericColumns right-aligns Size and Bytes.
func (l EntryList) NumericColumns() []int { return []int{1, 2} }

func (l EntryList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		rows = append(rows, []string{
			e.Path,
			humanize.IBytes(uint64(e.Size)),
			strconv.FormatInt(e.Size, 10),
			e.StoreType,
			humanize.Time(e.CommittedAt),
		})
	}
	return rows
}

// EmptyNotice is printed instead of an empty table.
func (l EntryList) EmptyNotice() string { return "No committed files." }

// EntryDetail is one catalog entry plus its current visibility in the store.
type EntryDetail struct {
	catalog.Entry `yaml:",inline"`
	Visible       bool `json:"visible" yaml:"visible"`
}

// Pairs returns the key/value view used in table format.
func (d EntryDetail) Pairs() [][2]string {
	e, visible := d.Entry, d.Visible
	return [][2]string{
		{"Path", e.Path},
		{"Size", humanize.IBytes(uint64(e.Size)) + " (" + humanize.Comma(e.Size) + " bytes)"},
		{"Store", e.StoreType},
		{"Committed", e.CommittedAt.Local().Format(time.RFC3339)},
		{"Visible", strconv.FormatBool(visible)},
	}
}
