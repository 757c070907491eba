// Package recordio reads and checkpoints the tabular record stores the
// pipeline enriches. A Table holds the whole file in memory; the
// pipeline fills output cells in place and WriteSnapshot persists the
// full table atomically after every batch, so a killed run loses at
// most the batch in flight and never leaves a torn file behind.
package recordio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a fully materialized record store: one header row plus data
// rows. Rows may be ragged; Cell treats missing trailing cells as empty
// and WriteSnapshot pads rows out to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the position of the named column, matching
// case-insensitively after trimming whitespace. Returns -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	want := strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

// EnsureColumn returns the index of the named column, appending it to
// the header when missing. Existing rows stay short until written to.
func (t *Table) EnsureColumn(name string) int {
	if i := t.ColumnIndex(name); i >= 0 {
		return i
	}
	t.Header = append(t.Header, name)
	return len(t.Header) - 1
}

// Cell returns the value at (row, col), or "" when the row does not
// reach that column.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// SetCell writes the value at (row, col), padding the row with empty
// cells as needed.
func (t *Table) SetCell(row, col int, value string) {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return
	}
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = value
}

// Read loads a record store, dispatching on the file extension.
func Read(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("recordio: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// WriteSnapshot writes the full table to path atomically: the table is
// serialized to a temp file in the same directory, fsynced, and renamed
// over the target. The format follows the path's extension.
func WriteSnapshot(path string, t *Table) error {
	ext := strings.ToLower(filepath.Ext(path))

	tmp, err := os.CreateTemp(filepath.Dir(path), ".enrich-*"+ext)
	if err != nil {
		return eris.Wrap(err, "recordio: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	switch ext {
	case ".csv":
		err = writeCSV(tmp, t)
	case ".xlsx":
		err = writeXLSX(tmp, t)
	default:
		err = eris.Errorf("recordio: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "recordio: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "recordio: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "recordio: replace snapshot")
	}

	return nil
}

// padTo returns cells extended with empty strings to at least width.
func padTo(cells []string, width int) []string {
	if len(cells) >= width {
		return cells
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}
