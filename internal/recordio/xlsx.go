package recordio

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX loads the first sheet of an XLSX workbook. The first row is
// the header.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "recordio: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("recordio: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("recordio: %s has no header row", path)
	}

	t := &Table{Header: rowStrings(sheet.Rows[0])}
	for _, row := range sheet.Rows[1:] {
		t.Rows = append(t.Rows, rowStrings(row))
	}
	return t, nil
}

func writeXLSX(w io.Writer, t *Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	if err != nil {
		return eris.Wrap(err, "recordio: add sheet")
	}

	addRow := func(cells []string) {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}

	addRow(t.Header)
	width := len(t.Header)
	for _, row := range t.Rows {
		addRow(padTo(row, width))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "recordio: write workbook")
	}
	return nil
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
