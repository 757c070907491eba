package recordio

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
)

// ReadCSV loads a CSV file. The first row is the header. Parsing is
// lenient: quotes may appear mid-field and rows may have uneven field
// counts, both common in marketplace exports.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "recordio: open file")
	}
	defer f.Close() //nolint:errcheck

	// UTF8BOM strips the byte order mark Excel prepends to CSV exports.
	r := csv.NewReader(unicode.UTF8BOM.NewDecoder().Reader(f))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "recordio: read csv")
	}
	if len(records) == 0 {
		return nil, eris.Errorf("recordio: %s has no header row", path)
	}

	return &Table{Header: records[0], Rows: records[1:]}, nil
}

func writeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "recordio: write header")
	}
	width := len(t.Header)
	for _, row := range t.Rows {
		if err := cw.Write(padTo(row, width)); err != nil {
			return eris.Wrap(err, "recordio: write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "recordio: flush csv")
	}
	return nil
}
