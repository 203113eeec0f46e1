package location

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readXLSX decodes the first sheet of an XLSX workbook as location rows.
// The first row is the header.
func readXLSX(path string) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	width := 0
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)
		if i == 0 {
			width = len(cells)
		}
		// trailing empty cells are not stored
		for len(cells) < width {
			cells = append(cells, "")
		}
		rows = append(rows, cells[:width])
	}
	return decode(&sliceReader{rows: rows})
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// sliceReader feeds pre-read rows to csvutil.
type sliceReader struct {
	rows [][]string
	i    int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.i]
	s.i++
	return row, nil
}
