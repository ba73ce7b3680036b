package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// decodeXLSX reads the first sheet of a workbook; combine result dumps
// ship as spreadsheets with a header row.
func decodeXLSX(r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read xlsx")
	}

	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open xlsx")
	}
	if len(file.Sheets) == 0 {
		return nil, nil
	}

	sheet := file.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	var header []string
	for _, cell := range sheet.Rows[0].Cells {
		header = append(header, strings.TrimSpace(cell.String()))
	}

	var rows []map[string]any
	for _, sheetRow := range sheet.Rows[1:] {
		row := make(map[string]any, len(header))
		for i, cell := range sheetRow.Cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v, ok := coerce(cell.String()); ok {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	return rows, nil
}
