package fetcher

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

func decodeCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // scraped dumps have ragged rows
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read csv row")
		}

		row := make(map[string]any, len(header))
		for i, cell := range record {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v, ok := coerce(cell); ok {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func parseFloat(s string) (float64, bool) {
	// Strip thousands separators the stat sites put in yardage columns.
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
