package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

func decodeJSON(r io.Reader) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, eris.Wrap(err, "fetcher: decode json array")
	}

	// Drop explicit nulls so JSON and CSV dumps agree on what "missing" means.
	for _, row := range rows {
		for k, v := range row {
			if v == nil {
				delete(row, k)
			}
		}
	}

	return rows, nil
}
