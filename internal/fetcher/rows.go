package fetcher

import (
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Format identifies a supported dump encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// DetectFormat guesses the dump format from a reference's extension.
func DetectFormat(ref string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.SplitN(ref, "?", 2)[0]), "."))
	switch ext {
	case "csv", "tsv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("fetcher: cannot detect format of %q (use --format)", ref)
	}
}

// DecodeRows parses a dump into source-native rows: flat field-to-value
// maps keyed by the source's own column names. Empty cells are omitted so
// partially-filled rows read as missing, not zero.
func DecodeRows(format Format, r io.Reader) ([]map[string]any, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	case FormatXLSX:
		return decodeXLSX(r)
	default:
		return nil, eris.Errorf("fetcher: unsupported format %q", format)
	}
}

// coerce turns a raw cell into a number when it parses as one, otherwise
// leaves it a trimmed string. Sentinels used by the grading sites for
// missing data become absent values.
func coerce(raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(s) {
	case "", "N/A", "NA", "NULL", "-", "--":
		return nil, false
	}
	if f, ok := parseFloat(s); ok {
		return f, true
	}
	return s, true
}
