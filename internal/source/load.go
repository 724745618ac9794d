package source

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Load reads an export file and parses it into the document shape the
// descriptor paths navigate. JSON exports parse as-is; CSV exports become
// a document {"rows": [...]} of flat string maps, so CSV descriptors
// address columns by name under the "rows" path.
func Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(data)
	default:
		return parseJSON(data)
	}
}

func parseJSON(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing export JSON: %w", err)
	}
	return doc, nil
}

// parseCSV reads header + rows into {"rows": []map[string]string}. Input
// that is not valid UTF-8 is decoded as Latin-1 before parsing; exports
// from older Windows tooling are common enough to warrant the fallback.
func parseCSV(data []byte) (any, error) {
	if !utf8.Valid(data) {
		data = latin1ToUTF8(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing export CSV: %w", err)
	}
	if len(all) == 0 {
		return map[string]any{"rows": []any{}}, nil
	}

	header := all[0]
	rows := make([]any, 0, len(all)-1)
	for _, rec := range all[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return map[string]any{"rows": rows}, nil
}

// latin1ToUTF8 reinterprets bytes as ISO-8859-1 code points.
func latin1ToUTF8(data []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(data) * 2)
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.Bytes()
}
