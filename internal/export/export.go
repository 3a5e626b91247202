// Package export writes result tables to CSV or XLSX and reads them back so
// earlier results can feed a suitability model.
package export

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/model"
)

// IDColumn heads the feature ID column of every export.
const IDColumn = "id"

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, XLSX:
		return f, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Write saves t to path in the given format.
func Write(path string, f Format, t *model.Table) error {
	switch f {
	case CSV:
		return WriteCSV(path, t)
	case XLSX:
		return WriteXLSX(path, t, "")
	}
	return eris.Errorf("export: unknown format %q", f)
}

// Read loads a table written by Write, choosing the format by extension.
func Read(path string) (*model.Table, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if f == XLSX {
		return ReadXLSX(path)
	}
	return ReadCSV(path)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// fromRecords builds a table from a header and string rows. The first column
// holds feature IDs.
func fromRecords(header []string, records [][]string) (*model.Table, error) {
	if len(header) == 0 || !strings.EqualFold(strings.TrimSpace(header[0]), IDColumn) {
		return nil, eris.Errorf("export: first column must be %q", IDColumn)
	}
	index := make([]int, len(records))
	values := make([][]float64, len(header)-1)
	for j := range values {
		values[j] = make([]float64, len(records))
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, eris.Errorf("export: row %d has %d fields, want %d", i+1, len(rec), len(header))
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, eris.Wrapf(err, "export: row %d id", i+1)
		}
		index[i] = id
		for j := 1; j < len(rec); j++ {
			if values[j-1][i], err = parseValue(rec[j]); err != nil {
				return nil, eris.Wrapf(err, "export: row %d column %q", i+1, header[j])
			}
		}
	}

	columns := make([]*model.Series, len(values))
	for j, vals := range values {
		s, err := model.NewSeries(strings.TrimSpace(header[j+1]), index, vals)
		if err != nil {
			return nil, err
		}
		columns[j] = s
	}
	return model.NewTable(index, columns...)
}
