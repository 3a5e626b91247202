package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/model"
)

// WriteCSV writes t as id plus one column per series. NaN is written empty.
func WriteCSV(path string, t *model.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "csv export: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{IDColumn}, t.Names()...)); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}
	for i, id := range t.Index {
		row := make([]string, 0, len(t.Columns)+1)
		row = append(row, strconv.Itoa(id))
		for _, c := range t.Columns {
			row = append(row, formatValue(c.Values[i]))
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "csv export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "csv export: flush")
	}
	return eris.Wrap(f.Close(), "csv export: close file")
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv export: open file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv export: read rows")
	}
	if len(records) == 0 {
		return nil, eris.Errorf("csv export: %s is empty", path)
	}
	return fromRecords(records[0], records[1:])
}
