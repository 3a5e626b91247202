package export

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/landsuit/internal/model"
)

// DefaultSheet names the sheet WriteXLSX creates.
const DefaultSheet = "results"

// WriteXLSX writes t to a single sheet. NaN cells are left empty.
func WriteXLSX(path string, t *model.Table, sheetName string) error {
	if sheetName == "" {
		sheetName = DefaultSheet
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx export: add sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString(IDColumn)
	for _, name := range t.Names() {
		header.AddCell().SetString(name)
	}
	for i, id := range t.Index {
		row := sheet.AddRow()
		row.AddCell().SetInt(id)
		for _, c := range t.Columns {
			cell := row.AddCell()
			if v := c.Values[i]; !math.IsNaN(v) {
				cell.SetFloat(v)
			}
		}
	}
	return eris.Wrap(f.Save(path), "xlsx export: save")
}

// ReadXLSX reads the first sheet of a workbook written by WriteXLSX.
func ReadXLSX(path string) (*model.Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx export: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx export: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx export: %s is empty", path)
	}

	header := rowToStrings(sheet.Rows[0])
	records := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		// Trailing empty cells may be dropped by the writer.
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		records = append(records, cells)
	}
	return fromRecords(header, records)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
