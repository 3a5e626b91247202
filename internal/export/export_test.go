package export

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landsuit/internal/model"
)

func sampleTable(t *testing.T) *model.Table {
	t.Helper()
	index := []int{0, 1, 2}
	mean, err := model.NewSeries("lc_mean", index, []float64{2.5, 4, 0.125})
	require.NoError(t, err)
	count, err := model.NewSeries("lc_count", index, []float64{1, 3, math.NaN()})
	require.NoError(t, err)
	tbl, err := model.NewTable(index, mean, count)
	require.NoError(t, err)
	return tbl
}

func assertTable(t *testing.T, want, got *model.Table) {
	t.Helper()
	assert.Equal(t, want.Index, got.Index)
	require.Equal(t, want.Names(), got.Names())
	for i, c := range want.Columns {
		for j, v := range c.Values {
			if math.IsNaN(v) {
				assert.True(t, math.IsNaN(got.Columns[i].Values[j]), "%s[%d]", c.Name, j)
				continue
			}
			assert.Equal(t, v, got.Columns[i].Values[j], "%s[%d]", c.Name, j)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonal.csv")
	require.NoError(t, WriteCSV(path, sampleTable(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,lc_mean,lc_count\n0,2.5,1\n1,4,3\n2,0.125,\n", string(data))
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonal.csv")
	want := sampleTable(t)
	require.NoError(t, WriteCSV(path, want))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assertTable(t, want, got)
}

func TestReadCSV_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no id column", "fid,score\n1,2\n"},
		{"short row", "id,score\n1\n"},
		{"bad id", "id,score\nx,2\n"},
		{"bad value", "id,score\n1,high\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadCSV(path)
			assert.Error(t, err)
		})
	}

	_, err := ReadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonal.xlsx")
	want := sampleTable(t)
	require.NoError(t, WriteXLSX(path, want, ""))

	got, err := ReadXLSX(path)
	require.NoError(t, err)
	assertTable(t, want, got)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	_, err = ParseFormat("parquet")
	assert.Error(t, err)

	f, err = FormatOf("/tmp/out.csv")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)
}

func TestWriteRead_Dispatch(t *testing.T) {
	dir := t.TempDir()
	want := sampleTable(t)
	for _, f := range []Format{CSV, XLSX} {
		path := filepath.Join(dir, "out."+string(f))
		require.NoError(t, Write(path, f, want))
		got, err := Read(path)
		require.NoError(t, err)
		assertTable(t, want, got)
	}

	assert.Error(t, Write(filepath.Join(dir, "out.txt"), Format("txt"), want))
	_, err := Read(filepath.Join(dir, "out.txt"))
	assert.Error(t, err)
}
