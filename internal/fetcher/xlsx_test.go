package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "points.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamXLSX_Rows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Points": {
			{"id", "longitude", "latitude"},
			{"P1", "151.2", "-33.8"},
		},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "longitude", "latitude"}, rows[0].Fields)
	assert.Equal(t, []string{"P1", "151.2", "-33.8"}, rows[1].Fields)
	assert.Equal(t, 2, rows[1].Num)
}

func TestStreamXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Points": {{"id"}, {"P1"}},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Points"})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStreamXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Points": {{"id"}},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Missing"})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestStreamXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Points": {{"id"}},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetIndex: 3})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestOpenRecords_Spreadsheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Points": {{"id", "longitude", "latitude"}, {"P1", "1", "2"}},
	})

	rowCh, errCh, err := OpenRecords(context.Background(), path, SourceOptions{Sheet: "Points"})
	require.NoError(t, err)
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "P1", rows[1].Fields[0])
}
