package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "spendtrend/internal/errors"
	"spendtrend/internal/panel"
)

const header = "UNITID,year,type,fte,admin,instruction,research,state,total"

func newLoader() *Loader {
	return NewLoader(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad_CSV tests aliasing, category labels and missing values
func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "panel.csv", "\ufeff"+header+`
100654,2019,Public,105,200,500,100,300,1000
100654,2020,Public,420,210,510,,310,1050
100663,2019,Private nonprofit,80,NA,400,50,0,800

`)

	res, err := newLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Table.Len())
	assert.Empty(t, res.Issues)
	assert.Equal(t, []string{"entity_id", "year", "category", "fte", "admin", "instruction", "research", "state", "total"}, res.Columns)

	row, ok := res.Table.Lookup("100654", 2020)
	require.True(t, ok)
	assert.Equal(t, panel.CategoryPublic, row.Category)
	assert.Equal(t, 420.0, row.FTE.Float)
	assert.True(t, row.Get(panel.ColResearch).IsNull())
	assert.Equal(t, 1050.0, row.Get(panel.ColTotal).Float)

	private, ok := res.Table.Lookup("100663", 2019)
	require.True(t, ok)
	assert.Equal(t, panel.CategoryPrivate, private.Category)
	assert.True(t, private.Get(panel.ColAdmin).IsNull())
}

func TestLoad_CSVNonNumericCell(t *testing.T) {
	path := writeFile(t, "panel.csv", header+"\nA,2019,Public,10,abc,1,1,1,10\n")

	res, err := newLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "A", res.Issues[0].EntityID)
	assert.Equal(t, StageName, res.Issues[0].Stage)
	assert.Contains(t, res.Issues[0].Reason, "admin")

	row, _ := res.Table.Lookup("A", 2019)
	assert.True(t, row.Get(panel.ColAdmin).IsNull())
}

// TestLoad_TextColumnsAndNullTokens tests that descriptive columns are kept
// as text and that "n.a." and "-" read as missing without an issue
func TestLoad_TextColumnsAndNullTokens(t *testing.T) {
	path := writeFile(t, "panel.csv", "UNITID,instnm,year,type,fte,admin,instruction,research,state,total,admin_pct\n"+
		"A,Alpha College,2019,Public,-,100,1,1,1,10,n.a.\n"+
		"A,Alpha College,2020,Public,12,n.a.,1,1,1,10,0.5\n"+
		"B,,2020,Private,8,1,1,-,1,10,\n")

	res, err := newLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	assert.Contains(t, res.Columns, "instnm")

	a, ok := res.Table.Lookup("A", 2019)
	require.True(t, ok)
	assert.Equal(t, "Alpha College", a.Labels["instnm"])
	assert.True(t, a.FTE.IsNull())
	assert.True(t, a.Get(panel.Share(panel.ColAdmin)).IsNull())
	_, numeric := a.Columns["instnm"]
	assert.False(t, numeric)

	a2020, _ := res.Table.Lookup("A", 2020)
	assert.True(t, a2020.Get(panel.ColAdmin).IsNull())
	assert.Equal(t, 0.5, a2020.Get(panel.Share(panel.ColAdmin)).Float)

	b, _ := res.Table.Lookup("B", 2020)
	assert.NotContains(t, b.Labels, "instnm")
	assert.True(t, b.Get(panel.ColResearch).IsNull())
	assert.Equal(t, []string{"instnm"}, res.Table.LabelColumns())
}

func TestLoad_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing column", "UNITID,year,type,admin,instruction,research,state,total\nA,2019,Public,1,1,1,1,1\n"},
		{"bad year", header + "\nA,twenty,Public,10,1,1,1,1,10\n"},
		{"duplicate row", header + "\nA,2019,Public,10,1,1,1,1,10\nA,2019,Public,11,1,1,1,1,10\n"},
		{"unknown category", header + "\nA,2019,Tribal,10,1,1,1,1,10\n"},
		{"zero fte", header + "\nA,2019,Public,0,1,1,1,1,10\n"},
		{"empty file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "panel.csv", tt.content)
			_, err := newLoader().Load(context.Background(), path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrSchemaViolation), "got %v", err)
		})
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "panel.json", "{}")
	_, err := newLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
}

// TestLoad_XLSX tests reading a workbook written with excelize
func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Panel"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)

	rows := [][]interface{}{
		{"UNITID", "year", "type", "fte", "admin", "instruction", "research", "state", "total"},
		{"X", 2019, "Public", 105, 200, 500, 100, 300, 1000},
		{"X", 2020, "Public", 420, 210, 510, 110, 310, 1050},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "panel.xlsx")
	require.NoError(t, f.SaveAs(path))

	res, err := NewLoader(nil, WithSheet(sheet)).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Table.Len())

	row, ok := res.Table.Lookup("X", 2020)
	require.True(t, ok)
	assert.Equal(t, 420.0, row.FTE.Float)
	assert.Equal(t, 110.0, row.Get(panel.ColResearch).Float)

	_, err = NewLoader(nil, WithSheet("Missing")).Load(context.Background(), path)
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	y, err := parseYear("2021.0")
	require.NoError(t, err)
	assert.Equal(t, 2021, y)

	_, err = parseYear("2021.5")
	assert.Error(t, err)

	v, ok := parseNumber("1,250.5")
	assert.True(t, ok)
	assert.Equal(t, 1250.5, v.Float)

	v, ok = parseNumber("NaN")
	assert.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestLoad_Directory(t *testing.T) {
	path := writeFile(t, "panel.csv", header+"\nA,2019,Public,10,1,1,1,1,10\n")

	res, err := newLoader().Load(context.Background(), filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, path, res.Source)
	assert.Equal(t, 1, res.Table.Len())
}
