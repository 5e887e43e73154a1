package ingest

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	apperrors "spendtrend/internal/errors"
)

// readXLSX returns the header and data rows of one worksheet
func readXLSX(path, sheet string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, apperrors.NewSchemaError(fmt.Sprintf("%s has no worksheets", path))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, apperrors.NewParsingError(fmt.Sprintf("read sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return nil, nil, apperrors.NewSchemaError(fmt.Sprintf("sheet %q has no header row", sheet))
	}
	return rows[0], rows[1:], nil
}
