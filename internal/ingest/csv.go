package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "spendtrend/internal/errors"
)

func readCSVFile(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	return readCSV(f)
}

// readCSV returns the header and data records of r
func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, apperrors.NewSchemaError("input has no header row")
	}
	if err != nil {
		return nil, nil, apperrors.NewParsingError("read csv header", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperrors.NewParsingError("read csv records", err)
	}
	return header, records, nil
}
