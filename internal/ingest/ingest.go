// Package ingest loads a spending panel from CSV or XLSX files.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "spendtrend/internal/errors"
	"spendtrend/internal/files"
	"spendtrend/internal/panel"
)

// StageName tags issues raised while loading
const StageName = "ingest"

// aliases maps lower-case source headers onto panel column names
var aliases = map[string]string{
	"unitid":      panel.ColEntityID,
	"id":          panel.ColEntityID,
	"type":        panel.ColCategory,
	"control":     panel.ColCategory,
	"fte_count":   panel.ColFTE,
	"fte_total":   panel.ColFTE,
	"fiscal_year": panel.ColYear,
}

// nullTokens are cell values read as missing
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	".":    true,
	"n.a.": true,
	"-":    true,
}

// Result is a loaded panel plus the cells that could not be read
type Result struct {
	Source  string        `json:"source"`
	Table   *panel.Table  `json:"-"`
	Columns []string      `json:"columns"`
	Issues  []panel.Issue `json:"issues,omitempty"`
}

// Loader reads panel files
type Loader struct {
	sheet  string
	logger *slog.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithSheet selects the XLSX worksheet; the first sheet is used otherwise
func WithSheet(name string) Option {
	return func(l *Loader) { l.sheet = name }
}

// NewLoader creates a loader
func NewLoader(logger *slog.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads path, choosing the format from its extension. A directory
// resolves to its most recently modified panel file.
func (l *Loader) Load(ctx context.Context, path string) (*Result, error) {
	path, err := files.ResolveInput(path)
	if err != nil {
		return nil, err
	}

	var (
		header  []string
		records [][]string
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		header, records, err = readCSVFile(path)
	case ".xlsx", ".xlsm":
		header, records, err = readXLSX(path, l.sheet)
	default:
		return nil, apperrors.NewParsingError(fmt.Sprintf("unsupported input format %q", filepath.Ext(path)), nil)
	}
	if err != nil {
		return nil, err
	}

	res, err := l.build(path, header, records)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "panel file loaded",
		"source", path,
		"rows", res.Table.Len(),
		"columns", len(res.Columns),
		"issues", len(res.Issues),
	)
	return res, nil
}

// build maps raw records onto panel rows
func (l *Loader) build(source string, header []string, records [][]string) (*Result, error) {
	index, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: source, Columns: sortedColumns(index)}
	rows := make([]panel.Row, 0, len(records))
	var violations []string

	for n, rec := range records {
		line := n + 2
		if isBlank(rec) {
			continue
		}
		cell := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := panel.Row{
			EntityID: cell(panel.ColEntityID),
			Category: normalizeCategory(cell(panel.ColCategory)),
			Columns:  make(map[string]panel.Value, len(index)),
		}
		year, err := parseYear(cell(panel.ColYear))
		if err != nil {
			violations = append(violations, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		row.Year = year

		for col := range index {
			switch col {
			case panel.ColEntityID, panel.ColYear, panel.ColCategory:
				continue
			}
			if !panel.IsNumericColumn(col) {
				if text := cell(col); text != "" {
					row.SetLabel(col, text)
				}
				continue
			}
			v, ok := parseNumber(cell(col))
			if !ok {
				res.Issues = append(res.Issues, panel.Issue{
					EntityID: row.EntityID,
					Year:     row.Year,
					Stage:    StageName,
					Reason:   fmt.Sprintf("line %d: column %s value %q is not a number", line, col, cell(col)),
				})
			}
			row.Set(col, v)
		}
		rows = append(rows, row)
	}

	if len(violations) > 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("%d unreadable row(s) in %s: %v", len(violations), source, violations)).
			WithContext("violations", violations)
	}

	table, err := panel.New(rows)
	if err != nil {
		return nil, fmt.Errorf("build panel from %s: %w", source, err)
	}
	res.Table = table
	return res, nil
}

// mapHeader resolves aliases and checks required columns
func mapHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "" {
			continue
		}
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := index[name]; dup {
			return nil, apperrors.NewSchemaError(fmt.Sprintf("column %s appears more than once", name))
		}
		index[name] = i
	}

	var missing []string
	for _, col := range panel.RequiredColumns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", "))).
			WithContext("missing", missing)
	}
	return index, nil
}

func sortedColumns(index map[string]int) []string {
	cols := make([]string, 0, len(index))
	for c := range index {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return index[cols[i]] < index[cols[j]] })
	return cols
}

// normalizeCategory maps free-text control labels such as "Private
// nonprofit" onto the closed category set; anything else is kept verbatim
// and rejected when the panel is built.
func normalizeCategory(s string) panel.Category {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "public"):
		return panel.CategoryPublic
	case strings.HasPrefix(lower, "private"):
		return panel.CategoryPrivate
	default:
		return panel.Category(s)
	}
}

func parseYear(s string) (int, error) {
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return int(f), nil
}

// parseNumber returns a null value for missing tokens. ok is false only when
// the cell held text that is not a number.
func parseNumber(s string) (panel.Value, bool) {
	if nullTokens[strings.ToLower(s)] {
		return panel.Null(), true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return panel.Null(), false
	}
	return panel.Of(f), true
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
