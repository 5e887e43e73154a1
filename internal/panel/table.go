package panel

import (
	"fmt"
	"math"
	"sort"

	apperrors "spendtrend/internal/errors"
)

// maxReportedViolations caps the violations listed in a schema error message
const maxReportedViolations = 5

// Table is an in-memory panel with exactly one row per (entity, year).
// A Table is owned by one stage at a time; stages that change data work on a
// Clone and hand the clone downstream.
type Table struct {
	rows  []Row
	index map[Key]int
}

// New validates rows and builds a Table. Duplicate (entity, year) pairs,
// unknown categories and non-positive denominators are schema violations:
// the rows are never dropped or deduplicated.
func New(rows []Row) (*Table, error) {
	t := &Table{
		rows:  make([]Row, 0, len(rows)),
		index: make(map[Key]int, len(rows)),
	}

	var violations []string
	for i, r := range rows {
		if msg := validateRow(r); msg != "" {
			violations = append(violations, fmt.Sprintf("row %d (%s): %s", i, r.Key(), msg))
			continue
		}
		if prev, dup := t.index[r.Key()]; dup {
			violations = append(violations, fmt.Sprintf("row %d: duplicate %s (first seen at row %d)", i, r.Key(), prev))
			continue
		}
		t.index[r.Key()] = len(t.rows)
		t.rows = append(t.rows, r.Clone())
	}

	if len(violations) > 0 {
		return nil, schemaError(violations)
	}
	return t, nil
}

func validateRow(r Row) string {
	if r.EntityID == "" {
		return "empty entity id"
	}
	if r.Year <= 0 {
		return fmt.Sprintf("invalid year %d", r.Year)
	}
	if !r.Category.IsValid() {
		return fmt.Sprintf("unknown category %q", r.Category)
	}
	if f, ok := r.FTE.Get(); ok && f <= 0 {
		return fmt.Sprintf("denominator must be positive, got %g", f)
	}
	for _, col := range NumeratorFields() {
		if v, ok := r.Columns[col].Get(); ok && v < 0 {
			return fmt.Sprintf("%s must be non-negative, got %g", col, v)
		}
	}
	return ""
}

func schemaError(violations []string) error {
	shown := violations
	if len(shown) > maxReportedViolations {
		shown = shown[:maxReportedViolations]
	}
	msg := fmt.Sprintf("%d schema violation(s): %v", len(violations), shown)
	return apperrors.NewSchemaError(msg).WithContext("violations", violations)
}

// SplitYearRange returns a table holding only the rows with a year in
// [start, end] and the rows left out, in load order. The returned table
// shares nothing with t.
func (t *Table) SplitYearRange(start, end int) (*Table, []Row) {
	in := &Table{index: make(map[Key]int, len(t.rows))}
	var out []Row
	for _, r := range t.rows {
		if r.Year < start || r.Year > end {
			out = append(out, r.Clone())
			continue
		}
		in.index[r.Key()] = len(in.rows)
		in.rows = append(in.rows, r.Clone())
	}
	return in, out
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows exposes the backing rows in load order. Only the owner of a table
// (normally the stage that cloned it) may modify them.
func (t *Table) Rows() []Row {
	return t.rows
}

// Lookup returns the row for (entity, year)
func (t *Table) Lookup(entityID string, year int) (Row, bool) {
	i, ok := t.index[Key{EntityID: entityID, Year: year}]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// IndexOf returns the position of (entity, year) in Rows
func (t *Table) IndexOf(k Key) (int, bool) {
	i, ok := t.index[k]
	return i, ok
}

// FTE returns the denominator for (entity, year), null when the row or the
// value is absent.
func (t *Table) FTE(entityID string, year int) Value {
	r, ok := t.Lookup(entityID, year)
	if !ok {
		return Null()
	}
	return r.FTE
}

// Clone returns a deep copy that shares nothing with t
func (t *Table) Clone() *Table {
	out := &Table{
		rows:  make([]Row, len(t.rows)),
		index: make(map[Key]int, len(t.index)),
	}
	for i, r := range t.rows {
		out.rows[i] = r.Clone()
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}

// Entities returns the distinct entity ids in ascending order
func (t *Table) Entities() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		seen[r.EntityID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Years returns the distinct years in ascending order
func (t *Table) Years() []int {
	seen := make(map[int]struct{})
	for _, r := range t.rows {
		seen[r.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// YearBounds returns the first and last year present. ok is false for an
// empty table.
func (t *Table) YearBounds() (first, last int, ok bool) {
	if len(t.rows) == 0 {
		return 0, 0, false
	}
	first, last = math.MaxInt, math.MinInt
	for _, r := range t.rows {
		if r.Year < first {
			first = r.Year
		}
		if r.Year > last {
			last = r.Year
		}
	}
	return first, last, true
}

// Columns returns every column name present in at least one row, sorted
func (t *Table) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		for c := range r.Columns {
			seen[c] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// LabelColumns returns the text columns present in any row, sorted by name
func (t *Table) LabelColumns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		for c := range r.Labels {
			seen[c] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Summarize reports the shape of the panel and missing values per column
func (t *Table) Summarize() Summary {
	s := Summary{
		Rows:           len(t.rows),
		Entities:       len(t.Entities()),
		RowsByYear:     make(map[int]int),
		RowsByCategory: make(map[Category]int),
		MissingValues:  make(map[string]int),
	}
	s.MinYear, s.MaxYear, _ = t.YearBounds()

	cols := append([]string{ColFTE}, NumeratorFields()...)
	for _, r := range t.rows {
		s.RowsByYear[r.Year]++
		s.RowsByCategory[r.Category]++
		for _, c := range cols {
			if r.Get(c).IsNull() {
				s.MissingValues[c]++
			}
		}
	}
	return s
}
