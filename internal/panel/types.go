package panel

import (
	"fmt"
	"sort"
	"strings"
)

// Category is the closed set of institution categories
type Category string

const (
	// CategoryPublic covers publicly controlled institutions
	CategoryPublic Category = "Public"
	// CategoryPrivate covers private institutions
	CategoryPrivate Category = "Private"
)

// Categories returns every valid category in reporting order
func Categories() []Category {
	return []Category{CategoryPublic, CategoryPrivate}
}

// IsValid reports whether c belongs to the closed category set
func (c Category) IsValid() bool {
	switch c {
	case CategoryPublic, CategoryPrivate:
		return true
	default:
		return false
	}
}

// ParseCategory maps loader text onto a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Column names of the panel schema.
const (
	ColEntityID = "entity_id"
	ColYear     = "year"
	ColCategory = "category"
	ColFTE      = "fte"

	ColAdmin       = "admin"
	ColInstruction = "instruction"
	ColResearch    = "research"
	ColState       = "state"
	ColTotal       = "total"
)

// Suffixes of derived columns
const (
	PerUnitSuffix = "_per_fte"
	ShareSuffix   = "_pct"
	RealSuffix    = "_real"
)

// NumeratorFields returns the nominal monetary input columns
func NumeratorFields() []string {
	return []string{ColAdmin, ColInstruction, ColResearch, ColState, ColTotal}
}

// ShareFields returns the numerators that are expressed as a share of total
func ShareFields() []string {
	return []string{ColAdmin, ColInstruction, ColResearch}
}

// RequiredColumns lists the columns a loader must find in its input
func RequiredColumns() []string {
	return append([]string{ColEntityID, ColYear, ColCategory, ColFTE}, NumeratorFields()...)
}

// PerUnit returns the per-FTE column name derived from a numerator
func PerUnit(field string) string { return field + PerUnitSuffix }

// Share returns the share-of-total column name derived from a numerator
func Share(field string) string { return field + ShareSuffix }

// Real returns the base-year dollars column derived from a nominal column
func Real(col string) string { return col + RealSuffix }

// Key identifies one (entity, year) observation
type Key struct {
	EntityID string
	Year     int
}

// String returns "entity@year"
func (k Key) String() string {
	return fmt.Sprintf("%s@%d", k.EntityID, k.Year)
}

// Row is one (entity, year) observation
type Row struct {
	EntityID string
	Year     int
	Category Category

	// FTE is the denominator series
	FTE Value
	// OriginalFTE holds the loaded FTE when FTE has been reconstructed
	OriginalFTE Value
	// FTECorrected marks rows whose FTE was replaced by the corrector
	FTECorrected bool

	// Columns holds numerators and every derived column by name
	Columns map[string]Value
	// Labels holds descriptive text columns such as the institution name.
	// They are carried to the exports and never analyzed.
	Labels map[string]string
}

// Key returns the row's (entity, year) key
func (r Row) Key() Key {
	return Key{EntityID: r.EntityID, Year: r.Year}
}

// Get returns the named column. "fte" resolves to the denominator.
func (r Row) Get(col string) Value {
	if col == ColFTE {
		return r.FTE
	}
	return r.Columns[col]
}

// Set stores a value in the named column
func (r *Row) Set(col string, v Value) {
	if col == ColFTE {
		r.FTE = v
		return
	}
	if r.Columns == nil {
		r.Columns = make(map[string]Value)
	}
	r.Columns[col] = v
}

// SetLabel stores a text column
func (r *Row) SetLabel(col, text string) {
	if r.Labels == nil {
		r.Labels = make(map[string]string)
	}
	r.Labels[col] = text
}

// IsNumericColumn reports whether col holds numbers: the denominator, a
// numerator, or a column derived from them
func IsNumericColumn(col string) bool {
	if col == ColFTE {
		return true
	}
	for _, f := range NumeratorFields() {
		if col == f {
			return true
		}
	}
	for _, suffix := range []string{PerUnitSuffix, ShareSuffix, RealSuffix} {
		if strings.HasSuffix(col, suffix) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the row
func (r Row) Clone() Row {
	out := r
	out.Columns = make(map[string]Value, len(r.Columns))
	for k, v := range r.Columns {
		out.Columns[k] = v
	}
	if r.Labels != nil {
		out.Labels = make(map[string]string, len(r.Labels))
		for k, v := range r.Labels {
			out.Labels[k] = v
		}
	}
	return out
}

// Summary describes a loaded panel for inspection and reporting
type Summary struct {
	Rows           int              `json:"rows"`
	Entities       int              `json:"entities"`
	MinYear        int              `json:"min_year"`
	MaxYear        int              `json:"max_year"`
	RowsByYear     map[int]int      `json:"rows_by_year"`
	RowsByCategory map[Category]int `json:"rows_by_category"`
	MissingValues  map[string]int   `json:"missing_values"`
}

// Years returns the summary's years in ascending order
func (s Summary) Years() []int {
	years := make([]int, 0, len(s.RowsByYear))
	for y := range s.RowsByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Issue annotates a row-level problem that was recovered locally, such as a
// year missing from the deflator mapping. Issues never abort a run.
type Issue struct {
	EntityID string `json:"entity_id"`
	Year     int    `json:"year"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}
