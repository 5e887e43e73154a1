package panel

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a nullable float64 cell. The zero Value is null.
type Value struct {
	Float float64
	Valid bool
}

// Null returns a null Value
func Null() Value {
	return Value{}
}

// Of wraps v as a Value. NaN and ±Inf are normalized to null so that no
// non-finite number ever leaves a stage.
func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{Float: v, Valid: true}
}

// Get returns the float and whether it is present
func (v Value) Get() (float64, bool) {
	return v.Float, v.Valid
}

// IsNull reports whether the value is absent
func (v Value) IsNull() bool {
	return !v.Valid
}

// Div returns v / d, or null when either operand is null or d is zero.
func (v Value) Div(d Value) Value {
	if !v.Valid || !d.Valid || d.Float == 0 {
		return Value{}
	}
	return Of(v.Float / d.Float)
}

// String formats the value for text output; null renders as an empty string
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// MarshalJSON encodes null values as JSON null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON decodes JSON null or a number
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}
