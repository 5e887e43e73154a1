package trend

import (
	"fmt"

	apperrors "spendtrend/internal/errors"
)

// Tier classifies a slope p-value
type Tier string

const (
	TierStrongest      Tier = "***"
	TierStrong         Tier = "**"
	TierWeak           Tier = "*"
	TierNotSignificant Tier = "NS"
)

// CutPoints are the p-value thresholds of the significance tiers
type CutPoints struct {
	Strongest float64 `json:"strongest" yaml:"strongest"`
	Strong    float64 `json:"strong" yaml:"strong"`
	Weak      float64 `json:"weak" yaml:"weak"`
}

// DefaultCutPoints returns 0.001 / 0.01 / 0.05
func DefaultCutPoints() CutPoints {
	return CutPoints{Strongest: 0.001, Strong: 0.01, Weak: 0.05}
}

// Validate requires 0 < Strongest < Strong < Weak < 1
func (c CutPoints) Validate() error {
	if !(c.Strongest > 0 && c.Strongest < c.Strong && c.Strong < c.Weak && c.Weak < 1) {
		return apperrors.NewConfigError(
			fmt.Sprintf("significance cut points must satisfy 0 < %g < %g < %g < 1", c.Strongest, c.Strong, c.Weak), nil)
	}
	return nil
}

// Classify maps a p-value onto a tier using strict less-than comparisons
func (c CutPoints) Classify(p float64) Tier {
	switch {
	case p < c.Strongest:
		return TierStrongest
	case p < c.Strong:
		return TierStrong
	case p < c.Weak:
		return TierWeak
	default:
		return TierNotSignificant
	}
}
