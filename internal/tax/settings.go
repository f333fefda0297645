package tax

import (
	"fmt"
	"math"
)

// CalculationMethod selects how tax relates to the quoted amount.
type CalculationMethod string

const (
	// MethodExclusive adds tax on top of the base amount.
	MethodExclusive CalculationMethod = "exclusive"
	// MethodInclusive extracts tax already embedded in the quoted total.
	MethodInclusive CalculationMethod = "inclusive"
)

// RoundingMethod enumerates supported rounding strategies.
type RoundingMethod string

const (
	RoundHalfUp RoundingMethod = "round"
	RoundFloor  RoundingMethod = "floor"
	RoundCeil   RoundingMethod = "ceil"
)

// GlobalTaxSettings is the process-wide tax configuration singleton.
type GlobalTaxSettings struct {
	DefaultRate            float64           `json:"default_rate"`
	CalculationMethod      CalculationMethod `json:"calculation_method"`
	RoundingMethod         RoundingMethod    `json:"rounding_method"`
	RoundingPrecision      int32             `json:"rounding_precision"`
	AllowProductOverride   bool              `json:"allow_product_override"`
	AllowCustomerExemption bool              `json:"allow_customer_exemption"`
}

// Validate checks settings at construction time so point-of-use code can trust them.
func (s GlobalTaxSettings) Validate() error {
	if err := validRate(s.DefaultRate); err != nil {
		return fmt.Errorf("default_rate: %w", err)
	}
	switch s.CalculationMethod {
	case MethodExclusive, MethodInclusive:
	default:
		return fmt.Errorf("calculation_method %q: %w", s.CalculationMethod, ErrInvalidInput)
	}
	switch s.RoundingMethod {
	case RoundHalfUp, RoundFloor, RoundCeil:
	default:
		return fmt.Errorf("rounding_method %q: %w", s.RoundingMethod, ErrInvalidInput)
	}
	if s.RoundingPrecision < 0 {
		return fmt.Errorf("rounding_precision must be >= 0: %w", ErrInvalidInput)
	}
	return nil
}

// RoundingPolicy returns the rounding strategy configured on the settings.
func (s GlobalTaxSettings) RoundingPolicy() RoundingPolicy {
	return RoundingPolicy{Method: s.RoundingMethod, Precision: s.RoundingPrecision}
}

// DefaultSettings are applied when no settings row exists yet.
func DefaultSettings() GlobalTaxSettings {
	return GlobalTaxSettings{
		DefaultRate:            0,
		CalculationMethod:      MethodExclusive,
		RoundingMethod:         RoundHalfUp,
		RoundingPrecision:      2,
		AllowProductOverride:   true,
		AllowCustomerExemption: true,
	}
}

// CustomerTaxProfile carries the customer-owned tax fields. Read-only to the resolver.
type CustomerTaxProfile struct {
	TaxExempt       bool     `json:"tax_exempt"`
	TaxRateOverride *float64 `json:"tax_rate_override,omitempty"`
	ExemptionReason string   `json:"exemption_reason,omitempty"`
}

// Context holds every rate source considered for a single resolution.
// Transient, built per calculation, never persisted.
type Context struct {
	ExplicitRate *float64
	ProductRate  *float64
	Customer     CustomerTaxProfile
	Settings     GlobalTaxSettings
}

func validRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return ErrInvalidRate
	}
	if rate < 0 || rate > 100 {
		return ErrInvalidRate
	}
	return nil
}

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidInput
	}
	if amount < 0 {
		return ErrInvalidInput
	}
	return nil
}
