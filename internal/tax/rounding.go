package tax

import "github.com/shopspring/decimal"

// RoundingPolicy pairs a rounding method with a decimal precision. The same
// policy is applied to every rounded figure in a calculation so that derived
// values reconcile exactly.
type RoundingPolicy struct {
	Method    RoundingMethod
	Precision int32
}

// Apply rounds d according to the policy. RoundHalfUp rounds half away from
// zero, which for the non-negative amounts this package accepts is half-up.
func (p RoundingPolicy) Apply(d decimal.Decimal) decimal.Decimal {
	switch p.Method {
	case RoundFloor:
		return d.RoundFloor(p.Precision)
	case RoundCeil:
		return d.RoundCeil(p.Precision)
	default:
		return d.Round(p.Precision)
	}
}
