// Package tax implements tax rate resolution and tax amount calculation.
//
// Resolution follows a strict priority chain (customer exemption, explicit
// rate, product rate, customer override, global default). Calculation supports
// exclusive and inclusive pricing with a configurable rounding policy; one
// figure is rounded and its counterpart derived by exact addition or
// subtraction so results always reconcile.
package tax

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// CalculationResult is an immutable calculation outcome. Subtotal is only set
// for inclusive calculations.
type CalculationResult struct {
	BaseAmount  decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Subtotal    *decimal.Decimal
}

// Calculate computes tax for amount at rate (a percentage in [0,100]) using
// the given method and rounding policy. Pure and deterministic: identical
// inputs yield identical results.
func Calculate(amount, rate float64, method CalculationMethod, policy RoundingPolicy) (CalculationResult, error) {
	if err := validAmount(amount); err != nil {
		return CalculationResult{}, err
	}
	if err := validRate(rate); err != nil {
		return CalculationResult{}, err
	}

	amt := decimal.NewFromFloat(amount)
	rt := decimal.NewFromFloat(rate)

	switch method {
	case MethodInclusive:
		// Reverse calculation: extract tax embedded in a quoted total.
		// Subtotal is rounded, tax derived by subtraction so that
		// subtotal + tax == amount exactly.
		divisor := decimal.NewFromInt(1).Add(rt.Div(oneHundred))
		subtotal := policy.Apply(amt.Div(divisor))
		taxAmount := amt.Sub(subtotal)
		return CalculationResult{
			BaseAmount:  amt,
			TaxRate:     rt,
			TaxAmount:   taxAmount,
			TotalAmount: amt,
			Subtotal:    &subtotal,
		}, nil
	default:
		// Exclusive: tax is rounded, total derived by addition.
		taxAmount := policy.Apply(amt.Mul(rt).Div(oneHundred))
		return CalculationResult{
			BaseAmount:  amt,
			TaxRate:     rt,
			TaxAmount:   taxAmount,
			TotalAmount: amt.Add(taxAmount),
		}, nil
	}
}

// CalculateWithContext resolves the effective rate for ctx and calculates tax
// on amount using the settings carried by the context.
func CalculateWithContext(amount float64, ctx Context) (CalculationResult, Resolution, error) {
	resolution, err := Resolve(ctx)
	if err != nil {
		return CalculationResult{}, Resolution{}, err
	}
	result, err := Calculate(amount, resolution.Rate, ctx.Settings.CalculationMethod, ctx.Settings.RoundingPolicy())
	if err != nil {
		return CalculationResult{}, Resolution{}, err
	}
	return result, resolution, nil
}
