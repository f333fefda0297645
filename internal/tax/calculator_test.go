package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func policy(method RoundingMethod, precision int32) RoundingPolicy {
	return RoundingPolicy{Method: method, Precision: precision}
}

func TestCalculateExclusive(t *testing.T) {
	result, err := Calculate(100000, 11, MethodExclusive, policy(RoundHalfUp, 2))
	require.NoError(t, err)

	require.True(t, result.TaxAmount.Equal(decimal.NewFromInt(11000)), "tax=%s", result.TaxAmount)
	require.True(t, result.TotalAmount.Equal(decimal.NewFromInt(111000)), "total=%s", result.TotalAmount)
	require.Nil(t, result.Subtotal)
}

func TestCalculateInclusive(t *testing.T) {
	result, err := Calculate(111000, 11, MethodInclusive, policy(RoundHalfUp, 2))
	require.NoError(t, err)

	require.NotNil(t, result.Subtotal)
	require.True(t, result.Subtotal.Equal(decimal.NewFromInt(100000)), "subtotal=%s", result.Subtotal)
	require.True(t, result.TaxAmount.Equal(decimal.NewFromInt(11000)), "tax=%s", result.TaxAmount)
	require.True(t, result.TotalAmount.Equal(decimal.NewFromInt(111000)))
}

func TestCalculateExclusiveReconciles(t *testing.T) {
	policies := []RoundingPolicy{
		policy(RoundHalfUp, 0), policy(RoundHalfUp, 2),
		policy(RoundFloor, 0), policy(RoundFloor, 2),
		policy(RoundCeil, 0), policy(RoundCeil, 2),
	}
	amounts := []float64{0, 0.01, 99.99, 100000, 123456.78}
	rates := []float64{0, 5, 7.5, 11, 100}

	for _, p := range policies {
		for _, amount := range amounts {
			for _, rate := range rates {
				result, err := Calculate(amount, rate, MethodExclusive, p)
				require.NoError(t, err)
				// total must equal base + tax exactly, never re-rounded.
				require.True(t, result.TotalAmount.Equal(result.BaseAmount.Add(result.TaxAmount)),
					"policy=%v amount=%v rate=%v", p, amount, rate)
			}
		}
	}
}

func TestCalculateInclusiveReconciles(t *testing.T) {
	policies := []RoundingPolicy{
		policy(RoundHalfUp, 0), policy(RoundHalfUp, 2),
		policy(RoundFloor, 0), policy(RoundFloor, 2),
		policy(RoundCeil, 0), policy(RoundCeil, 2),
	}
	totals := []float64{0, 0.01, 99.99, 111000, 123456.78}
	rates := []float64{0, 5, 7.5, 11, 100}

	for _, p := range policies {
		for _, total := range totals {
			for _, rate := range rates {
				result, err := Calculate(total, rate, MethodInclusive, p)
				require.NoError(t, err)
				require.NotNil(t, result.Subtotal)
				require.True(t, result.Subtotal.Add(result.TaxAmount).Equal(result.TotalAmount),
					"policy=%v total=%v rate=%v", p, total, rate)
			}
		}
	}
}

func TestCalculateRoundingMethods(t *testing.T) {
	// 10.005% of 100 = 10.005: half-up and floor/ceil must disagree at 2dp.
	cases := []struct {
		method RoundingMethod
		want   string
	}{
		{RoundHalfUp, "10.01"},
		{RoundFloor, "10"},
		{RoundCeil, "10.01"},
	}
	for _, tc := range cases {
		result, err := Calculate(100, 10.005, MethodExclusive, policy(tc.method, 2))
		require.NoError(t, err)
		require.True(t, result.TaxAmount.Equal(decimal.RequireFromString(tc.want)),
			"method=%s got=%s", tc.method, result.TaxAmount)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	first, err := Calculate(123456.78, 7.25, MethodInclusive, policy(RoundHalfUp, 2))
	require.NoError(t, err)
	second, err := Calculate(123456.78, 7.25, MethodInclusive, policy(RoundHalfUp, 2))
	require.NoError(t, err)

	require.True(t, first.TaxAmount.Equal(second.TaxAmount))
	require.True(t, first.Subtotal.Equal(*second.Subtotal))
	require.Equal(t, first.TaxAmount.String(), second.TaxAmount.String())
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	_, err := Calculate(-1, 10, MethodExclusive, policy(RoundHalfUp, 2))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Calculate(100, 101, MethodExclusive, policy(RoundHalfUp, 2))
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = Calculate(100, -0.01, MethodInclusive, policy(RoundHalfUp, 2))
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestCalculateWithContextExemption(t *testing.T) {
	settings := testSettings()
	result, resolution, err := CalculateWithContext(5000, Context{
		ExplicitRate: ptr(20),
		ProductRate:  ptr(15),
		Customer:     CustomerTaxProfile{TaxExempt: true, TaxRateOverride: ptr(10)},
		Settings:     settings,
	})
	require.NoError(t, err)
	require.Equal(t, SourceExemption, resolution.Source)
	require.True(t, result.TaxAmount.IsZero())
	require.True(t, result.TotalAmount.Equal(decimal.NewFromInt(5000)))
}

func TestSettingsValidate(t *testing.T) {
	valid := testSettings()
	require.NoError(t, valid.Validate())

	bad := valid
	bad.DefaultRate = 120
	require.Error(t, bad.Validate())

	bad = valid
	bad.RoundingMethod = "bankers"
	require.Error(t, bad.Validate())

	bad = valid
	bad.CalculationMethod = "additive"
	require.Error(t, bad.Validate())

	bad = valid
	bad.RoundingPrecision = -1
	require.Error(t, bad.Validate())
}
