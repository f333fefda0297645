package tax

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryTaxRepo struct {
	settings GlobalTaxSettings
	profiles map[int64]CustomerTaxProfile
	products map[int64]float64
}

func newMemoryTaxRepo() *memoryTaxRepo {
	return &memoryTaxRepo{
		settings: DefaultSettings(),
		profiles: map[int64]CustomerTaxProfile{},
		products: map[int64]float64{},
	}
}

func (m *memoryTaxRepo) GetSettings(ctx context.Context) (GlobalTaxSettings, error) {
	return m.settings, nil
}

func (m *memoryTaxRepo) SaveSettings(ctx context.Context, settings GlobalTaxSettings) error {
	m.settings = settings
	return nil
}

func (m *memoryTaxRepo) GetCustomerProfile(ctx context.Context, customerID int64) (CustomerTaxProfile, error) {
	return m.profiles[customerID], nil
}

func (m *memoryTaxRepo) SaveCustomerProfile(ctx context.Context, customerID int64, profile CustomerTaxProfile) error {
	m.profiles[customerID] = profile
	return nil
}

func (m *memoryTaxRepo) GetProductRate(ctx context.Context, productID int64) (*float64, error) {
	rate, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

func newTestTaxService(repo *memoryTaxRepo) *Service {
	return NewService(repo, slog.Default())
}

func TestServiceSaveSettingsRejectsInvalid(t *testing.T) {
	repo := newMemoryTaxRepo()
	svc := newTestTaxService(repo)

	bad := DefaultSettings()
	bad.DefaultRate = 150
	err := svc.SaveSettings(context.Background(), bad)
	require.ErrorIs(t, err, ErrInvalidRate)

	// The stored settings must be untouched after a rejected save.
	got, err := svc.Settings(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), got)
}

func TestServiceSaveCustomerProfileValidatesOverride(t *testing.T) {
	repo := newMemoryTaxRepo()
	svc := newTestTaxService(repo)

	err := svc.SaveCustomerProfile(context.Background(), 7, CustomerTaxProfile{TaxRateOverride: ptr(120)})
	require.ErrorIs(t, err, ErrInvalidRate)

	err = svc.SaveCustomerProfile(context.Background(), 7, CustomerTaxProfile{TaxRateOverride: ptr(7.5)})
	require.NoError(t, err)
}

func TestServiceResolveUsesStoredProfile(t *testing.T) {
	repo := newMemoryTaxRepo()
	repo.settings.DefaultRate = 11
	repo.profiles[42] = CustomerTaxProfile{TaxExempt: true, ExemptionReason: "registered charity"}
	svc := newTestTaxService(repo)

	res, err := svc.ResolveRate(context.Background(), ResolveRequest{CustomerID: 42})
	require.NoError(t, err)
	require.Equal(t, SourceExemption, res.Source)
	require.Zero(t, res.Rate)
}

func TestServiceResolveLoadsProductRate(t *testing.T) {
	repo := newMemoryTaxRepo()
	repo.settings.DefaultRate = 11
	repo.products[1002] = 5
	svc := newTestTaxService(repo)

	res, err := svc.ResolveRate(context.Background(), ResolveRequest{ProductID: 1002})
	require.NoError(t, err)
	require.Equal(t, SourceProduct, res.Source)
	require.Equal(t, 5.0, res.Rate)
}

func TestServiceResolveSkipsProductRateWhenDisabled(t *testing.T) {
	repo := newMemoryTaxRepo()
	repo.settings.DefaultRate = 11
	repo.settings.AllowProductOverride = false
	repo.products[1002] = 5
	svc := newTestTaxService(repo)

	res, err := svc.ResolveRate(context.Background(), ResolveRequest{ProductID: 1002})
	require.NoError(t, err)
	require.Equal(t, SourceDefault, res.Source)
	require.Equal(t, 11.0, res.Rate)
}

func TestServiceCalculateTaxMethodOverride(t *testing.T) {
	repo := newMemoryTaxRepo()
	repo.settings.DefaultRate = 11
	repo.settings.CalculationMethod = MethodExclusive
	svc := newTestTaxService(repo)

	result, res, err := svc.CalculateTax(context.Background(), CalculateRequest{
		Amount: 111000,
		Method: MethodInclusive,
	})
	require.NoError(t, err)
	require.Equal(t, SourceDefault, res.Source)
	require.NotNil(t, result.Subtotal)
	require.Equal(t, "100000", result.Subtotal.String())
	require.Equal(t, "11000", result.TaxAmount.String())
}
