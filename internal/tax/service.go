package tax

import (
	"context"
	"log/slog"
)

// ResolveRequest carries the rate sources supplied by the caller. Customer and
// product data are loaded from the repository when IDs are given.
type ResolveRequest struct {
	CustomerID   int64
	ProductID    int64
	ExplicitRate *float64
	ProductRate  *float64
}

// CalculateRequest describes one calculation call.
type CalculateRequest struct {
	Amount       float64
	CustomerID   int64
	ProductID    int64
	ExplicitRate *float64
	ProductRate  *float64
	// Method overrides the configured calculation method when non-empty.
	Method CalculationMethod
}

// Service loads tax configuration and runs the resolution/calculation core.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Settings returns the global tax settings.
func (s *Service) Settings(ctx context.Context) (GlobalTaxSettings, error) {
	return s.repo.GetSettings(ctx)
}

// SaveSettings validates and persists the global settings singleton.
func (s *Service) SaveSettings(ctx context.Context, settings GlobalTaxSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.repo.SaveSettings(ctx, settings)
}

// CustomerProfile returns the tax profile for a customer.
func (s *Service) CustomerProfile(ctx context.Context, customerID int64) (CustomerTaxProfile, error) {
	return s.repo.GetCustomerProfile(ctx, customerID)
}

// SaveCustomerProfile validates and persists a customer tax profile.
func (s *Service) SaveCustomerProfile(ctx context.Context, customerID int64, profile CustomerTaxProfile) error {
	if profile.TaxRateOverride != nil {
		if err := validRate(*profile.TaxRateOverride); err != nil {
			return err
		}
	}
	return s.repo.SaveCustomerProfile(ctx, customerID, profile)
}

// buildContext assembles a resolution Context from stored configuration and
// the caller-supplied rate sources.
func (s *Service) buildContext(ctx context.Context, customerID, productID int64, explicitRate, productRate *float64) (Context, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return Context{}, err
	}

	var profile CustomerTaxProfile
	if customerID > 0 {
		profile, err = s.repo.GetCustomerProfile(ctx, customerID)
		if err != nil {
			return Context{}, err
		}
	}

	if productRate == nil && productID > 0 && settings.AllowProductOverride {
		productRate, err = s.repo.GetProductRate(ctx, productID)
		if err != nil {
			return Context{}, err
		}
	}

	return Context{
		ExplicitRate: explicitRate,
		ProductRate:  productRate,
		Customer:     profile,
		Settings:     settings,
	}, nil
}

// ResolveRate resolves the effective rate for the request.
func (s *Service) ResolveRate(ctx context.Context, req ResolveRequest) (Resolution, error) {
	taxCtx, err := s.buildContext(ctx, req.CustomerID, req.ProductID, req.ExplicitRate, req.ProductRate)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(taxCtx)
}

// CalculateTax resolves the effective rate and calculates tax for the request.
func (s *Service) CalculateTax(ctx context.Context, req CalculateRequest) (CalculationResult, Resolution, error) {
	taxCtx, err := s.buildContext(ctx, req.CustomerID, req.ProductID, req.ExplicitRate, req.ProductRate)
	if err != nil {
		return CalculationResult{}, Resolution{}, err
	}
	if req.Method != "" {
		taxCtx.Settings.CalculationMethod = req.Method
	}
	return CalculateWithContext(req.Amount, taxCtx)
}
