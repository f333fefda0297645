package tax

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines data access for tax configuration.
type Repository interface {
	GetSettings(ctx context.Context) (GlobalTaxSettings, error)
	SaveSettings(ctx context.Context, settings GlobalTaxSettings) error
	GetCustomerProfile(ctx context.Context, customerID int64) (CustomerTaxProfile, error)
	SaveCustomerProfile(ctx context.Context, customerID int64, profile CustomerTaxProfile) error
	GetProductRate(ctx context.Context, productID int64) (*float64, error)
}

// ErrNotFound indicates a missing tax configuration record.
var ErrNotFound = errors.New("tax record not found")

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// GetSettings loads the singleton settings row, falling back to defaults when
// the row was never written.
func (r *repository) GetSettings(ctx context.Context) (GlobalTaxSettings, error) {
	const query = `
		SELECT default_rate, calculation_method, rounding_method, rounding_precision,
			allow_product_override, allow_customer_exemption
		FROM tax_settings WHERE id = 1`

	var s GlobalTaxSettings
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.DefaultRate,
		&s.CalculationMethod,
		&s.RoundingMethod,
		&s.RoundingPrecision,
		&s.AllowProductOverride,
		&s.AllowCustomerExemption,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return GlobalTaxSettings{}, err
	}
	return s, nil
}

func (r *repository) SaveSettings(ctx context.Context, settings GlobalTaxSettings) error {
	const query = `
		INSERT INTO tax_settings (id, default_rate, calculation_method, rounding_method,
			rounding_precision, allow_product_override, allow_customer_exemption, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			default_rate = EXCLUDED.default_rate,
			calculation_method = EXCLUDED.calculation_method,
			rounding_method = EXCLUDED.rounding_method,
			rounding_precision = EXCLUDED.rounding_precision,
			allow_product_override = EXCLUDED.allow_product_override,
			allow_customer_exemption = EXCLUDED.allow_customer_exemption,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		settings.DefaultRate,
		settings.CalculationMethod,
		settings.RoundingMethod,
		settings.RoundingPrecision,
		settings.AllowProductOverride,
		settings.AllowCustomerExemption,
	)
	return err
}

func (r *repository) GetCustomerProfile(ctx context.Context, customerID int64) (CustomerTaxProfile, error) {
	const query = `
		SELECT tax_exempt, tax_rate_override, exemption_reason
		FROM customer_tax_profiles WHERE customer_id = $1`

	var (
		profile  CustomerTaxProfile
		override pgtype.Float8
		reason   pgtype.Text
	)
	err := r.pool.QueryRow(ctx, query, customerID).Scan(&profile.TaxExempt, &override, &reason)
	if errors.Is(err, pgx.ErrNoRows) {
		// Customers without a profile are simply non-exempt with no override.
		return CustomerTaxProfile{}, nil
	}
	if err != nil {
		return CustomerTaxProfile{}, err
	}
	if override.Valid {
		profile.TaxRateOverride = &override.Float64
	}
	if reason.Valid {
		profile.ExemptionReason = reason.String
	}
	return profile, nil
}

func (r *repository) SaveCustomerProfile(ctx context.Context, customerID int64, profile CustomerTaxProfile) error {
	const query = `
		INSERT INTO customer_tax_profiles (customer_id, tax_exempt, tax_rate_override, exemption_reason, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (customer_id) DO UPDATE SET
			tax_exempt = EXCLUDED.tax_exempt,
			tax_rate_override = EXCLUDED.tax_rate_override,
			exemption_reason = EXCLUDED.exemption_reason,
			updated_at = NOW()`

	var override pgtype.Float8
	if profile.TaxRateOverride != nil {
		override = pgtype.Float8{Float64: *profile.TaxRateOverride, Valid: true}
	}
	var reason pgtype.Text
	if profile.ExemptionReason != "" {
		reason = pgtype.Text{String: profile.ExemptionReason, Valid: true}
	}

	_, err := r.pool.Exec(ctx, query, customerID, profile.TaxExempt, override, reason)
	return err
}

func (r *repository) GetProductRate(ctx context.Context, productID int64) (*float64, error) {
	const query = `SELECT rate FROM product_tax_rates WHERE product_id = $1`

	var rate float64
	err := r.pool.QueryRow(ctx, query, productID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
