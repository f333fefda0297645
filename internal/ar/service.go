package ar

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CustomerAging is one row of the per-customer aging report.
type CustomerAging struct {
	CustomerID        int64        `json:"customer_id"`
	CustomerName      string       `json:"customer_name"`
	Totals            BucketTotals `json:"totals"`
	TotalOutstanding  float64      `json:"total_outstanding"`
	OverduePercentage float64      `json:"overdue_percentage"`
	RiskScore         float64      `json:"risk_score"`
}

// RegisterPaymentInput describes a payment receive registration.
type RegisterPaymentInput struct {
	Number     string
	CustomerID int64
	Amount     float64
	ReceivedAt time.Time
}

// AllocationRequest identifies a proposed allocation.
type AllocationRequest struct {
	PaymentID int64
	InvoiceID int64
	Amount    float64
}

// Service handles AR business logic.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	logger  *slog.Logger
	weights RiskWeights
}

// NewService builds a Service instance. A nil cache disables caching.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, weights: DefaultRiskWeights}
}

// SetRiskWeights overrides the bucket weighting used for risk scores.
func (s *Service) SetRiskWeights(weights RiskWeights) {
	s.weights = weights
}

func normalizeAsOf(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return asOf.UTC().Truncate(24 * time.Hour)
}

// AgingSummary computes (or fetches from cache) the aggregate aging snapshot.
func (s *Service) AgingSummary(ctx context.Context, asOf time.Time) (AgingSummary, error) {
	asOf = normalizeAsOf(asOf)

	loader := func(ctx context.Context) (interface{}, error) {
		invoices, err := s.repo.ListOutstanding(ctx, asOf)
		if err != nil {
			return nil, err
		}
		return Summarize(agingEntries(invoices), asOf, s.weights), nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return AgingSummary{}, err
		}
		return value.(AgingSummary), nil
	}

	key, err := s.cache.BuildKey(ctx, keyAging(asOf)...)
	if err != nil {
		return AgingSummary{}, err
	}
	var summary AgingSummary
	if err := s.cache.FetchJSON(ctx, key, &summary, loader); err != nil {
		return AgingSummary{}, err
	}
	return summary, nil
}

// CustomerAging computes (or fetches from cache) per-customer aging rows,
// worst risk first.
func (s *Service) CustomerAging(ctx context.Context, asOf time.Time) ([]CustomerAging, error) {
	asOf = normalizeAsOf(asOf)

	loader := func(ctx context.Context) (interface{}, error) {
		invoices, err := s.repo.ListOutstanding(ctx, asOf)
		if err != nil {
			return nil, err
		}
		return s.groupByCustomer(invoices, asOf), nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]CustomerAging), nil
	}

	key, err := s.cache.BuildKey(ctx, keyCustomerAging(asOf)...)
	if err != nil {
		return nil, err
	}
	var rows []CustomerAging
	if err := s.cache.FetchJSON(ctx, key, &rows, loader); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) groupByCustomer(invoices []Invoice, asOf time.Time) []CustomerAging {
	byCustomer := make(map[int64][]AgingEntry)
	names := make(map[int64]string)
	for _, inv := range invoices {
		byCustomer[inv.CustomerID] = append(byCustomer[inv.CustomerID], AgingEntry{
			CustomerID:   inv.CustomerID,
			CustomerName: inv.CustomerName,
			Amount:       inv.Outstanding,
			DueAt:        inv.DueAt,
		})
		names[inv.CustomerID] = inv.CustomerName
	}

	rows := make([]CustomerAging, 0, len(byCustomer))
	for customerID, entries := range byCustomer {
		summary := Summarize(entries, asOf, s.weights)
		rows = append(rows, CustomerAging{
			CustomerID:        customerID,
			CustomerName:      names[customerID],
			Totals:            summary.Totals,
			TotalOutstanding:  summary.TotalOutstanding,
			OverduePercentage: summary.OverduePercentage,
			RiskScore:         summary.RiskScore,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RiskScore != rows[j].RiskScore {
			return rows[i].RiskScore > rows[j].RiskScore
		}
		return rows[i].CustomerID < rows[j].CustomerID
	})
	return rows
}

func agingEntries(invoices []Invoice) []AgingEntry {
	entries := make([]AgingEntry, 0, len(invoices))
	for _, inv := range invoices {
		entries = append(entries, AgingEntry{
			CustomerID:   inv.CustomerID,
			CustomerName: inv.CustomerName,
			Amount:       inv.Outstanding,
			DueAt:        inv.DueAt,
		})
	}
	return entries
}

// RegisterPayment records a payment receive. A reference number is generated
// when the caller does not supply one.
func (s *Service) RegisterPayment(ctx context.Context, input RegisterPaymentInput) (*PaymentReceive, error) {
	if input.CustomerID <= 0 {
		return nil, errors.New("customer ID required")
	}
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if input.Number == "" {
		input.Number = "PR-" + uuid.NewString()
	}
	return s.repo.CreatePayment(ctx, CreatePaymentInput{
		Number:     input.Number,
		CustomerID: input.CustomerID,
		Amount:     input.Amount,
		ReceivedAt: input.ReceivedAt,
	})
}

// Payments lists payment receives.
func (s *Service) Payments(ctx context.Context) ([]PaymentReceive, error) {
	return s.repo.ListPayments(ctx)
}

// Payment returns one payment receive.
func (s *Service) Payment(ctx context.Context, id int64) (*PaymentReceive, error) {
	return s.repo.GetPayment(ctx, id)
}

// PreviewAllocation runs the pure allocation pre-check against current state
// without writing anything.
func (s *Service) PreviewAllocation(ctx context.Context, req AllocationRequest) (AllocationPlan, error) {
	payment, err := s.repo.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return AllocationPlan{}, err
	}
	invoice, err := s.repo.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return AllocationPlan{}, err
	}
	return CheckAllocation(*payment, *invoice, req.Amount)
}

// CreateAllocation validates and persists an allocation, then invalidates
// cached aging snapshots.
func (s *Service) CreateAllocation(ctx context.Context, req AllocationRequest) (*PaymentAllocation, error) {
	plan, err := s.PreviewAllocation(ctx, req)
	if err != nil {
		return nil, err
	}
	allocation, err := s.repo.ApplyAllocation(ctx, plan)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("aging cache bump failed", slog.Any("error", err))
	}
	return allocation, nil
}
