package ar

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryARRepo struct {
	invoices      map[int64]*Invoice
	payments      map[int64]*PaymentReceive
	allocations   []PaymentAllocation
	nextPaymentID int64
	nextAllocID   int64
}

func newMemoryARRepo() *memoryARRepo {
	return &memoryARRepo{
		invoices: make(map[int64]*Invoice),
		payments: make(map[int64]*PaymentReceive),
	}
}

func (r *memoryARRepo) addInvoice(inv Invoice) {
	copied := inv
	r.invoices[inv.ID] = &copied
}

func (r *memoryARRepo) addPayment(p PaymentReceive) {
	copied := p
	r.payments[p.ID] = &copied
}

func (r *memoryARRepo) ListOutstanding(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.Status == InvoiceStatusPosted && inv.Outstanding > 0 {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memoryARRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *memoryARRepo) GetPayment(ctx context.Context, id int64) (*PaymentReceive, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memoryARRepo) ListPayments(ctx context.Context) ([]PaymentReceive, error) {
	var out []PaymentReceive
	for _, p := range r.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryARRepo) CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentReceive, error) {
	r.nextPaymentID++
	p := &PaymentReceive{
		ID:                r.nextPaymentID,
		Number:            input.Number,
		CustomerID:        input.CustomerID,
		TotalAmount:       input.Amount,
		UnallocatedAmount: input.Amount,
		Status:            PaymentStatusOpen,
		ReceivedAt:        input.ReceivedAt,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryARRepo) ApplyAllocation(ctx context.Context, plan AllocationPlan) (*PaymentAllocation, error) {
	payment, ok := r.payments[plan.PaymentID]
	if !ok {
		return nil, ErrNotFound
	}
	invoice, ok := r.invoices[plan.InvoiceID]
	if !ok {
		return nil, ErrNotFound
	}
	checked, err := CheckAllocation(*payment, *invoice, plan.AllocatedAmount)
	if err != nil {
		return nil, err
	}
	payment.AllocatedAmount = payment.TotalAmount - checked.PaymentUnallocated
	payment.UnallocatedAmount = checked.PaymentUnallocated
	if checked.PaymentFullyAllocated {
		payment.Status = PaymentStatusAllocated
	}
	invoice.Outstanding = checked.InvoiceOutstanding
	if checked.InvoiceSettled {
		invoice.Status = InvoiceStatusPaid
	}

	r.nextAllocID++
	allocation := PaymentAllocation{
		ID:              r.nextAllocID,
		PaymentID:       plan.PaymentID,
		InvoiceID:       plan.InvoiceID,
		AllocatedAmount: plan.AllocatedAmount,
		Status:          AllocationApplied,
		CreatedAt:       time.Now(),
	}
	r.allocations = append(r.allocations, allocation)
	return &allocation, nil
}

func newTestService(repo RepositoryPort) *Service {
	return NewService(repo, nil, slog.Default())
}

func TestAgingSummaryFromOutstandingInvoices(t *testing.T) {
	asOf := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	repo := newMemoryARRepo()
	repo.addInvoice(Invoice{ID: 1, CustomerID: 1, CustomerName: "Acme", Status: InvoiceStatusPosted, Total: 1000, Outstanding: 1000, DueAt: asOf.AddDate(0, 0, 5)})
	repo.addInvoice(Invoice{ID: 2, CustomerID: 1, CustomerName: "Acme", Status: InvoiceStatusPosted, Total: 600, Outstanding: 400, DueAt: asOf.AddDate(0, 0, -45)})
	repo.addInvoice(Invoice{ID: 3, CustomerID: 2, CustomerName: "Globex", Status: InvoiceStatusPosted, Total: 900, Outstanding: 900, DueAt: asOf.AddDate(0, 0, -100)})
	// Paid invoices never contribute.
	repo.addInvoice(Invoice{ID: 4, CustomerID: 2, CustomerName: "Globex", Status: InvoiceStatusPaid, Total: 500, Outstanding: 0, DueAt: asOf.AddDate(0, 0, -200)})

	service := newTestService(repo)
	summary, err := service.AgingSummary(context.Background(), asOf)
	require.NoError(t, err)

	require.Equal(t, 1000.0, summary.Totals.Current)
	require.Equal(t, 400.0, summary.Totals.Days60)
	require.Equal(t, 900.0, summary.Totals.Days120)
	require.Equal(t, 2300.0, summary.TotalOutstanding)
	require.InDelta(t, (400.0+900.0)/2300.0*100, summary.OverduePercentage, 1e-9)
}

func TestCustomerAgingSortedByRisk(t *testing.T) {
	asOf := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	repo := newMemoryARRepo()
	repo.addInvoice(Invoice{ID: 1, CustomerID: 1, CustomerName: "Acme", Status: InvoiceStatusPosted, Total: 1000, Outstanding: 1000, DueAt: asOf.AddDate(0, 0, -5)})
	repo.addInvoice(Invoice{ID: 2, CustomerID: 2, CustomerName: "Globex", Status: InvoiceStatusPosted, Total: 1000, Outstanding: 1000, DueAt: asOf.AddDate(0, 0, -150)})

	service := newTestService(repo)
	rows, err := service.CustomerAging(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "Globex", rows[0].CustomerName)
	require.Greater(t, rows[0].RiskScore, rows[1].RiskScore)
}

func TestRegisterPaymentGeneratesReference(t *testing.T) {
	repo := newMemoryARRepo()
	service := newTestService(repo)

	payment, err := service.RegisterPayment(context.Background(), RegisterPaymentInput{
		CustomerID: 9,
		Amount:     1200,
	})
	require.NoError(t, err)
	require.NotEmpty(t, payment.Number)
	require.Equal(t, 1200.0, payment.UnallocatedAmount)
	require.Equal(t, PaymentStatusOpen, payment.Status)

	_, err = service.RegisterPayment(context.Background(), RegisterPaymentInput{CustomerID: 9, Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPreviewAllocationRejectsExceedingOutstanding(t *testing.T) {
	repo := newMemoryARRepo()
	repo.addPayment(PaymentReceive{ID: 1, TotalAmount: 5000, UnallocatedAmount: 5000, Status: PaymentStatusOpen})
	repo.addInvoice(Invoice{ID: 2, Status: InvoiceStatusPosted, Total: 3000, Outstanding: 3000})

	service := newTestService(repo)
	_, err := service.PreviewAllocation(context.Background(), AllocationRequest{
		PaymentID: 1,
		InvoiceID: 2,
		Amount:    4000,
	})
	require.ErrorIs(t, err, ErrExceedsOutstanding)
}

func TestCreateAllocationUpdatesBothSides(t *testing.T) {
	repo := newMemoryARRepo()
	repo.addPayment(PaymentReceive{ID: 1, TotalAmount: 5000, UnallocatedAmount: 5000, Status: PaymentStatusOpen})
	repo.addInvoice(Invoice{ID: 2, Status: InvoiceStatusPosted, Total: 3000, Outstanding: 3000})

	service := newTestService(repo)
	allocation, err := service.CreateAllocation(context.Background(), AllocationRequest{
		PaymentID: 1,
		InvoiceID: 2,
		Amount:    3000,
	})
	require.NoError(t, err)
	require.Equal(t, AllocationApplied, allocation.Status)

	payment, err := service.Payment(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 3000.0, payment.AllocatedAmount)
	require.Equal(t, 2000.0, payment.UnallocatedAmount)
	require.NoError(t, payment.Validate())

	invoice, err := repo.GetInvoice(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 0.0, invoice.Outstanding)
	require.Equal(t, InvoiceStatusPaid, invoice.Status)

	// Second full allocation against the settled invoice must fail.
	_, err = service.CreateAllocation(context.Background(), AllocationRequest{
		PaymentID: 1,
		InvoiceID: 2,
		Amount:    1000,
	})
	require.ErrorIs(t, err, ErrExceedsOutstanding)
}

func TestCreateAllocationSecondPaymentCannotExceedOutstanding(t *testing.T) {
	repo := newMemoryARRepo()
	repo.addPayment(PaymentReceive{ID: 1, TotalAmount: 700, UnallocatedAmount: 700, Status: PaymentStatusOpen})
	repo.addPayment(PaymentReceive{ID: 2, TotalAmount: 700, UnallocatedAmount: 700, Status: PaymentStatusOpen})
	repo.addInvoice(Invoice{ID: 3, Status: InvoiceStatusPosted, Total: 1000, Outstanding: 1000})

	service := newTestService(repo)
	_, err := service.CreateAllocation(context.Background(), AllocationRequest{
		PaymentID: 1,
		InvoiceID: 3,
		Amount:    700,
	})
	require.NoError(t, err)

	// The second payment only sees what the first one left behind.
	_, err = service.CreateAllocation(context.Background(), AllocationRequest{
		PaymentID: 2,
		InvoiceID: 3,
		Amount:    700,
	})
	require.ErrorIs(t, err, ErrExceedsOutstanding)

	var applied float64
	for _, a := range repo.allocations {
		if a.Status == AllocationApplied {
			applied += a.AllocatedAmount
		}
	}
	require.LessOrEqual(t, applied, 1000.0)

	_, err = service.CreateAllocation(context.Background(), AllocationRequest{
		PaymentID: 2,
		InvoiceID: 3,
		Amount:    300,
	})
	require.NoError(t, err)

	invoice, err := repo.GetInvoice(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 0.0, invoice.Outstanding)
	require.Equal(t, InvoiceStatusPaid, invoice.Status)
}

func TestCreateAllocationRejectsOverAllocation(t *testing.T) {
	repo := newMemoryARRepo()
	repo.addPayment(PaymentReceive{ID: 1, TotalAmount: 500, UnallocatedAmount: 500, Status: PaymentStatusOpen})
	repo.addInvoice(Invoice{ID: 2, Status: InvoiceStatusPosted, Total: 3000, Outstanding: 3000})

	service := newTestService(repo)
	_, err := service.CreateAllocation(context.Background(), AllocationRequest{
		PaymentID: 1,
		InvoiceID: 2,
		Amount:    750,
	})
	require.ErrorIs(t, err, ErrOverAllocation)
	require.Empty(t, repo.allocations)
}
