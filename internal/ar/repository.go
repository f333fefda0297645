package ar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// RepositoryPort defines data access for the AR module.
type RepositoryPort interface {
	ListOutstanding(ctx context.Context, asOf time.Time) ([]Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetPayment(ctx context.Context, id int64) (*PaymentReceive, error)
	ListPayments(ctx context.Context) ([]PaymentReceive, error)
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentReceive, error)
	ApplyAllocation(ctx context.Context, plan AllocationPlan) (*PaymentAllocation, error)
}

// CreatePaymentInput describes a new payment receive.
type CreatePaymentInput struct {
	Number     string
	CustomerID int64
	Amount     float64
	ReceivedAt time.Time
}

// Repository is the Postgres implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListOutstanding returns posted invoices with a remaining balance as of the
// given date. Outstanding is total minus applied allocations.
func (r *Repository) ListOutstanding(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	const query = `
		SELECT i.id, i.number, i.customer_id, i.customer_name, i.currency, i.total,
			i.total - COALESCE(SUM(a.amount) FILTER (WHERE a.status = 'APPLIED'), 0) AS outstanding,
			i.status, i.due_at, i.created_at, i.updated_at
		FROM ar_invoices i
		LEFT JOIN ar_payment_allocations a ON a.ar_invoice_id = i.id
		WHERE i.status = 'POSTED' AND i.created_at <= $1
		GROUP BY i.id
		HAVING i.total - COALESCE(SUM(a.amount) FILTER (WHERE a.status = 'APPLIED'), 0) > 0
		ORDER BY i.due_at ASC`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.Currency,
			&inv.Total, &inv.Outstanding, &inv.Status, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetInvoice returns one invoice with its computed outstanding balance.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	const query = `
		SELECT i.id, i.number, i.customer_id, i.customer_name, i.currency, i.total,
			i.total - COALESCE(SUM(a.amount) FILTER (WHERE a.status = 'APPLIED'), 0) AS outstanding,
			i.status, i.due_at, i.created_at, i.updated_at
		FROM ar_invoices i
		LEFT JOIN ar_payment_allocations a ON a.ar_invoice_id = i.id
		WHERE i.id = $1
		GROUP BY i.id`

	var inv Invoice
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.Currency,
		&inv.Total, &inv.Outstanding, &inv.Status, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetPayment returns one payment receive.
func (r *Repository) GetPayment(ctx context.Context, id int64) (*PaymentReceive, error) {
	const query = `
		SELECT id, number, customer_id, total_amount, allocated_amount, unallocated_amount,
			status, received_at, created_at, updated_at
		FROM ar_payment_receives WHERE id = $1`

	var p PaymentReceive
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Number, &p.CustomerID, &p.TotalAmount, &p.AllocatedAmount,
		&p.UnallocatedAmount, &p.Status, &p.ReceivedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns all payment receives, newest first.
func (r *Repository) ListPayments(ctx context.Context) ([]PaymentReceive, error) {
	const query = `
		SELECT id, number, customer_id, total_amount, allocated_amount, unallocated_amount,
			status, received_at, created_at, updated_at
		FROM ar_payment_receives
		ORDER BY received_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []PaymentReceive
	for rows.Next() {
		var p PaymentReceive
		if err := rows.Scan(
			&p.ID, &p.Number, &p.CustomerID, &p.TotalAmount, &p.AllocatedAmount,
			&p.UnallocatedAmount, &p.Status, &p.ReceivedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreatePayment records a new payment receive with nothing allocated yet.
func (r *Repository) CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentReceive, error) {
	const query = `
		INSERT INTO ar_payment_receives
			(number, customer_id, total_amount, allocated_amount, unallocated_amount, status, received_at)
		VALUES ($1, $2, $3, 0, $3, 'OPEN', $4)
		RETURNING id, created_at, updated_at`

	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	var p PaymentReceive
	err := r.pool.QueryRow(ctx, query, input.Number, input.CustomerID, input.Amount, receivedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, httpx.ErrDuplicate
		}
		return nil, err
	}

	p.Number = input.Number
	p.CustomerID = input.CustomerID
	p.TotalAmount = input.Amount
	p.AllocatedAmount = 0
	p.UnallocatedAmount = input.Amount
	p.Status = PaymentStatusOpen
	p.ReceivedAt = receivedAt
	return &p, nil
}

// ApplyAllocation persists a validated allocation plan. Both rows are locked
// inside the transaction, payment first, then invoice, and the pre-check is
// re-run against the locked state. The invoice lock matters: its outstanding
// is an aggregate over ar_payment_allocations, and without the row lock two
// transactions allocating different payments to the same invoice would each
// see the pre-allocation outstanding and both commit.
func (r *Repository) ApplyAllocation(ctx context.Context, plan AllocationPlan) (*PaymentAllocation, error) {
	var allocation PaymentAllocation

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var payment PaymentReceive
		err := tx.QueryRow(ctx, `
			SELECT id, number, customer_id, total_amount, allocated_amount, unallocated_amount,
				status, received_at, created_at, updated_at
			FROM ar_payment_receives WHERE id = $1 FOR UPDATE`, plan.PaymentID).Scan(
			&payment.ID, &payment.Number, &payment.CustomerID, &payment.TotalAmount,
			&payment.AllocatedAmount, &payment.UnallocatedAmount, &payment.Status,
			&payment.ReceivedAt, &payment.CreatedAt, &payment.UpdatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		// Lock the invoice row before reading its aggregate so concurrent
		// allocations against it serialize.
		var lockedID int64
		err = tx.QueryRow(ctx, `SELECT id FROM ar_invoices WHERE id = $1 FOR UPDATE`, plan.InvoiceID).
			Scan(&lockedID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var invoice Invoice
		err = tx.QueryRow(ctx, `
			SELECT i.id, i.total,
				i.total - COALESCE(SUM(a.amount) FILTER (WHERE a.status = 'APPLIED'), 0) AS outstanding,
				i.due_at
			FROM ar_invoices i
			LEFT JOIN ar_payment_allocations a ON a.ar_invoice_id = i.id
			WHERE i.id = $1
			GROUP BY i.id`, plan.InvoiceID).Scan(
			&invoice.ID, &invoice.Total, &invoice.Outstanding, &invoice.DueAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		checked, err := CheckAllocation(payment, invoice, plan.AllocatedAmount)
		if err != nil {
			return err
		}

		var createdAt pgtype.Timestamptz
		err = tx.QueryRow(ctx, `
			INSERT INTO ar_payment_allocations (ar_payment_id, ar_invoice_id, amount, status)
			VALUES ($1, $2, $3, 'APPLIED')
			RETURNING id, created_at`,
			plan.PaymentID, plan.InvoiceID, plan.AllocatedAmount,
		).Scan(&allocation.ID, &createdAt)
		if err != nil {
			return err
		}

		status := PaymentStatusOpen
		if checked.PaymentFullyAllocated {
			status = PaymentStatusAllocated
		}
		_, err = tx.Exec(ctx, `
			UPDATE ar_payment_receives
			SET allocated_amount = total_amount - $2,
				unallocated_amount = $2,
				status = $3,
				updated_at = NOW()
			WHERE id = $1`,
			plan.PaymentID, checked.PaymentUnallocated, status,
		)
		if err != nil {
			return err
		}

		if checked.InvoiceSettled {
			_, err = tx.Exec(ctx, `
				UPDATE ar_invoices SET status = $2, updated_at = NOW()
				WHERE id = $1`,
				plan.InvoiceID, InvoiceStatusPaid,
			)
			if err != nil {
				return err
			}
		}

		allocation.PaymentID = plan.PaymentID
		allocation.InvoiceID = plan.InvoiceID
		allocation.AllocatedAmount = plan.AllocatedAmount
		allocation.Status = AllocationApplied
		allocation.CreatedAt = createdAt.Time
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}
