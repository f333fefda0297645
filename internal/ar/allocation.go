package ar

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AllocationPlan is the post-allocation state a proposed allocation would
// produce. It is computed without mutating any caller-owned record; applying
// the plan is the storage layer's job.
type AllocationPlan struct {
	PaymentID             int64   `json:"payment_id"`
	InvoiceID             int64   `json:"invoice_id"`
	AllocatedAmount       float64 `json:"allocated_amount"`
	PaymentUnallocated    float64 `json:"payment_unallocated_after"`
	InvoiceOutstanding    float64 `json:"invoice_outstanding_after"`
	PaymentFullyAllocated bool    `json:"payment_fully_allocated"`
	InvoiceSettled        bool    `json:"invoice_settled"`
}

// CheckAllocation validates a proposed allocation of amount from payment to
// invoice. The comparisons and the derived post-state run on decimals so a
// binary float artifact can neither sneak an over-allocation through nor
// reject a legitimate exact match.
func CheckAllocation(payment PaymentReceive, invoice Invoice, amount float64) (AllocationPlan, error) {
	alloc := decimal.NewFromFloat(amount)
	if !alloc.IsPositive() {
		return AllocationPlan{}, fmt.Errorf("payment %d: %w", payment.ID, ErrInvalidAmount)
	}

	unallocated := decimal.NewFromFloat(payment.UnallocatedAmount)
	if alloc.GreaterThan(unallocated) {
		return AllocationPlan{}, fmt.Errorf("payment %d has %s unallocated, proposed %s: %w",
			payment.ID, unallocated, alloc, ErrOverAllocation)
	}

	outstanding := decimal.NewFromFloat(invoice.Outstanding)
	if alloc.GreaterThan(outstanding) {
		return AllocationPlan{}, fmt.Errorf("invoice %d has %s outstanding, proposed %s: %w",
			invoice.ID, outstanding, alloc, ErrExceedsOutstanding)
	}

	remainingPayment := unallocated.Sub(alloc)
	remainingInvoice := outstanding.Sub(alloc)
	plan := AllocationPlan{
		PaymentID:             payment.ID,
		InvoiceID:             invoice.ID,
		AllocatedAmount:       amount,
		PaymentFullyAllocated: remainingPayment.IsZero(),
		InvoiceSettled:        remainingInvoice.IsZero(),
	}
	plan.PaymentUnallocated, _ = remainingPayment.Float64()
	plan.InvoiceOutstanding, _ = remainingInvoice.Float64()
	return plan, nil
}
