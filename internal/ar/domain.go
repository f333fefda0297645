// Package ar implements the accounts-receivable computation core: aging
// classification of outstanding balances and validation of payment
// allocations against receive and invoice limits.
package ar

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// InvoiceStatus enumerates AR invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "DRAFT"
	InvoiceStatusPosted InvoiceStatus = "POSTED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// PaymentStatus enumerates payment receive statuses.
type PaymentStatus string

const (
	PaymentStatusOpen      PaymentStatus = "OPEN"
	PaymentStatusAllocated PaymentStatus = "ALLOCATED"
	PaymentStatusVoid      PaymentStatus = "VOID"
)

// AllocationStatus enumerates the lifecycle of a payment allocation.
type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "PENDING"
	AllocationApplied   AllocationStatus = "APPLIED"
	AllocationReversed  AllocationStatus = "REVERSED"
	AllocationCancelled AllocationStatus = "CANCELLED"
)

// Invoice is a sale with an outstanding balance to collect.
type Invoice struct {
	ID           int64
	Number       string
	CustomerID   int64
	CustomerName string
	Currency     string
	Total        float64
	Outstanding  float64
	Status       InvoiceStatus
	DueAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentReceive is money received from a customer, tracked by how much of it
// has been matched to invoices.
type PaymentReceive struct {
	ID          int64
	Number      string
	CustomerID  int64
	TotalAmount float64
	// AllocatedAmount only grows via allocation and only shrinks via
	// reversal; AllocatedAmount + UnallocatedAmount must equal TotalAmount.
	AllocatedAmount   float64
	UnallocatedAmount float64
	Status            PaymentStatus
	ReceivedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the receive's amount invariant.
func (p PaymentReceive) Validate() error {
	if p.TotalAmount < 0 || p.AllocatedAmount < 0 || p.UnallocatedAmount < 0 {
		return fmt.Errorf("payment %d: negative amount", p.ID)
	}
	if math.Abs(p.AllocatedAmount+p.UnallocatedAmount-p.TotalAmount) > amountTolerance {
		return fmt.Errorf("payment %d: allocated %.2f + unallocated %.2f != total %.2f",
			p.ID, p.AllocatedAmount, p.UnallocatedAmount, p.TotalAmount)
	}
	return nil
}

// PaymentAllocation links part of a payment receive to one invoice.
type PaymentAllocation struct {
	ID              int64
	PaymentID       int64
	InvoiceID       int64
	AllocatedAmount float64
	Status          AllocationStatus
	CreatedAt       time.Time
}

// amountTolerance absorbs float noise when checking stored amounts; proposed
// allocations themselves are checked exactly in decimal.
const amountTolerance = 1e-6

// Validation errors raised by the allocation pre-check.
var (
	// ErrInvalidAmount indicates a proposed allocation of zero or less.
	ErrInvalidAmount = errors.New("allocation amount must be positive")
	// ErrOverAllocation indicates the payment's unallocated balance is too small.
	ErrOverAllocation = errors.New("allocation exceeds payment unallocated amount")
	// ErrExceedsOutstanding indicates the invoice outstanding is too small.
	ErrExceedsOutstanding = errors.New("allocation exceeds invoice outstanding amount")
	// ErrNotFound indicates a missing AR record.
	ErrNotFound = errors.New("AR record not found")
)
