package ar

import "time"

// Bucket classifies an outstanding balance by days past due.
//
// Boundary convention: days_overdue <= 0 is current, 1-30 days_30, 31-60
// days_60, 61-90 days_90, and everything from day 91 on lands in
// days_120_plus. There is deliberately no 91-120 bucket; days_120_plus is the
// catch-all for anything past 90 days.
type Bucket string

const (
	BucketCurrent Bucket = "current"
	Bucket30      Bucket = "days_30"
	Bucket60      Bucket = "days_60"
	Bucket90      Bucket = "days_90"
	Bucket120Plus Bucket = "days_120_plus"
)

// Buckets lists all buckets from newest to oldest.
var Buckets = []Bucket{BucketCurrent, Bucket30, Bucket60, Bucket90, Bucket120Plus}

// DaysOverdue returns whole days between due and asOf; a due date in the past
// yields a positive value. A zero asOf means now (UTC).
func DaysOverdue(due, asOf time.Time) int {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return int(asOf.Sub(due).Hours() / 24)
}

// Classify assigns days overdue to its aging bucket.
func Classify(daysOverdue int) Bucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket30
	case daysOverdue <= 60:
		return Bucket60
	case daysOverdue <= 90:
		return Bucket90
	default:
		return Bucket120Plus
	}
}

// AgingEntry is one outstanding balance to classify.
type AgingEntry struct {
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Amount       float64   `json:"amount"`
	DueAt        time.Time `json:"due_at"`
}

// BucketTotals sums outstanding amounts per aging bucket.
type BucketTotals struct {
	Current float64 `json:"current"`
	Days30  float64 `json:"days_30"`
	Days60  float64 `json:"days_60"`
	Days90  float64 `json:"days_90"`
	Days120 float64 `json:"days_120_plus"`
}

// Add accumulates amount into the bucket's total.
func (t *BucketTotals) Add(bucket Bucket, amount float64) {
	switch bucket {
	case Bucket30:
		t.Days30 += amount
	case Bucket60:
		t.Days60 += amount
	case Bucket90:
		t.Days90 += amount
	case Bucket120Plus:
		t.Days120 += amount
	default:
		t.Current += amount
	}
}

// Total returns the sum across all buckets.
func (t BucketTotals) Total() float64 {
	return t.Current + t.Days30 + t.Days60 + t.Days90 + t.Days120
}

// Overdue returns the sum of all past-due buckets.
func (t BucketTotals) Overdue() float64 {
	return t.Days30 + t.Days60 + t.Days90 + t.Days120
}

// RiskWeights control how heavily each bucket counts towards the risk score.
// The score is the weighted balance share normalized against the worst case
// (all balance in the heaviest bucket), scaled to 0-100. The exact weighting
// is policy, not arithmetic truth, so callers may supply their own.
type RiskWeights struct {
	Current float64
	Days30  float64
	Days60  float64
	Days90  float64
	Days120 float64
}

// DefaultRiskWeights weight buckets linearly by age.
var DefaultRiskWeights = RiskWeights{Current: 0, Days30: 1, Days60: 2, Days90: 3, Days120: 4}

func (w RiskWeights) max() float64 {
	m := w.Current
	for _, v := range []float64{w.Days30, w.Days60, w.Days90, w.Days120} {
		if v > m {
			m = v
		}
	}
	return m
}

// AgingSummary aggregates a set of outstanding balances.
type AgingSummary struct {
	Totals            BucketTotals `json:"totals"`
	TotalOutstanding  float64      `json:"total_outstanding"`
	OverduePercentage float64      `json:"overdue_percentage"`
	RiskScore         float64      `json:"risk_score"`
	AsOf              time.Time    `json:"as_of"`
}

// Summarize buckets every entry as of the given date and derives the
// aggregate figures. A zero asOf means now (UTC).
func Summarize(entries []AgingEntry, asOf time.Time, weights RiskWeights) AgingSummary {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	var totals BucketTotals
	for _, entry := range entries {
		totals.Add(Classify(DaysOverdue(entry.DueAt, asOf)), entry.Amount)
	}

	summary := AgingSummary{Totals: totals, TotalOutstanding: totals.Total(), AsOf: asOf}
	if summary.TotalOutstanding <= 0 {
		return summary
	}

	summary.OverduePercentage = totals.Overdue() / summary.TotalOutstanding * 100

	if maxWeight := weights.max(); maxWeight > 0 {
		weighted := totals.Current*weights.Current +
			totals.Days30*weights.Days30 +
			totals.Days60*weights.Days60 +
			totals.Days90*weights.Days90 +
			totals.Days120*weights.Days120
		summary.RiskScore = weighted / (summary.TotalOutstanding * maxWeight) * 100
	}
	return summary
}
