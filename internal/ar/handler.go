package ar

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes AR aging and allocation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds the AR HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// Routes mounts the handler under /api/ar.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/aging", h.agingReport)
	r.Get("/aging/customers", h.customerAging)
	r.Get("/payments", h.listPayments)
	r.Post("/payments", h.registerPayment)
	r.Get("/payments/{id}", h.getPayment)
	r.Post("/allocations/check", h.checkAllocation)
	r.Post("/allocations", h.createAllocation)
}

type agingPercentages struct {
	Current float64 `json:"current"`
	Days30  float64 `json:"days_30"`
	Days60  float64 `json:"days_60"`
	Days90  float64 `json:"days_90"`
	Days120 float64 `json:"days_120_plus"`
}

type riskAnalysis struct {
	RiskScore         float64 `json:"risk_score"`
	OverduePercentage float64 `json:"overdue_percentage"`
}

type agingReportResponse struct {
	AsOf             string           `json:"as_of"`
	Summary          AgingSummary     `json:"summary"`
	CustomerAging    []CustomerAging  `json:"customer_aging"`
	AgingPercentages agingPercentages `json:"aging_percentages"`
	RiskAnalysis     riskAnalysis     `json:"risk_analysis"`
}

func parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

// agingReport assembles the full AR aging report. The summary and the
// customer breakdown load concurrently; both hit the same versioned cache.
func (h *Handler) agingReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be formatted YYYY-MM-DD")
		return
	}

	var (
		summary   AgingSummary
		customers []CustomerAging
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		summary, err = h.service.AgingSummary(ctx, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = h.service.CustomerAging(ctx, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("build aging report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := agingReportResponse{
		AsOf:          summary.AsOf.Format("2006-01-02"),
		Summary:       summary,
		CustomerAging: customers,
		RiskAnalysis: riskAnalysis{
			RiskScore:         summary.RiskScore,
			OverduePercentage: summary.OverduePercentage,
		},
	}
	if total := summary.TotalOutstanding; total > 0 {
		resp.AgingPercentages = agingPercentages{
			Current: summary.Totals.Current / total * 100,
			Days30:  summary.Totals.Days30 / total * 100,
			Days60:  summary.Totals.Days60 / total * 100,
			Days90:  summary.Totals.Days90 / total * 100,
			Days120: summary.Totals.Days120 / total * 100,
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) customerAging(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be formatted YYYY-MM-DD")
		return
	}
	rows, err := h.service.CustomerAging(r.Context(), asOf)
	if err != nil {
		h.logger.Error("customer aging", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customer_aging": rows})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.Payments(r.Context())
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": toPaymentResponses(payments)})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payment ID", "payment id must be a positive integer")
		return
	}
	payment, err := h.service.Payment(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err, "get payment")
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(*payment))
}

type registerPaymentRequest struct {
	Number     string  `json:"number"`
	CustomerID int64   `json:"customer_id" validate:"gt=0"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	ReceivedAt string  `json:"received_at" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	var req registerPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var receivedAt time.Time
	if req.ReceivedAt != "" {
		receivedAt, _ = time.Parse("2006-01-02", req.ReceivedAt)
	}

	payment, err := h.service.RegisterPayment(r.Context(), RegisterPaymentInput{
		Number:     req.Number,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		h.respondDomainError(w, err, "register payment")
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(*payment))
}

type allocationRequest struct {
	PaymentID int64   `json:"payment_id" validate:"gt=0"`
	InvoiceID int64   `json:"sale_id" validate:"gt=0"`
	Amount    float64 `json:"allocated_amount" validate:"required"`
}

func (h *Handler) checkAllocation(w http.ResponseWriter, r *http.Request) {
	h.handleAllocation(w, r, false)
}

func (h *Handler) createAllocation(w http.ResponseWriter, r *http.Request) {
	h.handleAllocation(w, r, true)
}

func (h *Handler) handleAllocation(w http.ResponseWriter, r *http.Request, persist bool) {
	var req allocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	serviceReq := AllocationRequest{
		PaymentID: req.PaymentID,
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
	}

	if !persist {
		plan, err := h.service.PreviewAllocation(r.Context(), serviceReq)
		if err != nil {
			h.observeAllocation(err)
			h.respondDomainError(w, err, "check allocation")
			return
		}
		h.observeAllocation(nil)
		httpx.JSON(w, http.StatusOK, plan)
		return
	}

	allocation, err := h.service.CreateAllocation(r.Context(), serviceReq)
	if err != nil {
		h.observeAllocation(err)
		h.respondDomainError(w, err, "create allocation")
		return
	}
	h.observeAllocation(nil)
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":               allocation.ID,
		"payment_id":       allocation.PaymentID,
		"sale_id":          allocation.InvoiceID,
		"allocated_amount": allocation.AllocatedAmount,
		"status":           allocation.Status,
	})
}

func (h *Handler) observeAllocation(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.ObserveAllocationCheck("accepted")
	case errors.Is(err, ErrInvalidAmount):
		h.metrics.ObserveAllocationCheck("invalid_amount")
	case errors.Is(err, ErrOverAllocation):
		h.metrics.ObserveAllocationCheck("over_allocation")
	case errors.Is(err, ErrExceedsOutstanding):
		h.metrics.ObserveAllocationCheck("exceeds_outstanding")
	default:
		h.metrics.ObserveAllocationCheck("error")
	}
}

type paymentResponse struct {
	ID                int64   `json:"id"`
	Number            string  `json:"number"`
	CustomerID        int64   `json:"customer_id"`
	TotalAmount       float64 `json:"total_amount"`
	AllocatedAmount   float64 `json:"allocated_amount"`
	UnallocatedAmount float64 `json:"unallocated_amount"`
	Status            string  `json:"status"`
	ReceivedAt        string  `json:"received_at"`
}

func toPaymentResponse(p PaymentReceive) paymentResponse {
	return paymentResponse{
		ID:                p.ID,
		Number:            p.Number,
		CustomerID:        p.CustomerID,
		TotalAmount:       p.TotalAmount,
		AllocatedAmount:   p.AllocatedAmount,
		UnallocatedAmount: p.UnallocatedAmount,
		Status:            string(p.Status),
		ReceivedAt:        p.ReceivedAt.Format(time.RFC3339),
	}
}

func toPaymentResponses(payments []PaymentReceive) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// respondDomainError maps AR validation sentinels to problem responses.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
	case errors.Is(err, ErrOverAllocation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Over Allocation", err.Error())
	case errors.Is(err, ErrExceedsOutstanding):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Exceeds Outstanding", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
