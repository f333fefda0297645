package tax

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes tax configuration and calculation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds the tax HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// Routes mounts the handler under /api/tax.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.putSettings)
	r.Get("/customers/{id}/profile", h.getCustomerProfile)
	r.Put("/customers/{id}/profile", h.putCustomerProfile)
	r.Post("/resolve", h.resolve)
	r.Post("/calculate", h.calculate)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.logger.Error("load tax settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings GlobalTaxSettings
	if err := httpx.DecodeJSON(r, &settings); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.SaveSettings(r.Context(), settings); err != nil {
		h.respondDomainError(w, err, "save tax settings")
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) getCustomerProfile(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || customerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Customer ID", "customer id must be a positive integer")
		return
	}
	profile, err := h.service.CustomerProfile(r.Context(), customerID)
	if err != nil {
		h.logger.Error("load customer tax profile", slog.Any("error", err), slog.Int64("customer_id", customerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) putCustomerProfile(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || customerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Customer ID", "customer id must be a positive integer")
		return
	}
	var profile CustomerTaxProfile
	if err := httpx.DecodeJSON(r, &profile); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.SaveCustomerProfile(r.Context(), customerID, profile); err != nil {
		h.respondDomainError(w, err, "save customer tax profile")
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type resolveRequest struct {
	CustomerID   int64    `json:"customer_id" validate:"omitempty,gt=0"`
	ProductID    int64    `json:"product_id" validate:"omitempty,gt=0"`
	ExplicitRate *float64 `json:"explicit_rate"`
	ProductRate  *float64 `json:"product_rate"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	resolution, err := h.service.ResolveRate(r.Context(), ResolveRequest{
		CustomerID:   req.CustomerID,
		ProductID:    req.ProductID,
		ExplicitRate: req.ExplicitRate,
		ProductRate:  req.ProductRate,
	})
	if err != nil {
		h.respondDomainError(w, err, "resolve tax rate")
		return
	}
	httpx.JSON(w, http.StatusOK, resolution)
}

type calculateRequest struct {
	Amount       float64  `json:"amount" validate:"gte=0"`
	CustomerID   int64    `json:"customer_id" validate:"omitempty,gt=0"`
	ProductID    int64    `json:"product_id" validate:"omitempty,gt=0"`
	ExplicitRate *float64 `json:"explicit_rate"`
	ProductRate  *float64 `json:"product_rate"`
	Method       string   `json:"method" validate:"omitempty,oneof=exclusive inclusive"`
}

type calculateResponse struct {
	BaseAmount  float64    `json:"base_amount"`
	TaxRate     float64    `json:"tax_rate"`
	TaxAmount   float64    `json:"tax_amount"`
	TotalAmount float64    `json:"total_amount"`
	Subtotal    *float64   `json:"subtotal,omitempty"`
	RateSource  RateSource `json:"rate_source"`
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, resolution, err := h.service.CalculateTax(r.Context(), CalculateRequest{
		Amount:       req.Amount,
		CustomerID:   req.CustomerID,
		ProductID:    req.ProductID,
		ExplicitRate: req.ExplicitRate,
		ProductRate:  req.ProductRate,
		Method:       CalculationMethod(req.Method),
	})
	if err != nil {
		h.respondDomainError(w, err, "calculate tax")
		return
	}
	if h.metrics != nil {
		method := req.Method
		if method == "" {
			method = "configured"
		}
		h.metrics.ObserveTaxCalculation(method)
	}

	httpx.JSON(w, http.StatusOK, toCalculateResponse(result, resolution))
}

func toCalculateResponse(result CalculationResult, resolution Resolution) calculateResponse {
	resp := calculateResponse{
		BaseAmount:  toFloat(result.BaseAmount),
		TaxRate:     toFloat(result.TaxRate),
		TaxAmount:   toFloat(result.TaxAmount),
		TotalAmount: toFloat(result.TotalAmount),
		RateSource:  resolution.Source,
	}
	if result.Subtotal != nil {
		v := toFloat(*result.Subtotal)
		resp.Subtotal = &v
	}
	return resp
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// respondDomainError maps the tax validation sentinels to 400 problems and
// logs everything else as a server error.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
