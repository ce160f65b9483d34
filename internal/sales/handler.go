package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ferretek/ferretek/internal/auth"
	"github.com/ferretek/ferretek/internal/catalog"
	"github.com/ferretek/ferretek/internal/customers"
	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/platform/db"
	"github.com/ferretek/ferretek/internal/platform/httpx"
	"github.com/ferretek/ferretek/internal/shared"
)

// Handler manages sale endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	checkout *Checkout
	validate *validator.Validate
	auth     *auth.Middleware
}

// NewHandler builds Handler instance. Checkout may be nil when no payment
// gateway is configured.
func NewHandler(logger *slog.Logger, service *Service, checkout *Checkout, authmw *auth.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		checkout: checkout,
		validate: validator.New(),
		auth:     authmw,
	}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/report", h.report)
	r.Get("/number/{number}", h.getByNumber)
	r.Get("/{id}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(shared.RoleAdmin, shared.RoleEmployee))
		r.Post("/", h.create)
		r.Post("/{id}/complete", h.complete)
		r.Post("/{id}/cancel", h.cancel)
		r.Post("/{id}/refund", h.refund)
		r.Post("/{id}/release", h.release)
	})
}

// MountPaymentRoutes registers the gateway-backed checkout routes.
func (h *Handler) MountPaymentRoutes(r chi.Router) {
	r.Post("/checkout", h.beginCheckout)
	r.Post("/confirm", h.confirmCheckout)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var invalidLine *InvalidLineError
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrIntentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyRefunded):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrRefundExceedsSale):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Refund Exceeds Sale", err.Error())
	case errors.Is(err, ErrPriceOverride):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &invalidLine):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Line", invalidLine.Error())
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrInactive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Line", err.Error())
	case errors.Is(err, customers.ErrCreditExceeded):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Credit Limit Exceeded", err.Error())
	case errors.Is(err, ErrPaymentDeclined):
		httpx.Problem(w, http.StatusPaymentRequired, "Payment Declined", err.Error())
	case errors.Is(err, db.ErrSerialization):
		httpx.Problem(w, http.StatusConflict, "Conflict", "the operation hit a concurrent update, retry it")
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func actor(r *http.Request) shared.Actor {
	a, _ := shared.ActorFromContext(r.Context())
	return a
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.CreateSale(r.Context(), actor(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.CompleteSale(r.Context(), actor(r), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.CancelSale(r.Context(), actor(r), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.ReleasePending(r.Context(), actor(r), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req RefundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.RefundSale(r.Context(), actor(r), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) getByNumber(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListSalesRequest{Status: Status(q.Get("status"))}
	req.CustomerID, _ = strconv.ParseInt(q.Get("customer"), 10, 64)
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			req.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			req.To = t
		}
	}
	sales, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      sales,
		"pagination": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	report, err := h.service.Report(r.Context(), day)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) beginCheckout(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Configured", "no payment gateway configured")
		return
	}
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	intent, err := h.checkout.Begin(r.Context(), actor(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, intent)
}

type confirmRequest struct {
	IntentID   string `json:"intent_id" validate:"required,uuid"`
	GatewayRef string `json:"gateway_ref,omitempty"`
}

func (h *Handler) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Configured", "no payment gateway configured")
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.checkout.Confirm(r.Context(), actor(r), req.IntentID, req.GatewayRef)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}
