package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ferretek/ferretek/internal/auth"
	"github.com/ferretek/ferretek/internal/catalog"
	"github.com/ferretek/ferretek/internal/customers"
	"github.com/ferretek/ferretek/internal/inventory"
	"github.com/ferretek/ferretek/internal/sales"
	"github.com/ferretek/ferretek/internal/suppliers"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Auth             *auth.Middleware
	CatalogHandler   *catalog.Handler
	CustomersHandler *customers.Handler
	SuppliersHandler *suppliers.Handler
	InventoryHandler *inventory.Handler
	SalesHandler     *sales.Handler
}

// NewRouter constructs the chi.Router with Ferretek defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)

		r.Route("/products", params.CatalogHandler.MountRoutes)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/payments", params.SalesHandler.MountPaymentRoutes)
	})

	return r
}
