package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mylagoscommunity/cart-service/api/controllers"
	cartcontrollers "github.com/mylagoscommunity/cart-service/api/controllers/cart"
	"github.com/mylagoscommunity/cart-service/api/middleware"
	products "github.com/mylagoscommunity/cart-service/internal/products"
	"github.com/mylagoscommunity/cart-service/pkg/config"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
)

// Dependencies carries the services the router mounts.
type Dependencies struct {
	Readiness      map[string]controllers.Pinger
	Carts          cartcontrollers.EngineSource
	Products       products.Service
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, logg))
			r.Get("/{productID}", controllers.ProductDetail(deps.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(cfg.Session, logg))
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))

			r.Get("/session", controllers.SessionPing())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartView(deps.Carts, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.Carts, logg))
				r.Post("/reload", cartcontrollers.CartReload(deps.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Carts, deps.Products, logg))
				r.Patch("/items/{lineID}", cartcontrollers.CartUpdateItem(deps.Carts, logg))
				r.Delete("/items/{lineID}", cartcontrollers.CartRemoveItem(deps.Carts, logg))
			})
		})
	})

	return r
}
