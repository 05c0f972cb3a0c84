package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Cheertaboi/jewelry-storefront/internal/api/handlers"
	"github.com/Cheertaboi/jewelry-storefront/internal/api/middleware"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/pricing"
	"github.com/Cheertaboi/jewelry-storefront/internal/session"
)

// Deps is everything the router needs to build its handlers
type Deps struct {
	Logger      *zap.Logger
	Store       session.Store
	Backend     handlers.Backend
	Engine      *pricing.Engine
	Checkout    *checkout.Controller
	Identity    middleware.IdentityConfig
	CORSOrigins []string
	// Metrics is optional; nil disables /metrics and HTTP observation
	Metrics Metrics
}

// Metrics is the slice of the metrics registry the router uses
type Metrics interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// NewRouter builds the HTTP router for the storefront service
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	var obs middleware.HTTPObserver
	if d.Metrics != nil {
		obs = d.Metrics
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(d.Logger, obs))
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigins))

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	cartHandler := handlers.NewCartHandler(d.Store, d.Backend, d.Engine)
	checkoutHandler := handlers.NewCheckoutHandler(d.Store, d.Checkout)
	orderHandler := handlers.NewOrderHandler(d.Backend, d.Checkout)
	catalogHandler := handlers.NewCatalogHandler(d.Backend)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(d.Identity, d.Logger))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{id}", catalogHandler.GetProduct)
			r.Get("/banners", catalogHandler.ListBanners)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", catalogHandler.Me)
			r.Get("/addresses", catalogHandler.Addresses)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{id}", cartHandler.SetQuantity)
			r.Post("/items/{id}/increment", cartHandler.Increment)
			r.Post("/items/{id}/decrement", cartHandler.Decrement)
			r.Delete("/items/{id}", cartHandler.RemoveItem)
			r.Post("/promo", cartHandler.ApplyPromo)
			r.Delete("/promo", cartHandler.RemovePromo)
			r.Get("/offers", cartHandler.Offers)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.Start)
			r.Get("/", checkoutHandler.Get)
			r.Delete("/", checkoutHandler.Abandon)
			r.Put("/shipping", checkoutHandler.SetShipping)
			r.Put("/billing", checkoutHandler.SetBilling)
			r.Put("/payment", checkoutHandler.SetPayment)
			r.Put("/shipping-method", checkoutHandler.SetShippingMethod)
			r.Post("/saved-address/{id}", checkoutHandler.UseSavedAddress)
			r.Post("/next", checkoutHandler.Next)
			r.Post("/back", checkoutHandler.Back)
			r.Post("/place", checkoutHandler.Place)
			r.Post("/payment/await", checkoutHandler.AwaitPayment)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/{id}/retry-payment", orderHandler.RetryPayment)
			r.Post("/{id}/await-payment", orderHandler.AwaitPayment)
		})
	})

	return r
}
