package router

import (
	"net/http"

	"bazaar-economy-api/internal/handler"
	"bazaar-economy-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	SessionHandler  *handler.SessionHandler
	BalanceHandler  *handler.BalanceHandler
	ShopHandler     *handler.ShopHandler
	AuctionHandler  *handler.AuctionHandler
	DeliveryHandler *handler.DeliveryHandler
	AdminHandler    *handler.AdminHandler
	AuthHandler     *handler.AuthHandler
	AuthMiddleware  func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Token", "X-Admin-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		// API v1 routes
		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Auth endpoints
			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/token", cfg.AuthHandler.GenerateToken)
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
				})
			}

			// Live session endpoints
			if cfg.SessionHandler != nil {
				r.Route("/sessions/{account}", func(r chi.Router) {
					r.Post("/connect", cfg.SessionHandler.Connect)
					r.Post("/disconnect", cfg.SessionHandler.Disconnect)
					r.Get("/", cfg.SessionHandler.Online)
				})
			}

			// Account endpoints
			if cfg.BalanceHandler != nil {
				r.Get("/accounts/{account}/balance", cfg.BalanceHandler.GetBalance)
			}
			if cfg.DeliveryHandler != nil {
				r.Route("/accounts/{account}/deliveries", func(r chi.Router) {
					r.Post("/claim", cfg.DeliveryHandler.Claim)
					r.Get("/count", cfg.DeliveryHandler.PendingCount)
				})
			}

			// Shop endpoints
			if cfg.ShopHandler != nil {
				r.Route("/shops/{shop_id}", func(r chi.Router) {
					r.Get("/offers", cfg.ShopHandler.ListOffers)
					r.Post("/price-check", cfg.ShopHandler.PriceCheck)
				})
				r.Route("/offers/{offer_id}", func(r chi.Router) {
					r.Post("/buy", cfg.ShopHandler.Buy)
					r.Post("/sell", cfg.ShopHandler.Sell)
				})
			}

			// Auction endpoints
			if cfg.AuctionHandler != nil {
				r.Route("/listings", func(r chi.Router) {
					r.Post("/", cfg.AuctionHandler.Create)
					r.Get("/", cfg.AuctionHandler.List)
					r.Route("/{listing_id}", func(r chi.Router) {
						r.Get("/", cfg.AuctionHandler.Get)
						r.Post("/bid", cfg.AuctionHandler.Bid)
						r.Post("/buyout", cfg.AuctionHandler.Buyout)
						r.Post("/cancel", cfg.AuctionHandler.Cancel)
					})
				})
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Get("/health", cfg.AdminHandler.GetHealth)
					r.Get("/trades", cfg.AdminHandler.GetTradeLogs)
					r.Post("/sweep", cfg.AdminHandler.RunSweep)
					if cfg.ShopHandler != nil {
						r.Post("/offers", cfg.ShopHandler.CreateOffer)
						r.Post("/offers/import", cfg.ShopHandler.ImportOffers)
					}
					if cfg.BalanceHandler != nil {
						r.Post("/accounts/{account}/grant", cfg.BalanceHandler.Grant)
						r.Post("/accounts/{account}/take", cfg.BalanceHandler.Take)
					}
				})
			}
		})
	})

	return r
}
