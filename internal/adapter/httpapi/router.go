package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/homestay-labs/listing-service/internal/adapter/httpapi/middleware"
)

// NewRouter wires the listing routes. Auth runs on every route; handlers that
// need an actor identity reject requests without one themselves.
func NewRouter(h *ListingHandler, jwtSecret string, logger *zap.Logger) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestLogging(logger))
	mux.Use(middleware.JWTAuth(jwtSecret, logger))

	mux.Route("/api/listings", func(r chi.Router) {
		r.Post("/", h.HandleCreateListing)
		r.Get("/", h.HandleGetListings)
		r.Get("/search", h.HandleSearchListings)
		r.Get("/{id}", h.HandleGetListingByID)
		r.Put("/{id}", h.HandleUpdateListing)
		r.Delete("/{id}", h.HandleDeleteListing)
		r.Post("/{id}/ratings", h.HandleRateListing)
	})

	return mux
}
