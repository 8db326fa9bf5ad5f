package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/homestay-labs/listing-service/internal/adapter/httpapi/middleware"
	"github.com/homestay-labs/listing-service/internal/adapter/httpapi/upload"
	"github.com/homestay-labs/listing-service/internal/listing/domain"
	"github.com/homestay-labs/listing-service/internal/listing/usecase"
)

type ListingHandler struct {
	uc     *usecase.ListingUsecase
	stager *upload.Stager
	logger *zap.Logger
}

func NewListingHandler(uc *usecase.ListingUsecase, stager *upload.Stager, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{uc: uc, stager: stager, logger: logger}
}

// HandleCreateListing accepts a multipart form with the listing fields and up
// to three image files and responds 201 with the created document.
func (h *ListingHandler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	host := middleware.UserIDFromContext(r.Context())
	if host == "" {
		writeMessage(w, http.StatusUnauthorized, "unauthorized: user id missing")
		return
	}

	paths, cleanup, err := h.stager.Stage(r, usecase.ImageSlots[:])
	if err != nil {
		h.logger.Error("staging uploads failed", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer cleanup()

	rent := 0.0
	if v := r.FormValue("rent"); v != "" {
		rent, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid rent value")
			return
		}
	}

	in := usecase.CreateListingInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Rent:        rent,
		City:        r.FormValue("city"),
		LandMark:    r.FormValue("landMark"),
		Category:    domain.Category(r.FormValue("category")),
		ImagePaths:  paths,
	}

	listing, err := h.uc.CreateListing(r.Context(), host, in)
	if err != nil {
		h.respondError(w, err, "add listing failed")
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *ListingHandler) HandleGetListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.uc.ListListings(r.Context())
	if err != nil {
		h.respondError(w, err, "get listings failed")
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *ListingHandler) HandleGetListingByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	listing, err := h.uc.GetListingByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "find listing failed")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleUpdateListing applies a partial update. Only form fields present in
// the request are written; image slots with new files replace the stored
// references.
func (h *ListingHandler) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	paths, cleanup, err := h.stager.Stage(r, usecase.ImageSlots[:])
	if err != nil {
		h.logger.Error("staging uploads failed", zap.String("listing_id", id), zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer cleanup()

	patch, err := patchFromForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.uc.UpdateListing(r.Context(), id, patch, paths)
	if err != nil {
		h.respondError(w, err, "update listing failed")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) HandleDeleteListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.uc.DeleteListing(r.Context(), id); err != nil {
		h.respondError(w, err, "delete listing failed")
		return
	}
	writeMessage(w, http.StatusOK, "listing deleted")
}

func (h *ListingHandler) HandleRateListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Ratings *float64 `json:"ratings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Ratings == nil {
		writeMessage(w, http.StatusBadRequest, "ratings value is required")
		return
	}

	value, err := h.uc.RateListing(r.Context(), id, *body.Ratings)
	if err != nil {
		h.respondError(w, err, "rating failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"ratings": value})
}

func (h *ListingHandler) HandleSearchListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeMessage(w, http.StatusBadRequest, "search query is required")
		return
	}

	listings, err := h.uc.SearchListings(r.Context(), query)
	if err != nil {
		h.respondError(w, err, "search failed")
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// patchFromForm builds a ListingPatch from the multipart form, keeping the
// supplied/omitted distinction: a field missing from the form stays nil, a
// supplied field is applied verbatim, zero values included.
func patchFromForm(r *http.Request) (domain.ListingPatch, error) {
	var patch domain.ListingPatch
	if r.MultipartForm == nil {
		return patch, nil
	}
	form := r.MultipartForm.Value

	if v, ok := formValue(form, "title"); ok {
		patch.Title = &v
	}
	if v, ok := formValue(form, "description"); ok {
		patch.Description = &v
	}
	if v, ok := formValue(form, "rent"); ok {
		rent, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return patch, errors.New("invalid rent value")
		}
		patch.Rent = &rent
	}
	if v, ok := formValue(form, "city"); ok {
		patch.City = &v
	}
	if v, ok := formValue(form, "landMark"); ok {
		patch.LandMark = &v
	}
	if v, ok := formValue(form, "category"); ok {
		category := domain.Category(v)
		patch.Category = &category
	}
	return patch, nil
}

func formValue(form map[string][]string, key string) (string, bool) {
	vals, ok := form[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (h *ListingHandler) respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrInvalidListingID):
		writeMessage(w, http.StatusNotFound, "listing not found")
	case errors.Is(err, domain.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "user not found")
	case errors.Is(err, domain.ErrImagesRequired):
		writeMessage(w, http.StatusBadRequest, "all three images are required")
	case errors.Is(err, domain.ErrImageUploadFailed):
		writeMessage(w, http.StatusInternalServerError, "image upload failed")
	default:
		h.logger.Error(fallback, zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
