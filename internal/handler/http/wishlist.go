package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agenthub/wishlist-service/internal/service"
	"github.com/agenthub/wishlist-service/pkg/httputil"
	"github.com/agenthub/wishlist-service/pkg/validator"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	sync      *service.Synchronizer
	favorites *service.Favorites
	logger    *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(sync *service.Synchronizer, favorites *service.Favorites, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{
		sync:      sync,
		favorites: favorites,
		logger:    logger,
	}
}

// --- Request DTOs ---

// CreateWishlistRequest is the JSON request body for creating a wishlist.
type CreateWishlistRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateWishlistRequest is the JSON request body for renaming a wishlist or
// editing its description. Absent fields are left unchanged.
type UpdateWishlistRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// AddItemRequest is the JSON request body for adding an item to a wishlist.
type AddItemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

// SetVisibilityRequest is the JSON request body for toggling visibility.
type SetVisibilityRequest struct {
	Public bool   `json:"public"`
	Slug   string `json:"slug" validate:"omitempty,max=200"`
}

// favoriteStatus is the response body for favorite queries and toggles.
type favoriteStatus struct {
	ItemID      string   `json:"item_id"`
	Favorited   bool     `json:"favorited"`
	WishlistIDs []string `json:"wishlist_ids"`
}

// --- Handlers ---

// ListWishlists handles GET /api/v1/wishlists
func (h *WishlistHandler) ListWishlists(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.sync.Wishlists()})
}

// GetWishlist handles GET /api/v1/wishlists/{id}
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wl, err := h.sync.Wishlist(id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// CreateWishlist handles POST /api/v1/wishlists
func (h *WishlistHandler) CreateWishlist(w http.ResponseWriter, r *http.Request) {
	var req CreateWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	wl, err := h.sync.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: wl})
}

// Refresh handles POST /api/v1/wishlists/refresh
func (h *WishlistHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.LoadAll(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.sync.Wishlists()})
}

// UpdateWishlist handles PATCH /api/v1/wishlists/{id}
func (h *WishlistHandler) UpdateWishlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if req.Name == nil && req.Description == nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "at least one of name or description is required"},
		})
		return
	}

	var wl any
	var err error
	if req.Name != nil {
		wl, err = h.sync.Rename(r.Context(), id, *req.Name)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}
	if req.Description != nil {
		wl, err = h.sync.UpdateDescription(r.Context(), id, *req.Description)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// DeleteWishlist handles DELETE /api/v1/wishlists/{id}
func (h *WishlistHandler) DeleteWishlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.sync.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "deleted"}})
}

// SelectWishlist handles POST /api/v1/wishlists/{id}/select
func (h *WishlistHandler) SelectWishlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.sync.Select(id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"selected": id}})
}

// SelectedWishlist handles GET /api/v1/wishlists/selected
func (h *WishlistHandler) SelectedWishlist(w http.ResponseWriter, r *http.Request) {
	wl := h.sync.Selected()
	if wl == nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "no wishlist selected"},
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// AddItem handles POST /api/v1/wishlists/{id}/items
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	wl, err := h.sync.AddItem(r.Context(), id, req.ItemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// RemoveItem handles DELETE /api/v1/wishlists/{id}/items/{itemId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")

	wl, err := h.sync.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// SetVisibility handles POST /api/v1/wishlists/{id}/visibility
func (h *WishlistHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	wl, err := h.sync.ToggleVisibility(r.Context(), id, req.Public, req.Slug)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// ToggleFavorite handles POST /api/v1/favorites/{itemId}/toggle
func (h *WishlistHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	favorited, err := h.sync.QuickFavorite(r.Context(), itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.favoriteStatus(itemID, favorited)})
}

// GetFavorite handles GET /api/v1/favorites/{itemId}
func (h *WishlistHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.favoriteStatus(itemID, h.favorites.IsFavoritedAnywhere(itemID))})
}

// GetPublicWishlist handles GET /api/v1/public/wishlists/{slug}. It is the
// only endpoint exposed without caring about the configured identity.
func (h *WishlistHandler) GetPublicWishlist(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	wl, err := h.sync.PublicWishlist(r.Context(), slug)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: wl})
}

// --- Helpers ---

func (h *WishlistHandler) favoriteStatus(itemID string, favorited bool) favoriteStatus {
	containing := h.favorites.WishlistsContaining(itemID)
	ids := make([]string, 0, len(containing))
	for _, wl := range containing {
		ids = append(ids, wl.ID)
	}
	return favoriteStatus{
		ItemID:      itemID,
		Favorited:   favorited,
		WishlistIDs: ids,
	}
}
