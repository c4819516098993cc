package repository

import (
	"context"

	"github.com/agenthub/wishlist-service/internal/domain"
)

// CreateInput holds the fields for creating a wishlist. When Visibility is
// public the caller must have already resolved a non-empty Slug; stores do
// not invent slugs.
type CreateInput struct {
	Name        string
	Description string
	Visibility  domain.Visibility
	Slug        string
	Owner       string
}

// UpdatePatch is a partial update. Nil fields are left unchanged.
type UpdatePatch struct {
	Name        *string
	Description *string
	Visibility  *domain.Visibility
	Slug        *string
}

// WishlistRepository is the storage interface the synchronizer dispatches
// mutations to. Two implementations exist: the remote wishlist API gateway
// and the Redis snapshot store used in legacy/local mode. The active one is
// selected once at startup.
type WishlistRepository interface {
	// List returns all wishlists owned by the current identity.
	List(ctx context.Context) ([]*domain.Wishlist, error)

	// ListPublic returns publicly visible wishlists across all owners.
	ListPublic(ctx context.Context) ([]*domain.Wishlist, error)

	// Create persists a new wishlist and returns it with the store-assigned id.
	Create(ctx context.Context, input CreateInput) (*domain.Wishlist, error)

	// Get resolves a wishlist by id or slug. With requiresAuth false the
	// lookup succeeds only for public wishlists; a matching private record
	// yields a Forbidden error.
	Get(ctx context.Context, idOrSlug string, requiresAuth bool) (*domain.Wishlist, error)

	// Update applies a partial update and returns the updated wishlist.
	Update(ctx context.Context, id string, patch UpdatePatch) (*domain.Wishlist, error)

	// AddItem inserts an item into the wishlist (idempotent).
	AddItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error)

	// RemoveItem deletes an item from the wishlist (no-op when absent).
	RemoveItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error)

	// Delete removes a wishlist.
	Delete(ctx context.Context, id string) error
}
