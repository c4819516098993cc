package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agenthub/wishlist-service/internal/domain"
	"github.com/agenthub/wishlist-service/internal/repository"
	apperrors "github.com/agenthub/wishlist-service/pkg/errors"
)

const (
	keyPrefix = "wishlists:"
	publicKey = "wishlists:public"
)

// WishlistRepository implements repository.WishlistRepository on Redis. It is
// the snapshot store used in legacy/local mode when the remote wishlist API is
// not configured or unreachable. All wishlists of one owner live under a
// single key; public wishlists are mirrored into a shared hash keyed by slug
// so unauthenticated slug lookups stay O(1).
type WishlistRepository struct {
	client *redis.Client
	owner  string
}

// NewWishlistRepository creates a Redis-backed snapshot store scoped to one
// owner identity.
func NewWishlistRepository(client *redis.Client, owner string) *WishlistRepository {
	return &WishlistRepository{
		client: client,
		owner:  owner,
	}
}

// List returns all wishlists owned by the current identity, oldest first.
func (r *WishlistRepository) List(ctx context.Context) ([]*domain.Wishlist, error) {
	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	lists := make([]*domain.Wishlist, 0, len(all))
	for _, w := range all {
		lists = append(lists, w)
	}
	sort.Slice(lists, func(i, j int) bool {
		if lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].ID < lists[j].ID
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists, nil
}

// ListPublic returns all publicly visible wishlists across owners.
func (r *WishlistRepository) ListPublic(ctx context.Context) ([]*domain.Wishlist, error) {
	entries, err := r.client.HGetAll(ctx, publicKey).Result()
	if err != nil {
		return nil, apperrors.Unavailable("redis hgetall public wishlists", err)
	}

	lists := make([]*domain.Wishlist, 0, len(entries))
	for _, raw := range entries {
		var w domain.Wishlist
		if json.Unmarshal([]byte(raw), &w) != nil {
			continue
		}
		lists = append(lists, &w)
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].Slug < lists[j].Slug })
	return lists, nil
}

// Create persists a new wishlist with a store-assigned id.
func (r *WishlistRepository) Create(ctx context.Context, input repository.CreateInput) (*domain.Wishlist, error) {
	if input.Visibility == domain.VisibilityPublic && input.Slug == "" {
		return nil, apperrors.InvalidInput("creating a public wishlist requires a slug")
	}

	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	owner := input.Owner
	if owner == "" {
		owner = r.owner
	}

	now := time.Now().UTC()
	w := &domain.Wishlist{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Items:       []string{},
		Visibility:  input.Visibility,
		Slug:        input.Slug,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if w.Name == "" {
		w.Name = domain.DefaultWishlistName
	}

	if w.IsPublic() {
		if err := r.claimSlug(ctx, w); err != nil {
			return nil, err
		}
	}

	all[w.ID] = w
	if err := r.saveAll(ctx, all); err != nil {
		return nil, err
	}
	return w.Clone(), nil
}

// Get resolves a wishlist by id or slug. Unauthenticated lookups resolve only
// through the public mirror; a matching private record yields Forbidden.
func (r *WishlistRepository) Get(ctx context.Context, idOrSlug string, requiresAuth bool) (*domain.Wishlist, error) {
	if !requiresAuth {
		return r.getPublic(ctx, idOrSlug)
	}

	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if w, ok := all[idOrSlug]; ok {
		return w.Clone(), nil
	}
	for _, w := range all {
		if w.Slug != "" && w.Slug == idOrSlug {
			return w.Clone(), nil
		}
	}
	return nil, apperrors.NotFound("wishlist", idOrSlug)
}

// Update applies a partial update.
func (r *WishlistRepository) Update(ctx context.Context, id string, patch repository.UpdatePatch) (*domain.Wishlist, error) {
	return r.mutate(ctx, id, func(w *domain.Wishlist) error {
		if patch.Visibility != nil && *patch.Visibility == domain.VisibilityPublic {
			slug := w.Slug
			if patch.Slug != nil {
				slug = *patch.Slug
			}
			if slug == "" {
				return apperrors.InvalidInput("making a wishlist public requires a slug")
			}
		}

		if patch.Name != nil {
			w.Name = *patch.Name
		}
		if patch.Description != nil {
			w.Description = *patch.Description
		}
		if patch.Slug != nil {
			w.Slug = *patch.Slug
		}
		if patch.Visibility != nil {
			w.Visibility = *patch.Visibility
		}
		return nil
	})
}

// AddItem inserts an item into the wishlist. Idempotent.
func (r *WishlistRepository) AddItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error) {
	return r.mutate(ctx, wishlistID, func(w *domain.Wishlist) error {
		w.AddItem(itemID)
		return nil
	})
}

// RemoveItem deletes an item from the wishlist. No-op when absent.
func (r *WishlistRepository) RemoveItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error) {
	return r.mutate(ctx, wishlistID, func(w *domain.Wishlist) error {
		w.RemoveItem(itemID)
		return nil
	})
}

// Delete removes a wishlist and its public mirror entry.
func (r *WishlistRepository) Delete(ctx context.Context, id string) error {
	all, err := r.loadAll(ctx)
	if err != nil {
		return err
	}

	w, ok := all[id]
	if !ok {
		return apperrors.NotFound("wishlist", id)
	}

	delete(all, id)
	if err := r.saveAll(ctx, all); err != nil {
		return err
	}
	if w.Slug != "" {
		if err := r.client.HDel(ctx, publicKey, w.Slug).Err(); err != nil {
			return apperrors.Unavailable("redis hdel public wishlist", err)
		}
	}
	return nil
}

// mutate runs a read-modify-write cycle on one wishlist and keeps the public
// mirror consistent with the resulting visibility and slug.
func (r *WishlistRepository) mutate(ctx context.Context, id string, fn func(*domain.Wishlist) error) (*domain.Wishlist, error) {
	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	w, ok := all[id]
	if !ok {
		return nil, apperrors.NotFound("wishlist", id)
	}

	prevSlug := w.Slug
	wasPublic := w.IsPublic()

	if err := fn(w); err != nil {
		return nil, err
	}
	w.UpdatedAt = time.Now().UTC()

	if w.IsPublic() && (!wasPublic || w.Slug != prevSlug) {
		if err := r.claimSlug(ctx, w); err != nil {
			return nil, err
		}
	}

	if err := r.saveAll(ctx, all); err != nil {
		return nil, err
	}

	switch {
	case w.IsPublic():
		if prevSlug != "" && prevSlug != w.Slug {
			_ = r.client.HDel(ctx, publicKey, prevSlug).Err()
		}
		if err := r.mirrorPublic(ctx, w); err != nil {
			return nil, err
		}
	case wasPublic && prevSlug != "":
		if err := r.client.HDel(ctx, publicKey, prevSlug).Err(); err != nil {
			return nil, apperrors.Unavailable("redis hdel public wishlist", err)
		}
	}

	return w.Clone(), nil
}

func (r *WishlistRepository) getPublic(ctx context.Context, slug string) (*domain.Wishlist, error) {
	raw, err := r.client.HGet(ctx, publicKey, slug).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Distinguish "does not exist" from "exists but private".
			all, loadErr := r.loadAll(ctx)
			if loadErr == nil {
				for _, w := range all {
					if w.ID == slug || (w.Slug != "" && w.Slug == slug) {
						return nil, apperrors.Forbidden("wishlist is private")
					}
				}
			}
			return nil, apperrors.NotFound("wishlist", slug)
		}
		return nil, apperrors.Unavailable("redis hget public wishlist", err)
	}

	var w domain.Wishlist
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("unmarshal public wishlist: %w", err)
	}
	return &w, nil
}

// claimSlug rejects a public slug already mirrored by a different wishlist.
func (r *WishlistRepository) claimSlug(ctx context.Context, w *domain.Wishlist) error {
	raw, err := r.client.HGet(ctx, publicKey, w.Slug).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return apperrors.Unavailable("redis hget public wishlist", err)
	}

	var existing domain.Wishlist
	if json.Unmarshal(raw, &existing) == nil && existing.ID != w.ID {
		return apperrors.Conflict(fmt.Sprintf("slug %q is already in use", w.Slug))
	}
	return nil
}

func (r *WishlistRepository) mirrorPublic(ctx context.Context, w *domain.Wishlist) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal public wishlist: %w", err)
	}
	if err := r.client.HSet(ctx, publicKey, w.Slug, data).Err(); err != nil {
		return apperrors.Unavailable("redis hset public wishlist", err)
	}
	return nil
}

// loadAll reads the owner's snapshot. A missing key yields an empty map; a
// corrupt snapshot is treated the same so the store never wedges on bad data.
func (r *WishlistRepository) loadAll(ctx context.Context) (map[string]*domain.Wishlist, error) {
	data, err := r.client.Get(ctx, keyPrefix+r.owner).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]*domain.Wishlist{}, nil
		}
		return nil, apperrors.Unavailable("redis get wishlists", err)
	}

	var all map[string]*domain.Wishlist
	if err := json.Unmarshal(data, &all); err != nil {
		return map[string]*domain.Wishlist{}, nil
	}
	if all == nil {
		all = map[string]*domain.Wishlist{}
	}
	return all, nil
}

func (r *WishlistRepository) saveAll(ctx context.Context, all map[string]*domain.Wishlist) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshal wishlists: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+r.owner, data, 0).Err(); err != nil {
		return apperrors.Unavailable("redis set wishlists", err)
	}
	return nil
}
