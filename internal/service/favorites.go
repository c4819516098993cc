package service

import (
	"sort"

	"github.com/agenthub/wishlist-service/internal/domain"
)

// Favorites is a read-only view over the synchronizer's in-memory state. It
// answers "is this item favorited" queries against the aggregated
// item-to-wishlists index; it holds no state of its own.
type Favorites struct {
	sync *Synchronizer
}

// NewFavorites creates the favoriting facade over a synchronizer.
func NewFavorites(sync *Synchronizer) *Favorites {
	return &Favorites{sync: sync}
}

// IsInWishlist reports whether the item is in the given wishlist.
func (f *Favorites) IsInWishlist(wishlistID, itemID string) bool {
	f.sync.mu.Lock()
	defer f.sync.mu.Unlock()

	_, ok := f.sync.index[itemID][wishlistID]
	return ok
}

// IsFavoritedAnywhere reports whether the item is in any wishlist. This is a
// single index lookup, never a scan over all wishlists.
func (f *Favorites) IsFavoritedAnywhere(itemID string) bool {
	f.sync.mu.Lock()
	defer f.sync.mu.Unlock()

	return len(f.sync.index[itemID]) > 0
}

// WishlistsContaining returns the wishlists that contain the item, oldest
// first.
func (f *Favorites) WishlistsContaining(itemID string) []*domain.Wishlist {
	f.sync.mu.Lock()
	defer f.sync.mu.Unlock()

	lists := make([]*domain.Wishlist, 0, len(f.sync.index[itemID]))
	for id := range f.sync.index[itemID] {
		if w, ok := f.sync.wishlists[id]; ok {
			lists = append(lists, w.Clone())
		}
	}
	sort.Slice(lists, func(i, j int) bool {
		if lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].ID < lists[j].ID
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists
}
