package domain

import (
	"time"

	apperrors "github.com/agenthub/wishlist-service/pkg/errors"
)

// Visibility controls whether a wishlist is reachable through its public slug.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// DefaultWishlistName is the name given to the lazily created wishlist that
// quick-favorite operations target when the user has no default yet.
const DefaultWishlistName = "My Favorites"

// Wishlist is a named collection of item identifiers owned by one user.
// Items are an unordered set; duplicates are forbidden. A public wishlist
// always carries a non-empty slug.
type Wishlist struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Items       []string   `json:"items"`
	Visibility  Visibility `json:"visibility"`
	Slug        string     `json:"slug,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPublic reports whether the wishlist is publicly visible.
func (w *Wishlist) IsPublic() bool {
	return w.Visibility == VisibilityPublic
}

// HasItem reports whether the given item is in the wishlist.
func (w *Wishlist) HasItem(itemID string) bool {
	for _, id := range w.Items {
		if id == itemID {
			return true
		}
	}
	return false
}

// AddItem inserts an item into the wishlist. Adding an item that is already
// present is a no-op; the return value reports whether the set changed.
func (w *Wishlist) AddItem(itemID string) bool {
	if w.HasItem(itemID) {
		return false
	}
	w.Items = append(w.Items, itemID)
	return true
}

// RemoveItem deletes an item from the wishlist. Removing an absent item is a
// no-op; the return value reports whether the set changed.
func (w *Wishlist) RemoveItem(itemID string) bool {
	for i, id := range w.Items {
		if id == itemID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the wishlist. Mutations capture a clone as
// their rollback snapshot before touching in-memory state.
func (w *Wishlist) Clone() *Wishlist {
	cpy := *w
	cpy.Items = make([]string, len(w.Items))
	copy(cpy.Items, w.Items)
	return &cpy
}

// Validate checks the wishlist's structural invariants: a public wishlist
// must carry a non-empty slug, and items must not contain duplicates.
func (w *Wishlist) Validate() error {
	if w.Visibility == VisibilityPublic && w.Slug == "" {
		return apperrors.InvalidInput("public wishlist must have a slug")
	}
	seen := make(map[string]struct{}, len(w.Items))
	for _, id := range w.Items {
		if _, dup := seen[id]; dup {
			return apperrors.InvalidInput("wishlist items must not contain duplicates")
		}
		seen[id] = struct{}{}
	}
	return nil
}
