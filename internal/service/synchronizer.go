package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthub/wishlist-service/internal/auth"
	"github.com/agenthub/wishlist-service/internal/domain"
	"github.com/agenthub/wishlist-service/internal/event"
	"github.com/agenthub/wishlist-service/internal/repository"
	apperrors "github.com/agenthub/wishlist-service/pkg/errors"
	"github.com/agenthub/wishlist-service/pkg/slug"
)

// pendingIDPrefix marks optimistically created wishlists that have not yet
// received a store-assigned id.
const pendingIDPrefix = "pending-"

// Synchronizer owns the canonical in-memory wishlist collection. Every
// mutation goes through it: the change is applied optimistically, dispatched
// to the active backing store, and on failure rolled back to the mutation's
// own pre-change snapshot. The backing store is selected once at startup:
// the remote wishlist API normally, the Redis snapshot store in legacy mode.
type Synchronizer struct {
	repo     repository.WishlistRepository
	tokens   auth.TokenSource
	producer *event.Producer
	logger   *slog.Logger

	// legacy is true when running against the local snapshot store. In that
	// mode transport and not-found failures keep the optimistic state, since
	// there is no authority to reconcile against.
	legacy bool

	mu         sync.Mutex
	wishlists  map[string]*domain.Wishlist
	index      map[string]map[string]struct{}
	selectedID string
}

// NewSynchronizer creates a synchronizer over the given backing store.
// producer may be nil when event publishing is not configured.
func NewSynchronizer(repo repository.WishlistRepository, tokens auth.TokenSource, producer *event.Producer, logger *slog.Logger, legacy bool) *Synchronizer {
	return &Synchronizer{
		repo:      repo,
		tokens:    tokens,
		producer:  producer,
		logger:    logger,
		legacy:    legacy,
		wishlists: make(map[string]*domain.Wishlist),
		index:     make(map[string]map[string]struct{}),
	}
}

// Legacy reports whether the synchronizer runs against the local snapshot
// store.
func (s *Synchronizer) Legacy() bool {
	return s.legacy
}

// Wishlists returns a copy of the current collection, oldest first.
func (s *Synchronizer) Wishlists() []*domain.Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists := make([]*domain.Wishlist, 0, len(s.wishlists))
	for _, w := range s.wishlists {
		lists = append(lists, w.Clone())
	}
	sort.Slice(lists, func(i, j int) bool {
		if lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].ID < lists[j].ID
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists
}

// Wishlist returns one wishlist by id.
func (s *Synchronizer) Wishlist(id string) (*domain.Wishlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wishlists[id]
	if !ok {
		return nil, apperrors.NotFound("wishlist", id)
	}
	return w.Clone(), nil
}

// Select marks a wishlist as the currently selected one.
func (s *Synchronizer) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wishlists[id]; !ok {
		return apperrors.NotFound("wishlist", id)
	}
	s.selectedID = id
	return nil
}

// Selected returns the currently selected wishlist, or nil when none is
// selected.
func (s *Synchronizer) Selected() *domain.Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedID == "" {
		return nil
	}
	w, ok := s.wishlists[s.selectedID]
	if !ok {
		return nil
	}
	return w.Clone()
}

// LoadAll refreshes the collection from the backing store: the in-memory
// state is replaced wholesale and the favorited index is recomputed from
// scratch. Publicly visible wishlists owned by others are merged in,
// de-duplicated by id. In remote mode with no authenticated identity the
// refresh is skipped and the last known state is retained.
func (s *Synchronizer) LoadAll(ctx context.Context) error {
	if !s.legacy && !s.tokens.IsAuthenticated() {
		s.logger.InfoContext(ctx, "skipping wishlist refresh, not authenticated")
		return nil
	}

	own, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load wishlists: %w", err)
	}

	// Public wishlists are a best-effort enrichment; their absence never
	// fails the refresh.
	public, err := s.repo.ListPublic(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load public wishlists",
			slog.String("error", err.Error()),
		)
		public = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.wishlists = make(map[string]*domain.Wishlist, len(own)+len(public))
	for _, w := range own {
		s.wishlists[w.ID] = w.Clone()
	}
	for _, w := range public {
		if _, ok := s.wishlists[w.ID]; ok {
			continue
		}
		s.wishlists[w.ID] = w.Clone()
	}
	if _, ok := s.wishlists[s.selectedID]; !ok {
		s.selectedID = ""
	}
	s.rebuildIndexLocked()

	syncRefreshes.Inc()
	return nil
}

// Create adds a new wishlist. The entry appears immediately under a pending
// id and is reconciled with the store-assigned id once the store confirms.
func (s *Synchronizer) Create(ctx context.Context, name, description string) (*domain.Wishlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.InvalidInput("wishlist name is required")
	}

	now := time.Now().UTC()
	pending := &domain.Wishlist{
		ID:          pendingIDPrefix + uuid.NewString(),
		Name:        name,
		Description: description,
		Items:       []string{},
		Visibility:  domain.VisibilityPrivate,
		Owner:       s.tokens.UserID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.wishlists[pending.ID] = pending
	s.mu.Unlock()

	confirmed, err := s.repo.Create(ctx, repository.CreateInput{
		Name:        name,
		Description: description,
		Visibility:  domain.VisibilityPrivate,
		Owner:       pending.Owner,
	})
	if err != nil {
		if s.keepOptimistic(err) {
			s.logKeptOptimistic(ctx, "create", pending.ID, err)
			return pending.Clone(), nil
		}
		s.mu.Lock()
		delete(s.wishlists, pending.ID)
		if s.selectedID == pending.ID {
			s.selectedID = ""
		}
		s.mu.Unlock()
		syncRollbacks.WithLabelValues("create").Inc()
		return nil, err
	}

	s.mu.Lock()
	// Carry over items added while the create was in flight.
	cur := s.wishlists[pending.ID]
	adopted := confirmed.Clone()
	if cur != nil && len(cur.Items) > 0 {
		for _, item := range cur.Items {
			adopted.AddItem(item)
		}
	}
	delete(s.wishlists, pending.ID)
	s.wishlists[adopted.ID] = adopted
	if s.selectedID == pending.ID {
		s.selectedID = adopted.ID
	}
	s.rebuildIndexLocked()
	out := adopted.Clone()
	s.mu.Unlock()

	syncMutations.WithLabelValues("create").Inc()
	s.publishUpdated(ctx, out)
	return out, nil
}

// Rename changes a wishlist's name. The slug is intentionally left alone:
// public links keep working across renames unless the slug is edited
// explicitly.
func (s *Synchronizer) Rename(ctx context.Context, id, name string) (*domain.Wishlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.InvalidInput("wishlist name is required")
	}

	return s.mutate(ctx, "rename", id,
		func(w *domain.Wishlist) error {
			w.Name = name
			return nil
		},
		func(ctx context.Context) (*domain.Wishlist, error) {
			return s.repo.Update(ctx, id, repository.UpdatePatch{Name: &name})
		},
	)
}

// UpdateDescription changes a wishlist's description.
func (s *Synchronizer) UpdateDescription(ctx context.Context, id, description string) (*domain.Wishlist, error) {
	return s.mutate(ctx, "update_description", id,
		func(w *domain.Wishlist) error {
			w.Description = description
			return nil
		},
		func(ctx context.Context) (*domain.Wishlist, error) {
			return s.repo.Update(ctx, id, repository.UpdatePatch{Description: &description})
		},
	)
}

// AddItem inserts an item into a wishlist. Adding an item already present
// succeeds without touching the store.
func (s *Synchronizer) AddItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error) {
	if itemID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}

	var changed bool
	return s.mutate(ctx, "add_item", wishlistID,
		func(w *domain.Wishlist) error {
			changed = w.AddItem(itemID)
			return nil
		},
		func(ctx context.Context) (*domain.Wishlist, error) {
			if !changed {
				return nil, nil
			}
			return s.repo.AddItem(ctx, wishlistID, itemID)
		},
	)
}

// RemoveItem deletes an item from a wishlist. Removing an absent item
// succeeds without touching the store.
func (s *Synchronizer) RemoveItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error) {
	if itemID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}

	var changed bool
	return s.mutate(ctx, "remove_item", wishlistID,
		func(w *domain.Wishlist) error {
			changed = w.RemoveItem(itemID)
			return nil
		},
		func(ctx context.Context) (*domain.Wishlist, error) {
			if !changed {
				return nil, nil
			}
			return s.repo.RemoveItem(ctx, wishlistID, itemID)
		},
	)
}

// ToggleVisibility flips a wishlist between private and public. Going public
// resolves a slug in priority order: the explicit customSlug, then the slug
// already on record, then one generated from the current name. When none of
// these yields a non-empty slug the call fails before any state is touched.
// Going private clears the public mirror but retains the slug for re-publish.
func (s *Synchronizer) ToggleVisibility(ctx context.Context, id string, makePublic bool, customSlug string) (*domain.Wishlist, error) {
	var resolved string
	if makePublic {
		s.mu.Lock()
		w, ok := s.wishlists[id]
		if !ok {
			s.mu.Unlock()
			return nil, apperrors.NotFound("wishlist", id)
		}
		switch {
		case customSlug != "":
			resolved = slug.Generate(customSlug)
		case w.Slug != "":
			resolved = w.Slug
		case strings.TrimSpace(w.Name) != "":
			resolved = slug.ForWishlist(w.Name, w.ID, true)
		}
		s.mu.Unlock()

		if resolved == "" {
			return nil, apperrors.InvalidInput("cannot make wishlist public: no slug could be resolved from the name")
		}
	}

	visibility := domain.VisibilityPrivate
	if makePublic {
		visibility = domain.VisibilityPublic
	}

	return s.mutate(ctx, "toggle_visibility", id,
		func(w *domain.Wishlist) error {
			w.Visibility = visibility
			if makePublic {
				w.Slug = resolved
			}
			return nil
		},
		func(ctx context.Context) (*domain.Wishlist, error) {
			patch := repository.UpdatePatch{Visibility: &visibility}
			if makePublic {
				patch.Slug = &resolved
			}
			return s.repo.Update(ctx, id, patch)
		},
	)
}

// Delete removes a wishlist. The currently selected reference is cleared if
// it pointed at the deleted wishlist.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	w, ok := s.wishlists[id]
	if !ok {
		s.mu.Unlock()
		return apperrors.NotFound("wishlist", id)
	}
	snapshot := w.Clone()
	wasSelected := s.selectedID == id

	delete(s.wishlists, id)
	if wasSelected {
		s.selectedID = ""
	}
	s.dropFromIndexLocked(snapshot)
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		if s.keepOptimistic(err) {
			s.logKeptOptimistic(ctx, "delete", id, err)
			return nil
		}
		s.mu.Lock()
		s.wishlists[id] = snapshot
		if wasSelected {
			s.selectedID = id
		}
		s.addToIndexLocked(snapshot)
		s.mu.Unlock()
		syncRollbacks.WithLabelValues("delete").Inc()
		return err
	}

	syncMutations.WithLabelValues("delete").Inc()
	if s.producer != nil {
		if err := s.producer.PublishWishlistDeleted(ctx, id, snapshot.Owner); err != nil {
			s.logger.WarnContext(ctx, "failed to publish wishlist.deleted event",
				slog.String("wishlist_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// QuickFavorite toggles an item's favorited state. If the item is present in
// any wishlist it is removed from all of them. Otherwise it is added to the
// default wishlist, which is lazily created on first use. The return value
// reports whether the item is favorited after the call.
func (s *Synchronizer) QuickFavorite(ctx context.Context, itemID string) (bool, error) {
	if itemID == "" {
		return false, apperrors.InvalidInput("item id is required")
	}

	s.mu.Lock()
	containing := make([]string, 0, len(s.index[itemID]))
	for id := range s.index[itemID] {
		containing = append(containing, id)
	}
	sort.Strings(containing)
	defaultID := s.defaultWishlistIDLocked()
	s.mu.Unlock()

	if len(containing) > 0 {
		for _, id := range containing {
			if _, err := s.RemoveItem(ctx, id, itemID); err != nil {
				return true, fmt.Errorf("unfavorite from wishlist %s: %w", id, err)
			}
		}
		return false, nil
	}

	if defaultID == "" {
		created, err := s.Create(ctx, domain.DefaultWishlistName, "")
		if err != nil {
			return false, fmt.Errorf("create default wishlist: %w", err)
		}
		defaultID = created.ID
	}

	if _, err := s.AddItem(ctx, defaultID, itemID); err != nil {
		return false, err
	}
	return true, nil
}

// PublicWishlist resolves a public wishlist by slug through the backing
// store. It is a read-through: public wishlists of strangers are not part of
// the owned in-memory collection until the next full refresh.
func (s *Synchronizer) PublicWishlist(ctx context.Context, slug string) (*domain.Wishlist, error) {
	if slug == "" {
		return nil, apperrors.InvalidInput("slug is required")
	}
	return s.repo.Get(ctx, slug, false)
}

// mutate is the optimistic-apply wrapper shared by all single-wishlist
// mutations: snapshot the target, apply in memory, dispatch to the store,
// reconcile on success, restore the snapshot on failure. The lock is not
// held across the dispatch; each mutation rolls back only its own target,
// so interleaved mutations on other wishlists are unaffected.
func (s *Synchronizer) mutate(ctx context.Context, op, id string, apply func(*domain.Wishlist) error, dispatch func(context.Context) (*domain.Wishlist, error)) (*domain.Wishlist, error) {
	s.mu.Lock()
	w, ok := s.wishlists[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.NotFound("wishlist", id)
	}
	snapshot := w.Clone()
	if err := apply(w); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	w.UpdatedAt = time.Now().UTC()
	s.dropFromIndexLocked(snapshot)
	s.addToIndexLocked(w)
	optimistic := w.Clone()
	s.mu.Unlock()

	confirmed, err := dispatch(ctx)
	if err != nil {
		if s.keepOptimistic(err) {
			s.logKeptOptimistic(ctx, op, id, err)
			return optimistic, nil
		}
		s.mu.Lock()
		s.restoreLocked(id, snapshot)
		s.mu.Unlock()
		syncRollbacks.WithLabelValues(op).Inc()
		return nil, err
	}

	out := optimistic
	if confirmed != nil {
		s.mu.Lock()
		if cur, ok := s.wishlists[id]; ok {
			// Adopt authoritative fields; items and name keep the optimistic
			// values, which may already include later in-flight mutations.
			// A confirmed record with no slug adopts nothing: committing it
			// would leave a public wishlist without one.
			if confirmed.Slug != "" {
				cur.Slug = confirmed.Slug
			}
			if !confirmed.CreatedAt.IsZero() {
				cur.CreatedAt = confirmed.CreatedAt
			}
			if !confirmed.UpdatedAt.IsZero() {
				cur.UpdatedAt = confirmed.UpdatedAt
			}
			out = cur.Clone()
		}
		s.mu.Unlock()
	}

	syncMutations.WithLabelValues(op).Inc()
	s.publishUpdated(ctx, out)
	return out, nil
}

// keepOptimistic reports whether a store failure should keep the optimistic
// state instead of rolling back. Only the local snapshot path qualifies:
// there is no authority behind it to disagree with.
func (s *Synchronizer) keepOptimistic(err error) bool {
	if !s.legacy {
		return false
	}
	return errors.Is(err, apperrors.ErrServiceUnavail) || errors.Is(err, apperrors.ErrNotFound)
}

func (s *Synchronizer) logKeptOptimistic(ctx context.Context, op, id string, err error) {
	syncOptimisticKept.WithLabelValues(op).Inc()
	s.logger.WarnContext(ctx, "snapshot store unavailable, keeping optimistic state",
		slog.String("operation", op),
		slog.String("wishlist_id", id),
		slog.String("error", err.Error()),
	)
}

func (s *Synchronizer) restoreLocked(id string, snapshot *domain.Wishlist) {
	if cur, ok := s.wishlists[id]; ok {
		s.dropFromIndexLocked(cur)
	}
	s.wishlists[id] = snapshot
	s.addToIndexLocked(snapshot)
}

// defaultWishlistIDLocked finds the lazily created default wishlist by its
// fixed name. Caller must hold the lock.
func (s *Synchronizer) defaultWishlistIDLocked() string {
	var defaultID string
	for id, w := range s.wishlists {
		if w.Name != domain.DefaultWishlistName {
			continue
		}
		if defaultID == "" || id < defaultID {
			defaultID = id
		}
	}
	return defaultID
}

func (s *Synchronizer) rebuildIndexLocked() {
	s.index = make(map[string]map[string]struct{}, len(s.index))
	for _, w := range s.wishlists {
		s.addToIndexLocked(w)
	}
}

func (s *Synchronizer) addToIndexLocked(w *domain.Wishlist) {
	for _, item := range w.Items {
		set, ok := s.index[item]
		if !ok {
			set = make(map[string]struct{})
			s.index[item] = set
		}
		set[w.ID] = struct{}{}
	}
}

func (s *Synchronizer) dropFromIndexLocked(w *domain.Wishlist) {
	for _, item := range w.Items {
		set, ok := s.index[item]
		if !ok {
			continue
		}
		delete(set, w.ID)
		if len(set) == 0 {
			delete(s.index, item)
		}
	}
}

func (s *Synchronizer) publishUpdated(ctx context.Context, w *domain.Wishlist) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishWishlistUpdated(ctx, w); err != nil {
		s.logger.WarnContext(ctx, "failed to publish wishlist.updated event",
			slog.String("wishlist_id", w.ID),
			slog.String("error", err.Error()),
		)
	}
}
