package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agenthub/wishlist-service/internal/auth"
	"github.com/agenthub/wishlist-service/internal/domain"
	"github.com/agenthub/wishlist-service/internal/repository"
	apperrors "github.com/agenthub/wishlist-service/pkg/errors"
	"github.com/agenthub/wishlist-service/pkg/httpclient"
)

// serviceName identifies the downstream API in errors and logs.
const serviceName = "wishlist-api"

// placeholderName is used when a remote record arrives without a usable name.
const placeholderName = "Untitled wishlist"

// httpDoer abstracts the retry/circuit-breaker client so tests can substitute
// a plain client.
type httpDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// WishlistRepository implements repository.WishlistRepository against the
// remote wishlist HTTP API.
type WishlistRepository struct {
	client  httpDoer
	baseURL string
	tokens  auth.TokenSource
}

// NewWishlistRepository creates a gateway for the remote wishlist API.
// baseURL is the API root, e.g. "https://api.example.com/v2".
func NewWishlistRepository(client httpDoer, baseURL string, tokens auth.TokenSource) *WishlistRepository {
	return &WishlistRepository{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// Ping probes the API's health endpoint. Used for capability detection at
// startup: an unreachable API puts the service into legacy/local mode.
func (r *WishlistRepository) Ping(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s health returned status %d", serviceName, resp.StatusCode)
	}
	return nil
}

// List returns all wishlists owned by the current identity.
func (r *WishlistRepository) List(ctx context.Context) ([]*domain.Wishlist, error) {
	resp, err := r.do(ctx, http.MethodGet, "/wishlists", nil, true)
	if err != nil {
		return nil, err
	}
	return r.decodeList(resp)
}

// ListPublic returns publicly visible wishlists across all owners.
func (r *WishlistRepository) ListPublic(ctx context.Context) ([]*domain.Wishlist, error) {
	resp, err := r.do(ctx, http.MethodGet, "/public/wishlists", nil, false)
	if err != nil {
		return nil, err
	}
	return r.decodeList(resp)
}

// Create persists a new wishlist. Public visibility requires the caller to
// have resolved a slug already; the gateway does not invent slugs.
func (r *WishlistRepository) Create(ctx context.Context, input repository.CreateInput) (*domain.Wishlist, error) {
	if input.Visibility == domain.VisibilityPublic && input.Slug == "" {
		return nil, apperrors.InvalidInput("creating a public wishlist requires a slug")
	}

	body := map[string]any{
		"name":        input.Name,
		"description": input.Description,
		"is_public":   input.Visibility == domain.VisibilityPublic,
	}
	if input.Slug != "" {
		body["slug"] = input.Slug
	}

	resp, err := r.do(ctx, http.MethodPost, "/wishlists", body, true)
	if err != nil {
		return nil, err
	}
	return r.decodeOne(resp)
}

// Get resolves a wishlist by id or slug. Public lookups go through the
// unauthenticated public endpoint so shared links resolve without a session.
func (r *WishlistRepository) Get(ctx context.Context, idOrSlug string, requiresAuth bool) (*domain.Wishlist, error) {
	path := "/wishlists/" + url.PathEscape(idOrSlug)
	if !requiresAuth {
		path = "/public/wishlists/" + url.PathEscape(idOrSlug)
	}

	resp, err := r.do(ctx, http.MethodGet, path, nil, requiresAuth)
	if err != nil {
		return nil, err
	}
	return r.decodeOne(resp)
}

// Update applies a partial update. Toggling to public without a non-empty
// slug fails before any network request is issued; the remote is never relied
// on to reject that.
func (r *WishlistRepository) Update(ctx context.Context, id string, patch repository.UpdatePatch) (*domain.Wishlist, error) {
	if patch.Visibility != nil && *patch.Visibility == domain.VisibilityPublic {
		if patch.Slug == nil || *patch.Slug == "" {
			return nil, apperrors.InvalidInput("making a wishlist public requires a slug")
		}
	}

	body := map[string]any{}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.Visibility != nil {
		body["is_public"] = *patch.Visibility == domain.VisibilityPublic
	}
	if patch.Slug != nil {
		body["slug"] = *patch.Slug
	}

	resp, err := r.do(ctx, http.MethodPatch, "/wishlists/"+url.PathEscape(id), body, true)
	if err != nil {
		return nil, err
	}
	return r.decodeOne(resp)
}

// AddItem inserts an item into the wishlist.
func (r *WishlistRepository) AddItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error) {
	body := map[string]any{"item_id": itemID}
	resp, err := r.do(ctx, http.MethodPost, "/wishlists/"+url.PathEscape(wishlistID)+"/items", body, true)
	if err != nil {
		return nil, err
	}
	return r.decodeOne(resp)
}

// RemoveItem deletes an item from the wishlist.
func (r *WishlistRepository) RemoveItem(ctx context.Context, wishlistID, itemID string) (*domain.Wishlist, error) {
	path := "/wishlists/" + url.PathEscape(wishlistID) + "/items/" + url.PathEscape(itemID)
	resp, err := r.do(ctx, http.MethodDelete, path, nil, true)
	if err != nil {
		return nil, err
	}
	return r.decodeOne(resp)
}

// Delete removes a wishlist.
func (r *WishlistRepository) Delete(ctx context.Context, id string) error {
	resp, err := r.do(ctx, http.MethodDelete, "/wishlists/"+url.PathEscape(id), nil, true)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// do builds and executes a request, mapping transport failures and non-2xx
// responses to typed errors. The gateway never swallows errors; deciding
// which failures are survivable is the synchronizer's job.
func (r *WishlistRepository) do(ctx context.Context, method, path string, body any, authenticated bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		token, err := r.tokens.Token(ctx)
		if err != nil {
			return nil, apperrors.Unauthorized("refresh token: " + err.Error())
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Unavailable(serviceName+" unreachable", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	return resp, nil
}

func (r *WishlistRepository) decodeOne(resp *http.Response) (*domain.Wishlist, error) {
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Unavailable("read "+serviceName+" response", err)
	}

	// Responses may or may not be wrapped in a data envelope.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(data, &envelope) == nil && len(envelope.Data) > 0 {
		data = envelope.Data
	}

	var raw rawWishlist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.Unavailable("parse "+serviceName+" response", err)
	}

	return normalize(raw), nil
}

func (r *WishlistRepository) decodeList(resp *http.Response) ([]*domain.Wishlist, error) {
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, apperrors.Unavailable("read "+serviceName+" response", err)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(data, &envelope) == nil && len(envelope.Data) > 0 {
		data = envelope.Data
	}

	var raws []rawWishlist
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, apperrors.Unavailable("parse "+serviceName+" response", err)
	}

	lists := make([]*domain.Wishlist, 0, len(raws))
	for _, raw := range raws {
		lists = append(lists, normalize(raw))
	}
	return lists, nil
}

// --- Response normalization ---
//
// The remote API is schematically inconsistent: different endpoints alias the
// same field under different names, and items arrive either as bare id
// strings or embedded objects. All shape-guessing lives here; nothing outside
// this file inspects raw API field names.

// flexString decodes a JSON string or number into a Go string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if json.Unmarshal(data, &str) == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if json.Unmarshal(data, &num) == nil {
		*s = flexString(num.String())
		return nil
	}
	// Unrecognized shape degrades to empty rather than failing the decode.
	*s = ""
	return nil
}

// rawItem handles items embedded as full objects.
type rawItem struct {
	ID     flexString `json:"id"`
	ItemID flexString `json:"item_id"`
	AltID  flexString `json:"_id"`
	Slug   flexString `json:"slug"`
}

// flexItem decodes a wishlist item that is either a bare id string or an
// embedded object carrying its id under one of several names.
type flexItem string

func (it *flexItem) UnmarshalJSON(data []byte) error {
	var str string
	if json.Unmarshal(data, &str) == nil {
		*it = flexItem(str)
		return nil
	}
	var obj rawItem
	if json.Unmarshal(data, &obj) == nil {
		*it = flexItem(firstNonEmpty(string(obj.ID), string(obj.ItemID), string(obj.AltID), string(obj.Slug)))
		return nil
	}
	*it = ""
	return nil
}

// rawWishlist covers every field alias the remote API is known to emit.
type rawWishlist struct {
	ID            flexString `json:"id"`
	WishlistID    flexString `json:"wishlist_id"`
	AltID         flexString `json:"_id"`
	Name          flexString `json:"name"`
	Description   flexString `json:"description"`
	Items         []flexItem `json:"items"`
	IsPublic      *bool      `json:"isPublic"`
	IsPublicSnake *bool      `json:"is_public"`
	Slug          flexString `json:"slug"`
	Owner         flexString `json:"owner"`
	CreatedAt     flexString `json:"created_at"`
	UpdatedAt     flexString `json:"updated_at"`
}

// normalize maps a raw API record to the canonical Wishlist shape.
// Unrecognized or missing fields degrade to defaults: a placeholder name,
// private visibility, empty items. It never fails.
func normalize(raw rawWishlist) *domain.Wishlist {
	w := &domain.Wishlist{
		ID:          firstNonEmpty(string(raw.ID), string(raw.WishlistID), string(raw.AltID)),
		Name:        string(raw.Name),
		Description: string(raw.Description),
		Items:       []string{},
		Visibility:  domain.VisibilityPrivate,
		Slug:        string(raw.Slug),
		Owner:       string(raw.Owner),
		CreatedAt:   parseTime(string(raw.CreatedAt)),
		UpdatedAt:   parseTime(string(raw.UpdatedAt)),
	}

	if w.Name == "" {
		w.Name = placeholderName
	}

	public := false
	if raw.IsPublic != nil {
		public = *raw.IsPublic
	} else if raw.IsPublicSnake != nil {
		public = *raw.IsPublicSnake
	}
	if public && w.Slug != "" {
		w.Visibility = domain.VisibilityPublic
	}

	seen := make(map[string]struct{}, len(raw.Items))
	for _, it := range raw.Items {
		id := string(it)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		w.Items = append(w.Items, id)
	}

	return w
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
