// Package auth supplies the caller identity used by the synchronizer and the
// remote gateway. Token refresh mechanics live behind the TokenSource
// interface; the rest of the service treats them as a black box.
package auth

import "context"

// TokenSource provides the current identity and a bearer token for the
// remote wishlist API. Implementations are responsible for refreshing
// expired tokens before returning them.
type TokenSource interface {
	// IsAuthenticated reports whether a usable credential is available.
	// When it returns false the synchronizer stops syncing and retains its
	// last known in-memory state.
	IsAuthenticated() bool

	// UserID returns the identity whose wishlist collection this service
	// owns. Display-only; not an access-control mechanism.
	UserID() string

	// Token returns a bearer token, refreshing it first if needed.
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource is a TokenSource backed by a fixed token, used for
// configuration-supplied service credentials and in tests. Legacy/local mode
// runs with an empty token.
type StaticTokenSource struct {
	User   string
	Bearer string
}

func (s *StaticTokenSource) IsAuthenticated() bool {
	return s.Bearer != ""
}

func (s *StaticTokenSource) UserID() string {
	return s.User
}

func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.Bearer, nil
}
