package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/auth"
)

// HeaderAPIKey is the header carrying the raw API key.
const HeaderAPIKey = "api_key"

// APIKey extracts the raw key from the api_key header or a Bearer
// Authorization header.
func APIKey(r *http.Request) string {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireScope authenticates the caller and checks that it holds scope
// before the wrapped handler runs. The identity is stored in the context.
func (h *Handler) requireScope(scope string) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, err := h.auth.Authenticate(ctx, APIKey(r))
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
				h.fail(w, r, auth.ErrNotAuthenticated)
				return
			case errors.Is(err, auth.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
				h.fail(w, r, errors.Wrap(err, "authenticate"))
				return
			case err != nil:
				// The caller was not rejected, the lookup failed.
				h.fail(w, r, errors.Wrap(fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err), "authenticate"))
				return
			}
			if !id.HasScope(scope) && !id.HasScope(auth.ScopeAdmin) {
				h.fail(w, r, auth.ErrForbidden)
				return
			}
			next(w, r.WithContext(auth.WithIdentity(ctx, id)))
		})
	}
}

// ownerOf returns the authenticated user ID placed in the context by
// requireScope.
func ownerOf(r *http.Request) (string, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return "", auth.ErrNotAuthenticated
	}
	return id.UserID, nil
}
