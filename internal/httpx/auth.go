package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/identity"
)

const accessTokenCookie = "ACCESS_TOKEN"

type Authenticator struct {
	Issuer *identity.Issuer
}

// Require reads the access token from "Authorization: Bearer" or the ACCESS_TOKEN cookie
// and puts the identity on the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r.Header.Get("Authorization"))
		if token == "" {
			if c, err := r.Cookie(accessTokenCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthenticated", Message: "user not authenticated"})
			return
		}
		id, err := a.Issuer.Parse(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthenticated", Message: "token is invalid or expired"})
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

func bearer(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// actor is only called behind Require.
func actor(r *http.Request) identity.Identity {
	id, _ := identity.FromContext(r.Context())
	return id
}
