package controllers

import (
	"net/http"

	"github.com/mylagoscommunity/cart-service/api/middleware"
	"github.com/mylagoscommunity/cart-service/api/responses"
)

// SessionPing reports the session and identity the request resolved to.
func SessionPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		payload := map[string]any{
			"session_id":    middleware.MustSessionID(r.Context()),
			"authenticated": identity.Authenticated,
		}
		if identity.Authenticated {
			payload["user_id"] = identity.UserID
		}
		responses.WriteSuccess(w, payload)
	}
}
