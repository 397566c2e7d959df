package middleware

import (
	"net/http"
	"strings"

	"github.com/mylagoscommunity/cart-service/api/responses"
	"github.com/mylagoscommunity/cart-service/internal/cart"
	pkgAuth "github.com/mylagoscommunity/cart-service/pkg/auth"
	"github.com/mylagoscommunity/cart-service/pkg/config"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
	"github.com/mylagoscommunity/cart-service/pkg/xano"
)

// OptionalAuth seeds the request with the caller identity. Requests without
// credentials continue as guests; a presented but invalid token is rejected.
// A valid token is also forwarded to the remote cart store.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), cart.Guest())))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), cart.Authenticated(claims.UserID))
			ctx = xano.WithToken(ctx, token)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
