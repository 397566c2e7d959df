package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mylagoscommunity/cart-service/pkg/config"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
)

const sessionIDHeader = "X-Session-Id"

// Session resolves the browser session from the cookie or header, minting a
// new id when neither carries a valid one. The id is echoed back on both.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "mlc_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionFromRequest(r, cookieName)
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(cfg.TTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(sessionIDHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(r *http.Request, cookieName string) string {
	if id := normalizeSessionID(r.Header.Get(sessionIDHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return normalizeSessionID(cookie.Value)
	}
	return ""
}

// normalizeSessionID only accepts UUIDs so ids are safe to embed in storage keys.
func normalizeSessionID(raw string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return parsed.String()
}
