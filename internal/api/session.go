package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookie names the cookie that scopes uploads and queries to one
// browser session.
const SessionCookie = "session_id"

type sessionKey struct{}

// WithSession reads the session cookie, minting a fresh session id and
// setting the cookie when none is present, and stores the id in the
// request context.
func WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			id = c.Value
		} else {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

// SessionID returns the session id placed in the context by WithSession.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
