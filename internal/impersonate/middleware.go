package impersonate

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/branchline/branchline/internal/shared"
)

// Middleware resolves the viewing identity for the request and stores it in
// the context. Handlers that render "whose view" read the viewer; handlers
// that mutate keep using the session user.
type Middleware struct {
	Manager *Manager
	Logger  *slog.Logger
}

// ResolveViewer installs the effective identity into the request context.
func (m Middleware) ResolveViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || strings.TrimSpace(sess.User()) == "" {
			next.ServeHTTP(w, r)
			return
		}
		actorID, err := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		viewer, err := m.Manager.EffectiveIdentity(r.Context(), actorID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve effective identity", slog.Any("error", err))
			}
			viewer = actorID
		}
		ctx := shared.ContextWithViewer(r.Context(), viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
