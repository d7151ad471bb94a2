package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/user"
	"github.com/gaseumlabs/uhcdb/internal/user/entity"
)

// CookieName holds the session token.
const CookieName = "token"

// Middleware resolves the caller and gates routes on permissions.
type Middleware struct {
	tokens   *TokenService
	users    *user.UserService
	provider IdentityProvider
	logger   *zap.SugaredLogger
}

func NewMiddleware(tokens *TokenService, users *user.UserService, provider IdentityProvider, logger *zap.SugaredLogger) *Middleware {
	return &Middleware{tokens: tokens, users: users, provider: provider, logger: logger}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return bearer(r)
}

// resolve returns the session user, nil when no token was sent, or an error
// for a bad token.
func (m *Middleware) resolve(r *http.Request) (*entity.User, error) {
	raw := sessionToken(r)
	if raw == "" {
		return nil, nil
	}
	id, err := m.tokens.VerifySession(raw)
	if err != nil {
		return nil, err
	}
	return m.users.GetByID(r.Context(), id)
}

// LoginRedirect sends the browser to the provider, returning to returnURL
// once signed in.
func (m *Middleware) LoginRedirect(w http.ResponseWriter, r *http.Request, returnURL string) {
	state, err := m.tokens.IssueState(returnURL)
	if err != nil {
		m.logger.Errorw("issue oauth state", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, m.provider.AuthCodeURL(state), http.StatusFound)
}

// Authorization requires a signed-in user. Without a token the caller is
// sent to log in; with a bad or stale one, to /expired.
func (m *Middleware) Authorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.resolve(r)
		switch {
		case err == nil && u != nil:
			next.ServeHTTP(w, r.WithContext(user.WithUser(r.Context(), u)))
		case err == nil:
			m.LoginRedirect(w, r, r.URL.RequestURI())
		case errors.Is(err, ErrInvalidToken) || errors.Is(err, user.ErrNotFound):
			http.Redirect(w, r, "/expired", http.StatusFound)
		default:
			m.logger.Errorw("resolve session", "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	})
}

// OptionalAuthorization attaches the user when a valid session is present.
func (m *Middleware) OptionalAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.resolve(r)
		if err != nil && !errors.Is(err, ErrInvalidToken) && !errors.Is(err, user.ErrNotFound) {
			m.logger.Warnw("resolve optional session", "err", err)
		}
		if u != nil {
			r = r.WithContext(user.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// BotAuthorization requires `Authorization: Bearer <botToken>` naming a
// user's current bot token.
func (m *Middleware) BotAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		u, err := m.users.FindByBotToken(r.Context(), token)
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				m.logger.Errorw("find bot token", "err", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(user.WithUser(r.Context(), u)))
	})
}

// RequirePermission answers 401 unless the resolved user has at least level.
func RequirePermission(level entity.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := user.FromContext(r.Context())
			if u == nil || u.Permissions < level {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	RequireAdmin = RequirePermission(entity.PermissionAdmin)
	RequireDev   = RequirePermission(entity.PermissionDev)
)
