package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/user"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// Handler serves the login flow.
type Handler struct {
	mw     *Middleware
	secure bool
	logger *zap.SugaredLogger
}

// NewHandler builds the login handlers. secure marks the session cookie
// HTTPS-only.
func NewHandler(mw *Middleware, secure bool, logger *zap.SugaredLogger) *Handler {
	return &Handler{mw: mw, secure: secure, logger: logger}
}

// Login redirects to the provider, returning to /home.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.mw.LoginRedirect(w, r, "/home")
}

// Token completes the authorization code flow and sets the session cookie.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		return utilities.NewHTTPError(http.StatusBadRequest, "missing code")
	}
	returnURL := "/home"
	if state := q.Get("state"); state != "" {
		ret, err := h.mw.tokens.VerifyState(state)
		if err != nil {
			return utilities.NewHTTPError(http.StatusBadRequest, "invalid state")
		}
		returnURL = ret
	}

	identity, err := h.mw.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warnw("oauth exchange failed", "err", err)
		return utilities.NewHTTPError(http.StatusUnauthorized, "login failed")
	}
	u, err := h.mw.users.GetOrCreateUser(r.Context(), identity)
	if err != nil {
		return err
	}
	session, err := h.mw.tokens.IssueSession(u.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    session,
		Path:     "/",
		MaxAge:   int(h.mw.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Infow("user signed in", "user", u.ID)
	http.Redirect(w, r, returnURL, http.StatusFound)
	return nil
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// JWKS publishes the session verification key.
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	utilities.WriteJSON(w, http.StatusOK, h.mw.tokens.JWKS())
}

// Me returns the signed-in user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) error {
	u := user.FromContext(r.Context())
	if u == nil {
		return utilities.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	utilities.WriteJSON(w, http.StatusOK, u)
	return nil
}
