package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/auth"
	"github.com/gaseumlabs/uhcdb/internal/link"
	"github.com/gaseumlabs/uhcdb/internal/season"
	"github.com/gaseumlabs/uhcdb/internal/summary"
	"github.com/gaseumlabs/uhcdb/internal/user"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// pages inline their initial props in a script tag
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; object-src 'none'; base-uri 'self';")
			}

			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// errorBody is the JSON answer for a failed API call.
type errorBody struct {
	Error  string                 `json:"error"`
	Fields []utilities.FieldError `json:"fields,omitempty"`
}

// Status maps a handler error to the HTTP status and message sent back.
// Unknown errors become a 500 without detail.
func Status(err error) (int, string) {
	var verr *utilities.ValidationError
	var herr *utilities.HTTPError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &herr):
		return herr.Status, herr.Message
	case errors.Is(err, summary.ErrBadCursor):
		return http.StatusBadRequest, summary.ErrBadCursor.Error()
	case errors.Is(err, summary.ErrConflict):
		return http.StatusConflict, summary.ErrConflict.Error()
	case errors.Is(err, summary.ErrMoved):
		return http.StatusConflict, summary.ErrMoved.Error()
	case errors.Is(err, summary.ErrNotFound), errors.Is(err, season.ErrNotFound), errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Handle adapts an error-returning handler, answering failures as JSON.
func Handle(logger *zap.SugaredLogger, fn utilities.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status, msg := Status(err)
		if status == http.StatusInternalServerError {
			logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		} else {
			logger.Debugw("request rejected", "path", r.URL.Path, "status", status, "err", err)
		}
		body := errorBody{Error: msg}
		var verr *utilities.ValidationError
		if errors.As(err, &verr) {
			body.Fields = verr.Fields
		}
		utilities.WriteJSON(w, status, body)
	}
}

// Deps is everything the route table mounts.
type Deps struct {
	Logger      *zap.SugaredLogger
	Auth        *auth.Middleware
	Login       *auth.Handler
	Users       *user.Handler
	Links       *link.Handler
	Summaries   *summary.Handler
	Seasons     *season.Handler
	Pages       *Pages
	StaticDir   string
	CORSOrigins []string
}

// RegisterRoutes mounts every HTTP route on a chi router.
func RegisterRoutes(d Deps) http.Handler {
	h := func(fn utilities.HandlerFunc) http.HandlerFunc { return Handle(d.Logger, fn) }

	r := chi.NewRouter()
	r.Use(LoggingMiddleware(d.Logger), SecurityHeadersMiddleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if d.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}

	r.Get("/", d.Login.Login)
	r.Get("/login", d.Login.Login)
	r.Get("/token", h(d.Login.Token))
	r.Get("/logout", d.Login.Logout)
	r.Get("/jwks.json", d.Login.JWKS)
	r.Get("/expired", h(d.Pages.Expired))

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.OptionalAuthorization)
		r.Get("/home", h(d.Pages.Home))
		r.Get("/games", h(d.Pages.Games))
		r.Get("/admin", h(d.Pages.Admin))
	})
	r.With(d.Auth.Authorization).Get("/link/{code}", h(d.Links.Claim))

	r.Route("/api", func(r chi.Router) {
		if len(d.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   d.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowedHeaders:   []string{"Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}

		r.Route("/bot", func(r chi.Router) {
			r.Use(d.Auth.BotAuthorization)
			r.Post("/createVerifyLink", h(d.Links.Create))
			r.Post("/unlink/{minecraftId}", h(d.Users.Unlink))
			r.Post("/discordId", h(d.Users.DiscordID))
			r.Post("/discordIds", h(d.Users.DiscordIDs))
			r.Post("/ping", h(d.Users.Ping))
			r.Post("/summary", h(d.Summaries.Upload))
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Authorization)
			r.Get("/me", h(d.Login.Me))

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/downloadToken", h(d.Users.DownloadToken))

				r.Get("/summaries", h(d.Summaries.List))
				r.Get("/summaries/{id}", h(d.Summaries.Get))
				r.Put("/summaries/{id}", h(d.Summaries.Edit))
				r.Delete("/summaries/{id}", h(d.Summaries.Delete))
				r.Post("/summaries/publish/{id}", h(d.Summaries.Publish))
				r.Delete("/summaries/publish/{season}/{game}", h(d.Summaries.Unpublish))

				r.Put("/season/{id}", h(d.Seasons.Put))
			})
		})

		r.Get("/season/{id}", h(d.Seasons.Get))
		r.Get("/season/{id}/summaries", h(d.Summaries.SeasonSummaries))
		r.Get("/season/{id}/summaries/{game}", h(d.Summaries.PublishedSummary))
	})

	return r
}
