package link

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/render"
	"github.com/gaseumlabs/uhcdb/internal/user"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

type Handler struct {
	svc      *Service
	renderer *render.Renderer
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, renderer *render.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, renderer: renderer, logger: logger}
}

type createBody struct {
	UUID     string `json:"uuid" validate:"required,mcuuid"`
	Username string `json:"username" validate:"required"`
}

// Create issues a claim link for the Minecraft account named by the bot.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) error {
	var body createBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	uuid, _ := utilities.NormalizeUUID(body.UUID)
	link, err := h.svc.CreateVerifyLink(r.Context(), uuid, body.Username)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"link": link})
	return nil
}

// Claim consumes the code in the path for the signed-in user.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) error {
	u := user.FromContext(r.Context())
	if u == nil {
		return utilities.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	result, err := h.svc.VerifyLink(r.Context(), chi.URLParam(r, "code"), u)
	if err != nil {
		return err
	}
	switch result {
	case Success:
		http.Redirect(w, r, "/home", http.StatusFound)
		return nil
	case Expired:
		return h.renderer.RenderError(w, http.StatusBadRequest, "Code expired",
			"Sorry, that code has expired. Please generate a new one using /link.")
	default:
		return h.renderer.RenderError(w, http.StatusBadRequest, "Invalid code", "Invalid code.")
	}
}
