package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// Handler exposes HTTP endpoints for bot tokens and Minecraft account lookups.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// DownloadToken mints a bot token for the signed-in user and returns it as
// the uhcdb.json file the game-server bot reads.
func (h *Handler) DownloadToken(w http.ResponseWriter, r *http.Request) error {
	u := FromContext(r.Context())
	if u == nil {
		return utilities.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	token, err := h.svc.UpdateUsersBotToken(r.Context(), u)
	if err != nil {
		return err
	}
	h.logger.Infow("bot token issued", "user", u.ID)
	w.Header().Set("Content-Disposition", `attachment; filename="uhcdb.json"`)
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	return nil
}

func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) error {
	uuid, err := utilities.NormalizeUUID(chi.URLParam(r, "minecraftId"))
	if err != nil {
		return err
	}
	name, err := h.svc.Unlink(r.Context(), uuid)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"username": name})
	return nil
}

type discordIDBody struct {
	UUID string `json:"uuid" validate:"required,mcuuid"`
}

func (h *Handler) DiscordID(w http.ResponseWriter, r *http.Request) error {
	var body discordIDBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	uuid, _ := utilities.NormalizeUUID(body.UUID)
	id, err := h.svc.DiscordIDFor(r.Context(), uuid)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]*string{"discordId": id})
	return nil
}

type discordIDsBody struct {
	UUIDs []string `json:"uuids" validate:"required,dive,mcuuid"`
}

// DiscordIDs answers with an object keyed by the uuids as sent.
func (h *Handler) DiscordIDs(w http.ResponseWriter, r *http.Request) error {
	var body discordIDsBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	normalized := make([]string, len(body.UUIDs))
	for i, raw := range body.UUIDs {
		normalized[i], _ = utilities.NormalizeUUID(raw)
	}
	ids, err := h.svc.DiscordIDsFor(r.Context(), normalized)
	if err != nil {
		return err
	}
	out := make(map[string]*string, len(body.UUIDs))
	for i, raw := range body.UUIDs {
		out[raw] = ids[normalized[i]]
	}
	utilities.WriteJSON(w, http.StatusOK, out)
	return nil
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(http.StatusOK)
	return nil
}
