package season

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/season/entity"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// Handler contains dependencies for handling season endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type seasonBody struct {
	Logo     *string `json:"logo" validate:"required"`
	Color    *int64  `json:"color" validate:"required"`
	Champion *string `json:"champion"`
}

func (h *Handler) Put(w http.ResponseWriter, r *http.Request) error {
	number, err := utilities.IntParam(r, "id")
	if err != nil {
		return err
	}
	var body seasonBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	in := entity.Season{Logo: *body.Logo, Color: *body.Color, Champion: body.Champion}
	if err := h.svc.UpdateSeason(r.Context(), number, in); err != nil {
		return err
	}
	h.logger.Infow("season updated", "season", number)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	number, err := utilities.IntParam(r, "id")
	if err != nil {
		return err
	}
	s, err := h.svc.GetSeason(r.Context(), number)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, s)
	return nil
}
