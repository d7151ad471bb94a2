package summary

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// Handler exposes the summary store over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Upload stores a summary sent by the game-server bot.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) error {
	var body summaryBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	in, err := body.input()
	if err != nil {
		return err
	}
	id, err := h.svc.UploadSummary(r.Context(), in)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
	return nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	page, err := h.svc.GetSummaryCursor(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	s, err := h.svc.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, s)
	return nil
}

// Edit applies a changed client summary to the draft named in the path.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	var body summaryBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	if body.ID != "" && body.ID != id {
		return utilities.NewHTTPError(http.StatusBadRequest, "id does not match path")
	}
	body.ID = id
	changed, err := body.client()
	if err != nil {
		return err
	}
	res, err := h.svc.EditSummary(r.Context(), changed)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	if err := h.svc.DeleteSummary(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) error {
	var body publishBody
	if err := utilities.DecodeJSON(r.Body, &body); err != nil {
		return err
	}
	target := PublishTarget{Season: *body.Season, Game: *body.Game}
	if err := h.svc.PublishSummary(r.Context(), chi.URLParam(r, "id"), target); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) error {
	season, err := utilities.IntParam(r, "season")
	if err != nil {
		return err
	}
	game, err := utilities.IntParam(r, "game")
	if err != nil {
		return err
	}
	id, err := h.svc.UnpublishSummary(r.Context(), season, game)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
	return nil
}

// SeasonSummaries lists the headers published in the season in the path.
func (h *Handler) SeasonSummaries(w http.ResponseWriter, r *http.Request) error {
	season, err := utilities.IntParam(r, "id")
	if err != nil {
		return err
	}
	headers, err := h.svc.GetSeasonSummaries(r.Context(), season)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, headers)
	return nil
}

func (h *Handler) PublishedSummary(w http.ResponseWriter, r *http.Request) error {
	season, err := utilities.IntParam(r, "id")
	if err != nil {
		return err
	}
	game, err := utilities.IntParam(r, "game")
	if err != nil {
		return err
	}
	s, err := h.svc.GetPublishedSummary(r.Context(), season, game)
	if err != nil {
		return err
	}
	utilities.WriteJSON(w, http.StatusOK, s)
	return nil
}
