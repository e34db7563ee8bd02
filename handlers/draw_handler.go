package handlers

import (
	"errors"
	"net/http"

	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/services"
)

type DrawHandler struct {
	drawService services.DrawService
}

func NewDrawHandler(drawService services.DrawService) *DrawHandler {
	return &DrawHandler{drawService: drawService}
}

// CommitDraw godoc
// @Summary Commit a parsed draw as a new tournament
// @Tags tournaments
// @Description Creates the tournament, all rounds and matches in one
// @Description transaction, resolves byes and pre-recorded results, and
// @Description advances their winners into the following rounds.
// @Accept json
// @Produce json
// @Param input body models.CommitDrawInput true "Parsed draw with tournament settings"
// @Success 201 {object} map[string]interface{} "Created tournament"
// @Failure 400 {object} map[string]string "Malformed draw"
// @Failure 409 {object} map[string]string "Draw already committed for this name and year"
// @Security BearerAuth
// @Router /tournaments/draw [post]
func (h *DrawHandler) CommitDraw(w http.ResponseWriter, r *http.Request) {
	var input models.CommitDrawInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if len(input.Draw.Rounds) == 0 {
		badRequestResponse(w, r, errors.New("draw must contain at least one round"))
		return
	}

	tournament, err := h.drawService.CommitDraw(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
