package handlers

import (
	"net/http"

	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Finalize godoc
// @Summary Record a match result
// @Tags matches
// @Description Finalizes the match, advances the winner into the next
// @Description round, scores submitted picks, and finalizes the round once
// @Description its last match is decided.
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body models.FinalizeMatchInput true "Result"
// @Success 200 {object} map[string]interface{} "Finalized match"
// @Failure 400 {object} map[string]string "Winner or score invalid"
// @Failure 409 {object} map[string]string "Match already finalized or is a bye"
// @Security BearerAuth
// @Router /matches/{matchID}/finalize [post]
func (h *MatchHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input models.FinalizeMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.FinalizeMatch(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Unfinalize godoc
// @Summary Revert a match result
// @Tags matches
// @Description Returns the match to pending, retracts the winner from the
// @Description next round, and clears any points scored for it.
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{} "Reverted match"
// @Failure 409 {object} map[string]string "Match not finalized, is a bye, or winner already advanced"
// @Security BearerAuth
// @Router /matches/{matchID}/unfinalize [post]
func (h *MatchHandler) Unfinalize(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UnfinalizeMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
