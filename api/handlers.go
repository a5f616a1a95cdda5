package api

import (
	"encoding/json"
	"net/http"

	"github.com/jmcleod/studydeck/apiclient"
)

// GetMe returns the account summary.
func (a *API) GetMe(w http.ResponseWriter, r *http.Request) {
	me, err := a.backend.GetMe(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// GetDueCards lists cards due for review.
func (a *API) GetDueCards(w http.ResponseWriter, r *http.Request) {
	cards, err := a.backend.GetDueCards(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cards))
}

// GetPracticeCards lists the practice queue.
func (a *API) GetPracticeCards(w http.ResponseWriter, r *http.Request) {
	cards, err := a.backend.GetPracticeCards(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cards))
}

// ReviewCard records a review grade.
func (a *API) ReviewCard(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ReviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CardID == "" {
		writeError(w, http.StatusBadRequest, "card_id is required")
		return
	}
	card, err := a.backend.ReviewCard(r.Context(), req.CardID, req.Rating)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// GetDashboardSummary returns aggregate study progress.
func (a *API) GetDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.backend.GetDashboardSummary(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetTopics lists the study topics.
func (a *API) GetTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := a.backend.GetTopics(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(topics))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
