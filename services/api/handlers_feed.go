package api

import (
	"net/http"
)

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	items, err := a.service.Feed(ctx, queryLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleAnswerStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	stat, err := a.service.AnswerStats(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"stat": stat})
}

func (a *API) handlePushKey(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"vapid_public_key": a.pushKey})
}
