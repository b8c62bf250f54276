package api

import (
	"net/http"
)

func (a *API) handleSubscribePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
		P256dh   string `json:"p256dh"`
		Auth     string `json:"auth"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	sub, err := a.service.SubscribePush(ctx, user.ID, req.Endpoint, req.P256dh, req.Auth)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"subscription": sub})
}

func (a *API) handleUnsubscribePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.service.UnsubscribePush(ctx, user.ID, req.Endpoint); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListPushSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	subs, err := a.service.PushSubscriptions(ctx, user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}
