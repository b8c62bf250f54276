package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"goongoom/services/qna"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	subject := subjectFrom(r.Context())
	if subject == "" {
		respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	var req struct {
		Username string `json:"username"`
		Locale   string `json:"locale"`
		Security string `json:"question_security"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.service.Register(ctx, qna.RegisterInput{
		Username:  req.Username,
		SubjectID: subject,
		Locale:    req.Locale,
		Security:  req.Security,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		respondError(w, http.StatusBadRequest, errors.New("username is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.service.UserByUsername(ctx, username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleFriends(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		respondError(w, http.StatusBadRequest, errors.New("username is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.service.UserByUsername(ctx, username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	friends, err := a.service.Friends(ctx, user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"friends": friends})
}
