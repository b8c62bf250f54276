package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"goongoom/services/qna"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondServiceError maps domain sentinel errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, errorStatus(err), err)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, qna.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, qna.ErrUserNotFound),
		errors.Is(err, qna.ErrQuestionNotFound),
		errors.Is(err, qna.ErrSubscriptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, qna.ErrUsernameTaken),
		errors.Is(err, qna.ErrAlreadyAnswered):
		return http.StatusConflict
	case errors.Is(err, qna.ErrNotRecipient),
		errors.Is(err, qna.ErrSecurityRestricted):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
