package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"goongoom/services/qna"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{qna.ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: content is required", qna.ErrValidation), http.StatusBadRequest},
		{qna.ErrUserNotFound, http.StatusNotFound},
		{qna.ErrQuestionNotFound, http.StatusNotFound},
		{qna.ErrSubscriptionNotFound, http.StatusNotFound},
		{qna.ErrUsernameTaken, http.StatusConflict},
		{qna.ErrAlreadyAnswered, http.StatusConflict},
		{qna.ErrNotRecipient, http.StatusForbidden},
		{qna.ErrSecurityRestricted, http.StatusForbidden},
		{ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := errorStatus(tc.err); got != tc.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
