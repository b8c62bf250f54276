package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"goongoom/pkg/audit"
	"goongoom/services/qna"
)

func (a *API) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
		Content   string `json:"content"`
		Anonymous bool   `json:"anonymous"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Recipient = strings.TrimSpace(req.Recipient)
	if req.Recipient == "" {
		respondError(w, http.StatusBadRequest, errors.New("recipient is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.limiter.AllowAsk(ctx, clientKey(r)); err != nil {
		respondServiceError(w, err)
		return
	}

	recipient, err := a.service.UserByUsername(ctx, req.Recipient)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	input := qna.AskInput{
		RecipientID: recipient.ID,
		Content:     req.Content,
		IsAnonymous: req.Anonymous,
	}
	if user, ok := userFrom(ctx); ok {
		input.SenderID = &user.ID
	}

	question, err := audit.WithAudit(ctx, a.recorder, audit.Descriptor{
		Action:     "question.create",
		Payload:    req,
		EntityType: audit.EntityQuestion,
	}, func(ctx context.Context) (qna.Question, error) {
		return a.service.Ask(ctx, input)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	a.publishJSON(ctx, questionsTopic, map[string]any{
		"question_id":  question.ID,
		"recipient_id": question.RecipientID,
		"content":      question.Content,
		"is_anonymous": question.IsAnonymous,
		"created_at":   question.CreatedAt,
	})

	respondJSON(w, http.StatusCreated, map[string]any{"question": question})
}

func (a *API) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	recipient := strings.TrimSpace(r.URL.Query().Get("recipient"))
	if recipient == "" {
		respondError(w, http.StatusBadRequest, errors.New("recipient query parameter is required"))
		return
	}
	if r.URL.Query().Get("answered") != "true" {
		respondError(w, http.StatusBadRequest, errors.New("only answered listings are public"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.service.UserByUsername(ctx, recipient)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	answered, err := a.service.Answered(ctx, user.ID, queryLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"questions": answered})
}

func (a *API) handleQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	question, answer, err := a.service.QuestionWithAnswer(ctx, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Unanswered questions are only visible to their recipient.
	if answer == nil {
		user, ok := userFrom(ctx)
		if !ok || user.ID != question.RecipientID {
			respondServiceError(w, qna.ErrQuestionNotFound)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"question": question, "answer": answer})
}

func (a *API) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, err = audit.WithAudit(ctx, a.recorder, audit.Descriptor{
		Action:     "question.delete",
		Payload:    map[string]any{"question_id": id},
		EntityType: audit.EntityQuestion,
	}, func(ctx context.Context) (qna.Question, error) {
		question, err := a.service.Question(ctx, id)
		if err != nil {
			return qna.Question{}, err
		}
		return question, a.service.DeleteQuestion(ctx, id, user.ID)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleInbox(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	questions, err := a.service.Inbox(ctx, user.ID, queryLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (a *API) handleSent(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	questions, err := a.service.Sent(ctx, user.ID, queryLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func questionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("valid question id is required")
	}
	return id, nil
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// clientKey identifies the asker for rate limiting: the profile id when
// signed in, the client address otherwise.
func clientKey(r *http.Request) string {
	if user, ok := userFrom(r.Context()); ok {
		return "user:" + user.ID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
