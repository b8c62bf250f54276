package api

import (
	"context"
	"net/http"

	"goongoom/pkg/audit"
	"goongoom/services/qna"
)

func (a *API) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var question qna.Question
	answer, err := audit.WithAudit(ctx, a.recorder, audit.Descriptor{
		Action:     "answer.create",
		Payload:    map[string]any{"question_id": id, "content": req.Content},
		EntityType: audit.EntityAnswer,
	}, func(ctx context.Context) (qna.Answer, error) {
		created, updated, err := a.service.AnswerQuestion(ctx, id, user.ID, req.Content)
		if err != nil {
			return qna.Answer{}, err
		}
		question = updated
		return created, nil
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	a.publishJSON(ctx, answersTopic, map[string]any{
		"answer_id":     answer.ID,
		"question_id":   question.ID,
		"recipient_id":  question.RecipientID,
		"answer_number": question.AnswerNumber,
		"content":       answer.Content,
		"created_at":    answer.CreatedAt,
	})

	respondJSON(w, http.StatusCreated, map[string]any{"answer": answer, "question": question})
}

func (a *API) handleAnswerNumber(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	question, err := a.service.Question(ctx, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	ordinal, err := a.service.AnsweredOrdinal(ctx, id, question.RecipientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"question_id": id, "number": ordinal})
}
