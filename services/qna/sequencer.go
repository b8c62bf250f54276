package qna

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// AnswerQuestion creates the answer for a question and assigns its
// recipient-scoped ordinal. The whole assignment runs in one transaction:
// the question row is locked, the answer inserted, the recipient's
// answered_sequence incremented atomically, and the question patched with
// the answer reference, answered time, and the new ordinal. Concurrent
// answers for one recipient therefore receive distinct, gapless ordinals;
// a second answer for the same question fails with ErrAlreadyAnswered.
func (s *Service) AnswerQuestion(ctx context.Context, questionID int64, callerID uuid.UUID, content string) (Answer, Question, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Answer{}, Question{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return Answer{}, Question{}, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, maxContentRunes)
	}

	var (
		answer   Answer
		question Question
	)

	err := s.store.InTx(ctx, func(ctx context.Context, tx TxStore) error {
		q, err := tx.QuestionForUpdate(ctx, questionID)
		if err != nil {
			return err
		}
		if q.DeletedAt != nil {
			return ErrQuestionNotFound
		}
		if q.RecipientID != callerID {
			return ErrNotRecipient
		}
		if q.AnswerID != nil {
			return ErrAlreadyAnswered
		}

		a, err := tx.InsertAnswer(ctx, q.ID, content, s.now().UTC())
		if err != nil {
			return err
		}

		number, err := tx.NextAnswerNumber(ctx, q.RecipientID)
		if err != nil {
			return err
		}

		if err := tx.MarkAnswered(ctx, q.ID, a.ID, a.CreatedAt, number); err != nil {
			return err
		}

		q.AnswerID = &a.ID
		q.AnsweredAt = &a.CreatedAt
		q.AnswerNumber = &number
		answer, question = a, q
		return nil
	})
	if err != nil {
		return Answer{}, Question{}, err
	}

	return answer, question, nil
}

// AnsweredOrdinal reports which ordinal position a question holds among the
// recipient's answered questions, 1-based; 0 when the question is missing,
// unanswered, or belongs to a different recipient.
//
// The position counts answered questions whose creation time is at or
// before the target's creation time. That mixes question creation order
// with answered status rather than ordering strictly by answer time; the
// behaviour is kept as observed so displayed numbers stay stable.
func (s *Service) AnsweredOrdinal(ctx context.Context, questionID int64, recipientID uuid.UUID) (int64, error) {
	question, err := s.store.Question(ctx, questionID)
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if question.RecipientID != recipientID {
		return 0, nil
	}
	if question.AnswerID == nil {
		return 0, nil
	}

	return s.store.CountAnsweredCreatedAtOrBefore(ctx, recipientID, question.CreatedAt)
}
