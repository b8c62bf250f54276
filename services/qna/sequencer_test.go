package qna

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store Store) *Service {
	svc := NewService(store)
	svc.now = func() time.Time { return testBase }
	return svc
}

func seedUser(t *testing.T, store *memStore, username string) User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), User{
		ID:               uuid.New(),
		Username:         username,
		SubjectID:        "subject-" + username,
		Locale:           "ko",
		QuestionSecurity: SecurityAnyone,
		CreatedAt:        testBase,
		UpdatedAt:        testBase,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedQuestion(t *testing.T, store *memStore, recipientID uuid.UUID, content string, createdAt time.Time) Question {
	t.Helper()
	question, err := store.InsertQuestion(context.Background(), Question{
		RecipientID: recipientID,
		Content:     content,
		IsAnonymous: true,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return question
}

func TestAnswerQuestionAssignsFirstOrdinal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")
	question := seedQuestion(t, store, recipient.ID, "favorite song?", testBase)

	answer, updated, err := svc.AnswerQuestion(context.Background(), question.ID, recipient.ID, "this one")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if answer.QuestionID != question.ID {
		t.Errorf("answer.QuestionID = %d, want %d", answer.QuestionID, question.ID)
	}
	if updated.AnswerID == nil || *updated.AnswerID != answer.ID {
		t.Errorf("question.AnswerID = %v, want %d", updated.AnswerID, answer.ID)
	}
	if updated.AnswerNumber == nil || *updated.AnswerNumber != 1 {
		t.Errorf("question.AnswerNumber = %v, want 1", updated.AnswerNumber)
	}
	if updated.AnsweredAt == nil || !updated.AnsweredAt.Equal(answer.CreatedAt) {
		t.Errorf("question.AnsweredAt = %v, want %v", updated.AnsweredAt, answer.CreatedAt)
	}

	stored, err := store.UserByID(context.Background(), recipient.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if stored.AnsweredSequence != 1 {
		t.Errorf("answered_sequence = %d, want 1", stored.AnsweredSequence)
	}
}

func TestAnswerQuestionConcurrentOrdinalsAreGapless(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")

	const n = 16
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = seedQuestion(t, store, recipient.ID, fmt.Sprintf("q%d", i), testBase.Add(time.Duration(i)*time.Second))
	}

	numbers := make([]int64, n)
	var wg sync.WaitGroup
	for i := range questions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, updated, err := svc.AnswerQuestion(context.Background(), questions[i].ID, recipient.ID, "answered")
			if err != nil {
				t.Errorf("AnswerQuestion %d: %v", i, err)
				return
			}
			numbers[i] = *updated.AnswerNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for i, number := range numbers {
		if number < 1 || number > n {
			t.Errorf("question %d got ordinal %d, want within [1, %d]", i, number, n)
		}
		if seen[number] {
			t.Errorf("ordinal %d assigned twice", number)
		}
		seen[number] = true
	}

	stored, err := store.UserByID(context.Background(), recipient.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if stored.AnsweredSequence != n {
		t.Errorf("answered_sequence = %d, want %d", stored.AnsweredSequence, n)
	}
}

func TestAnswerQuestionRejections(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")
	other := seedUser(t, store, "june")

	answered := seedQuestion(t, store, recipient.ID, "answered already", testBase)
	if _, _, err := svc.AnswerQuestion(context.Background(), answered.ID, recipient.ID, "done"); err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	deleted := seedQuestion(t, store, recipient.ID, "gone", testBase)
	if err := svc.DeleteQuestion(context.Background(), deleted.ID, recipient.ID); err != nil {
		t.Fatalf("seed delete: %v", err)
	}

	open := seedQuestion(t, store, recipient.ID, "still open", testBase)

	tests := []struct {
		name       string
		questionID int64
		callerID   uuid.UUID
		content    string
		wantErr    error
	}{
		{"already answered", answered.ID, recipient.ID, "again", ErrAlreadyAnswered},
		{"not the recipient", open.ID, other.ID, "mine now", ErrNotRecipient},
		{"soft deleted", deleted.ID, recipient.ID, "too late", ErrQuestionNotFound},
		{"missing question", 9999, recipient.ID, "hello", ErrQuestionNotFound},
		{"blank content", open.ID, recipient.ID, "   ", ErrValidation},
		{"oversized content", open.ID, recipient.ID, strings.Repeat("a", maxContentRunes+1), ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.AnswerQuestion(context.Background(), tc.questionID, tc.callerID, tc.content)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// Rejected calls must not consume ordinals.
	stored, err := store.UserByID(context.Background(), recipient.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if stored.AnsweredSequence != 1 {
		t.Errorf("answered_sequence = %d, want 1", stored.AnsweredSequence)
	}
}

func TestAnsweredOrdinal(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")

	first := seedQuestion(t, store, recipient.ID, "first", testBase)
	middle := seedQuestion(t, store, recipient.ID, "middle", testBase.Add(time.Minute))
	last := seedQuestion(t, store, recipient.ID, "last", testBase.Add(2*time.Minute))

	// Answer the first and last questions; the middle one stays open.
	for _, q := range []Question{first, last} {
		if _, _, err := svc.AnswerQuestion(context.Background(), q.ID, recipient.ID, "answered"); err != nil {
			t.Fatalf("AnswerQuestion: %v", err)
		}
	}

	other := seedUser(t, store, "june")

	tests := []struct {
		name        string
		questionID  int64
		recipientID uuid.UUID
		want        int64
	}{
		{"earliest answered", first.ID, recipient.ID, 1},
		// Counts answered questions created at or before, so the later
		// created but second answered question reports 2.
		{"latest answered", last.ID, recipient.ID, 2},
		{"unanswered", middle.ID, recipient.ID, 0},
		{"missing", 9999, recipient.ID, 0},
		{"another recipient's question", first.ID, other.ID, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.AnsweredOrdinal(context.Background(), tc.questionID, tc.recipientID)
			if err != nil {
				t.Fatalf("AnsweredOrdinal: %v", err)
			}
			if got != tc.want {
				t.Errorf("ordinal = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAnsweredOrdinalCountsByCreationNotAnswerOrder(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")

	early := seedQuestion(t, store, recipient.ID, "asked first", testBase)
	late := seedQuestion(t, store, recipient.ID, "asked second", testBase.Add(time.Minute))

	// Answer in reverse creation order: the later created question gets
	// answer number 1, the earlier one number 2.
	_, lateQ, err := svc.AnswerQuestion(context.Background(), late.ID, recipient.ID, "answered first")
	if err != nil {
		t.Fatalf("AnswerQuestion late: %v", err)
	}
	_, earlyQ, err := svc.AnswerQuestion(context.Background(), early.ID, recipient.ID, "answered second")
	if err != nil {
		t.Fatalf("AnswerQuestion early: %v", err)
	}
	if *lateQ.AnswerNumber != 1 || *earlyQ.AnswerNumber != 2 {
		t.Fatalf("answer numbers = %d, %d, want 1, 2", *lateQ.AnswerNumber, *earlyQ.AnswerNumber)
	}

	// The displayed ordinal follows creation time, not answer time, so it
	// diverges from the stored answer numbers.
	got, err := svc.AnsweredOrdinal(context.Background(), early.ID, recipient.ID)
	if err != nil {
		t.Fatalf("AnsweredOrdinal early: %v", err)
	}
	if got != 1 {
		t.Errorf("ordinal(early) = %d, want 1", got)
	}

	got, err = svc.AnsweredOrdinal(context.Background(), late.ID, recipient.ID)
	if err != nil {
		t.Fatalf("AnsweredOrdinal late: %v", err)
	}
	if got != 2 {
		t.Errorf("ordinal(late) = %d, want 2", got)
	}
}
