// Package qna implements the question-and-answer domain: users, questions,
// answers, the answer-numbering sequencer, and the repair jobs that keep the
// denormalized numbering consistent.
package qna

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxContentRunes  = 1000
	defaultListLimit = 100
	defaultFeedLimit = 20
)

// Service owns the question/answer business rules over a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the domain service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// RegisterInput describes a new profile.
type RegisterInput struct {
	Username  string
	SubjectID string
	Locale    string
	Security  string
}

// Register creates a user profile for an authenticated subject.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	if in.Username == "" || len(in.Username) > 50 {
		return User{}, fmt.Errorf("%w: username must be 1-50 characters", ErrValidation)
	}
	if strings.TrimSpace(in.SubjectID) == "" {
		return User{}, fmt.Errorf("%w: subject id is required", ErrValidation)
	}
	if in.Locale == "" {
		in.Locale = "ko"
	}
	if in.Security == "" {
		in.Security = SecurityAnyone
	}
	if !validSecurity(in.Security) {
		return User{}, fmt.Errorf("%w: unknown question security level %q", ErrValidation, in.Security)
	}

	now := s.now().UTC()
	return s.store.CreateUser(ctx, User{
		ID:               uuid.New(),
		Username:         in.Username,
		SubjectID:        in.SubjectID,
		Locale:           in.Locale,
		QuestionSecurity: in.Security,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

// UserByUsername looks up a public profile.
func (s *Service) UserByUsername(ctx context.Context, username string) (User, error) {
	return s.store.UserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
}

// UserByID looks up a profile by id.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return s.store.UserByID(ctx, id)
}

// UserBySubject resolves the profile belonging to an authenticated subject.
func (s *Service) UserBySubject(ctx context.Context, subjectID string) (User, error) {
	return s.store.UserBySubject(ctx, subjectID)
}

// AskInput describes a new question. SenderID is nil for signed-out askers.
type AskInput struct {
	RecipientID uuid.UUID
	SenderID    *uuid.UUID
	Content     string
	IsAnonymous bool
}

// Ask records a question for a recipient, honoring the recipient's question
// security level.
func (s *Service) Ask(ctx context.Context, in AskInput) (Question, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return Question{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(in.Content) > maxContentRunes {
		return Question{}, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, maxContentRunes)
	}

	recipient, err := s.store.UserByID(ctx, in.RecipientID)
	if err != nil {
		return Question{}, err
	}

	switch recipient.QuestionSecurity {
	case SecurityVerifiedAnonymous:
		// Anonymous display is fine, but the asker must be signed in.
		if in.SenderID == nil {
			return Question{}, ErrSecurityRestricted
		}
	case SecurityPublicOnly:
		if in.SenderID == nil || in.IsAnonymous {
			return Question{}, ErrSecurityRestricted
		}
	}

	return s.store.InsertQuestion(ctx, Question{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Content:     in.Content,
		IsAnonymous: in.IsAnonymous,
		CreatedAt:   s.now().UTC(),
	})
}

// Question returns one question, answered or not.
func (s *Service) Question(ctx context.Context, id int64) (Question, error) {
	return s.store.Question(ctx, id)
}

// QuestionWithAnswer returns a question and, when present, its answer.
func (s *Service) QuestionWithAnswer(ctx context.Context, id int64) (Question, *Answer, error) {
	question, err := s.store.Question(ctx, id)
	if err != nil {
		return Question{}, nil, err
	}

	answer, ok, err := s.store.AnswerForQuestion(ctx, id)
	if err != nil {
		return Question{}, nil, err
	}
	if !ok {
		return question, nil, nil
	}
	return question, &answer, nil
}

// Inbox lists a recipient's unanswered questions, newest first.
func (s *Service) Inbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]Question, error) {
	return s.store.UnansweredByRecipient(ctx, recipientID, normalizeLimit(limit, defaultListLimit))
}

// Answered lists a recipient's answered questions, newest first.
func (s *Service) Answered(ctx context.Context, recipientID uuid.UUID, limit int) ([]AnsweredQuestion, error) {
	return s.store.AnsweredByRecipient(ctx, recipientID, normalizeLimit(limit, defaultListLimit))
}

// Sent lists questions a signed-in sender has asked, newest first.
func (s *Service) Sent(ctx context.Context, senderID uuid.UUID, limit int) ([]Question, error) {
	return s.store.SentBySender(ctx, senderID, normalizeLimit(limit, defaultListLimit))
}

// DeleteQuestion soft-deletes a question. Only the recipient may remove a
// question from their inbox.
func (s *Service) DeleteQuestion(ctx context.Context, id int64, callerID uuid.UUID) error {
	question, err := s.store.Question(ctx, id)
	if err != nil {
		return err
	}
	if question.RecipientID != callerID {
		return ErrNotRecipient
	}
	return s.store.SoftDeleteQuestion(ctx, id, s.now().UTC())
}

// Feed returns the most recent answered pairs across all recipients.
func (s *Service) Feed(ctx context.Context, limit int) ([]FeedItem, error) {
	return s.store.RecentAnswers(ctx, normalizeLimit(limit, defaultFeedLimit))
}

// AnswerStats returns the global answered counter.
func (s *Service) AnswerStats(ctx context.Context) (Stat, error) {
	return s.store.Stat(ctx, StatAnswers)
}

// SubscribePush registers a Web Push endpoint for a user.
func (s *Service) SubscribePush(ctx context.Context, userID uuid.UUID, endpoint, p256dh, auth string) (PushSubscription, error) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(p256dh) == "" || strings.TrimSpace(auth) == "" {
		return PushSubscription{}, fmt.Errorf("%w: endpoint and keys are required", ErrValidation)
	}
	return s.store.SavePushSubscription(ctx, PushSubscription{
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: s.now().UTC(),
	})
}

// UnsubscribePush removes a previously registered endpoint.
func (s *Service) UnsubscribePush(ctx context.Context, userID uuid.UUID, endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrValidation)
	}
	return s.store.DeletePushSubscription(ctx, userID, endpoint)
}

// PushSubscriptions lists a user's registered endpoints.
func (s *Service) PushSubscriptions(ctx context.Context, userID uuid.UUID) ([]PushSubscription, error) {
	return s.store.PushSubscriptionsByUser(ctx, userID)
}

func validSecurity(level string) bool {
	switch level {
	case SecurityAnyone, SecurityVerifiedAnonymous, SecurityPublicOnly:
		return true
	default:
		return false
	}
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
