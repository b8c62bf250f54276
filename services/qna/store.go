package qna

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by the store and the service.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAlreadyAnswered      = errors.New("question already answered")
	ErrNotRecipient         = errors.New("question belongs to another recipient")
	ErrValidation           = errors.New("validation error")
	ErrSecurityRestricted   = errors.New("recipient does not accept this kind of question")
	ErrSubscriptionNotFound = errors.New("push subscription not found")
)

// Store is the persistence surface the service operates on.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserBySubject(ctx context.Context, subjectID string) (User, error)
	UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)

	InsertQuestion(ctx context.Context, question Question) (Question, error)
	Question(ctx context.Context, id int64) (Question, error)
	AnswerForQuestion(ctx context.Context, questionID int64) (Answer, bool, error)
	UnansweredByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]Question, error)
	AnsweredByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]AnsweredQuestion, error)
	SentBySender(ctx context.Context, senderID uuid.UUID, limit int) ([]Question, error)
	SoftDeleteQuestion(ctx context.Context, id int64, now time.Time) error
	CountAnsweredCreatedAtOrBefore(ctx context.Context, recipientID uuid.UUID, createdAt time.Time) (int64, error)
	AnsweredIdentified(ctx context.Context, recipientID uuid.UUID) ([]Question, error)

	RecentAnswers(ctx context.Context, limit int) ([]FeedItem, error)
	AnswerCount(ctx context.Context) (int64, error)
	Stat(ctx context.Context, key string) (Stat, error)
	UpsertStat(ctx context.Context, key string, count int64, now time.Time) error

	SavePushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error
	PushSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]PushSubscription, error)

	RecipientsWithAnswers(ctx context.Context) ([]uuid.UUID, error)
	AnsweredTimeline(ctx context.Context, recipientID uuid.UUID) ([]TimelineEntry, error)
	NormalizeUnanswered(ctx context.Context) (int64, error)

	// InTx runs fn inside one transaction; mutations for a recipient's
	// counter and question rows serialize against concurrent callers.
	InTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}

// TxStore is the transaction-scoped mutation surface used by the sequencer
// and the backfill jobs.
type TxStore interface {
	// QuestionForUpdate loads a question and locks its row for the duration
	// of the transaction.
	QuestionForUpdate(ctx context.Context, questionID int64) (Question, error)
	InsertAnswer(ctx context.Context, questionID int64, content string, now time.Time) (Answer, error)
	// NextAnswerNumber atomically increments the recipient's answered
	// counter and returns the new value.
	NextAnswerNumber(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkAnswered(ctx context.Context, questionID, answerID int64, answeredAt time.Time, number int64) error
	UpdateAnswerNumbering(ctx context.Context, questionID int64, answeredAt time.Time, number int64) error
	// SetAnsweredSequence pins the recipient's counter, reporting whether
	// the stored value changed.
	SetAnsweredSequence(ctx context.Context, recipientID uuid.UUID, sequence int64) (bool, error)
}

// TimelineEntry is one answered question together with its answer's
// creation time, the ordering key for answer numbering.
type TimelineEntry struct {
	Question   Question
	AnsweredAt time.Time
}
