package qna

import (
	"time"

	"github.com/google/uuid"
)

// Question security levels control who may ask a recipient questions.
const (
	SecurityAnyone            = "anyone"
	SecurityVerifiedAnonymous = "verified_anonymous"
	SecurityPublicOnly        = "public_only"
)

// User is a registered recipient of questions. AnsweredSequence is the
// denormalized count of questions the user has answered, used to assign the
// next answer ordinal without rescanning history.
type User struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Username         string    `json:"username" db:"username"`
	SubjectID        string    `json:"-" db:"subject_id"`
	Locale           string    `json:"locale" db:"locale"`
	QuestionSecurity string    `json:"question_security" db:"question_security"`
	AnsweredSequence int64     `json:"-" db:"answered_sequence"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Question is one asked question. A nil SenderID means the asker was not
// signed in; IsAnonymous controls whether an identified sender is displayed.
// AnswerNumber is set if and only if AnswerID is set, and AnsweredAt equals
// the linked answer's creation time.
type Question struct {
	ID           int64      `json:"id" db:"id"`
	RecipientID  uuid.UUID  `json:"recipient_id" db:"recipient_id"`
	SenderID     *uuid.UUID `json:"sender_id,omitempty" db:"sender_id"`
	Content      string     `json:"content" db:"content"`
	IsAnonymous  bool       `json:"is_anonymous" db:"is_anonymous"`
	AnswerID     *int64     `json:"answer_id,omitempty" db:"answer_id"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	AnswerNumber *int64     `json:"answer_number,omitempty" db:"answer_number"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeletedAt    *time.Time `json:"-" db:"deleted_at"`
}

// AuditEntityID links a created question into the audit trail.
func (q Question) AuditEntityID() int64 { return q.ID }

// Answer resolves exactly one question.
type Answer struct {
	ID         int64      `json:"id" db:"id"`
	QuestionID int64      `json:"question_id" db:"question_id"`
	Content    string     `json:"content" db:"content"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	DeletedAt  *time.Time `json:"-" db:"deleted_at"`
}

// AuditEntityID links a created answer into the audit trail.
func (a Answer) AuditEntityID() int64 { return a.ID }

// AnsweredQuestion pairs a question with its answer for feed and profile
// listings.
type AnsweredQuestion struct {
	Question Question `json:"question"`
	Answer   Answer   `json:"answer"`
}

// FeedItem is one public feed entry.
type FeedItem struct {
	Question          Question `json:"question"`
	Answer            Answer   `json:"answer"`
	RecipientUsername string   `json:"recipient_username"`
}

// Friend is an identified sender the recipient has exchanged answered
// questions with.
type Friend struct {
	User      User      `json:"user"`
	Exchanged int64     `json:"exchanged"`
	LastAsked time.Time `json:"last_asked"`
}

// PushSubscription is one Web Push endpoint registered by a user.
type PushSubscription struct {
	ID        int64     `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	P256dh    string    `json:"p256dh" db:"p256dh"`
	Auth      string    `json:"auth" db:"auth"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Stat is a named global counter.
type Stat struct {
	Key       string    `json:"key" db:"key"`
	Count     int64     `json:"count" db:"count"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StatAnswers is the stats row tracking the global answered count.
const StatAnswers = "answers"
