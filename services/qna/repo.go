package qna

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"goongoom/pkg/db"
)

const uniqueViolation = "23505"

// PG implements Store over a pgx connection pool.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG constructs the Postgres-backed store.
func NewPG(pool *pgxpool.Pool) (*PG, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PG{pool: pool}, nil
}

const userColumns = `id, username, subject_id, locale, question_security, answered_sequence, created_at, updated_at`

func (p *PG) CreateUser(ctx context.Context, user User) (User, error) {
	var created User
	err := db.Get(ctx, p.pool, &created, `
INSERT INTO users (id, username, subject_id, locale, question_security, answered_sequence, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
RETURNING `+userColumns+`
`, user.ID, user.Username, user.SubjectID, user.Locale, user.QuestionSecurity, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}
	return created, nil
}

func (p *PG) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return p.userBy(ctx, `id = $1`, id)
}

func (p *PG) UserByUsername(ctx context.Context, username string) (User, error) {
	return p.userBy(ctx, `username = $1`, username)
}

func (p *PG) UserBySubject(ctx context.Context, subjectID string) (User, error) {
	return p.userBy(ctx, `subject_id = $1`, subjectID)
}

func (p *PG) userBy(ctx context.Context, where string, arg any) (User, error) {
	var user User
	err := db.Get(ctx, p.pool, &user, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (p *PG) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	var users []User
	err := db.Select(ctx, p.pool, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return users, nil
}

const questionColumns = `id, recipient_id, sender_id, content, is_anonymous, answer_id, answered_at, answer_number, created_at, deleted_at`

func (p *PG) InsertQuestion(ctx context.Context, question Question) (Question, error) {
	var created Question
	err := db.Get(ctx, p.pool, &created, `
INSERT INTO questions (recipient_id, sender_id, content, is_anonymous, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+questionColumns+`
`, question.RecipientID, question.SenderID, question.Content, question.IsAnonymous, question.CreatedAt)
	if err != nil {
		return Question{}, err
	}
	return created, nil
}

func (p *PG) Question(ctx context.Context, id int64) (Question, error) {
	var question Question
	err := db.Get(ctx, p.pool, &question, `
SELECT `+questionColumns+` FROM questions WHERE id = $1 AND deleted_at IS NULL
`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, err
	}
	return question, nil
}

func (p *PG) AnswerForQuestion(ctx context.Context, questionID int64) (Answer, bool, error) {
	var answer Answer
	err := db.Get(ctx, p.pool, &answer, `
SELECT id, question_id, content, created_at, deleted_at
FROM answers
WHERE question_id = $1 AND deleted_at IS NULL
`, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Answer{}, false, nil
		}
		return Answer{}, false, err
	}
	return answer, true, nil
}

func (p *PG) UnansweredByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]Question, error) {
	var questions []Question
	err := db.Select(ctx, p.pool, &questions, `
SELECT `+questionColumns+`
FROM questions
WHERE recipient_id = $1 AND deleted_at IS NULL AND answer_id IS NULL
ORDER BY created_at DESC
LIMIT $2
`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

type answeredRow struct {
	Question
	AID        int64     `db:"a_id"`
	AContent   string    `db:"a_content"`
	ACreatedAt time.Time `db:"a_created_at"`
}

func (r answeredRow) toAnswered() AnsweredQuestion {
	return AnsweredQuestion{
		Question: r.Question,
		Answer: Answer{
			ID:         r.AID,
			QuestionID: r.Question.ID,
			Content:    r.AContent,
			CreatedAt:  r.ACreatedAt,
		},
	}
}

func (p *PG) AnsweredByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]AnsweredQuestion, error) {
	var rows []answeredRow
	err := db.Select(ctx, p.pool, &rows, `
SELECT q.id, q.recipient_id, q.sender_id, q.content, q.is_anonymous, q.answer_id,
       q.answered_at, q.answer_number, q.created_at, q.deleted_at,
       a.id AS a_id, a.content AS a_content, a.created_at AS a_created_at
FROM questions q
JOIN answers a ON a.id = q.answer_id AND a.deleted_at IS NULL
WHERE q.recipient_id = $1 AND q.deleted_at IS NULL
ORDER BY q.created_at DESC
LIMIT $2
`, recipientID, limit)
	if err != nil {
		return nil, err
	}

	answered := make([]AnsweredQuestion, 0, len(rows))
	for _, row := range rows {
		answered = append(answered, row.toAnswered())
	}
	return answered, nil
}

func (p *PG) SentBySender(ctx context.Context, senderID uuid.UUID, limit int) ([]Question, error) {
	var questions []Question
	err := db.Select(ctx, p.pool, &questions, `
SELECT `+questionColumns+`
FROM questions
WHERE sender_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2
`, senderID, limit)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (p *PG) SoftDeleteQuestion(ctx context.Context, id int64, now time.Time) error {
	tag, err := db.Exec(ctx, p.pool, `
UPDATE questions SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL
`, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (p *PG) CountAnsweredCreatedAtOrBefore(ctx context.Context, recipientID uuid.UUID, createdAt time.Time) (int64, error) {
	var count int64
	err := db.Get(ctx, p.pool, &count, `
SELECT count(*)
FROM questions
WHERE recipient_id = $1 AND deleted_at IS NULL AND answer_id IS NOT NULL AND created_at <= $2
`, recipientID, createdAt)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (p *PG) AnsweredIdentified(ctx context.Context, recipientID uuid.UUID) ([]Question, error) {
	var questions []Question
	err := db.Select(ctx, p.pool, &questions, `
SELECT `+questionColumns+`
FROM questions
WHERE recipient_id = $1 AND deleted_at IS NULL AND answer_id IS NOT NULL
  AND sender_id IS NOT NULL AND is_anonymous = false
`, recipientID)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

type feedRow struct {
	answeredRow
	RecipientUsername string `db:"recipient_username"`
}

func (p *PG) RecentAnswers(ctx context.Context, limit int) ([]FeedItem, error) {
	var rows []feedRow
	err := db.Select(ctx, p.pool, &rows, `
SELECT q.id, q.recipient_id, q.sender_id, q.content, q.is_anonymous, q.answer_id,
       q.answered_at, q.answer_number, q.created_at, q.deleted_at,
       a.id AS a_id, a.content AS a_content, a.created_at AS a_created_at,
       u.username AS recipient_username
FROM answers a
JOIN questions q ON q.id = a.question_id AND q.deleted_at IS NULL
JOIN users u ON u.id = q.recipient_id
WHERE a.deleted_at IS NULL
ORDER BY a.created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(rows))
	for _, row := range rows {
		answered := row.toAnswered()
		items = append(items, FeedItem{
			Question:          answered.Question,
			Answer:            answered.Answer,
			RecipientUsername: row.RecipientUsername,
		})
	}
	return items, nil
}

func (p *PG) AnswerCount(ctx context.Context) (int64, error) {
	var count int64
	if err := db.Get(ctx, p.pool, &count, `SELECT count(*) FROM answers WHERE deleted_at IS NULL`); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *PG) Stat(ctx context.Context, key string) (Stat, error) {
	var stat Stat
	err := db.Get(ctx, p.pool, &stat, `SELECT key, count, updated_at FROM stats WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stat{Key: key}, nil
		}
		return Stat{}, err
	}
	return stat, nil
}

func (p *PG) UpsertStat(ctx context.Context, key string, count int64, now time.Time) error {
	_, err := db.Exec(ctx, p.pool, `
INSERT INTO stats (key, count, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET count = EXCLUDED.count, updated_at = EXCLUDED.updated_at
`, key, count, now)
	return err
}

func (p *PG) SavePushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error) {
	var saved PushSubscription
	err := db.Get(ctx, p.pool, &saved, `
INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (endpoint) DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
RETURNING id, user_id, endpoint, p256dh, auth, created_at
`, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt)
	if err != nil {
		return PushSubscription{}, err
	}
	return saved, nil
}

func (p *PG) DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	tag, err := db.Exec(ctx, p.pool, `
DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2
`, userID, endpoint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (p *PG) PushSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]PushSubscription, error) {
	var subs []PushSubscription
	err := db.Select(ctx, p.pool, &subs, `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE user_id = $1
ORDER BY created_at
`, userID)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (p *PG) RecipientsWithAnswers(ctx context.Context) ([]uuid.UUID, error) {
	var recipients []uuid.UUID
	err := db.Select(ctx, p.pool, &recipients, `
SELECT DISTINCT recipient_id
FROM questions
WHERE answer_id IS NOT NULL AND deleted_at IS NULL
`)
	if err != nil {
		return nil, err
	}
	return recipients, nil
}

type timelineRow struct {
	Question
	AnswerCreatedAt time.Time `db:"answer_created_at"`
}

func (p *PG) AnsweredTimeline(ctx context.Context, recipientID uuid.UUID) ([]TimelineEntry, error) {
	var rows []timelineRow
	err := db.Select(ctx, p.pool, &rows, `
SELECT q.id, q.recipient_id, q.sender_id, q.content, q.is_anonymous, q.answer_id,
       q.answered_at, q.answer_number, q.created_at, q.deleted_at,
       a.created_at AS answer_created_at
FROM questions q
JOIN answers a ON a.id = q.answer_id
WHERE q.recipient_id = $1 AND q.deleted_at IS NULL AND q.answer_id IS NOT NULL
`, recipientID)
	if err != nil {
		return nil, err
	}

	timeline := make([]TimelineEntry, 0, len(rows))
	for _, row := range rows {
		timeline = append(timeline, TimelineEntry{Question: row.Question, AnsweredAt: row.AnswerCreatedAt})
	}
	return timeline, nil
}

func (p *PG) NormalizeUnanswered(ctx context.Context) (int64, error) {
	tag, err := db.Exec(ctx, p.pool, `
UPDATE questions
SET answered_at = NULL, answer_number = NULL
WHERE answer_id IS NULL AND deleted_at IS NULL
  AND (answered_at IS NOT NULL OR answer_number IS NOT NULL)
`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InTx runs fn in one transaction with the tx-scoped mutation surface.
func (p *PG) InTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	return db.WithTx(ctx, p.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) QuestionForUpdate(ctx context.Context, questionID int64) (Question, error) {
	var question Question
	err := pgxscan.Get(ctx, t.tx, &question, `
SELECT `+questionColumns+` FROM questions WHERE id = $1 FOR UPDATE
`, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, err
	}
	return question, nil
}

func (t *pgTx) InsertAnswer(ctx context.Context, questionID int64, content string, now time.Time) (Answer, error) {
	var answer Answer
	err := pgxscan.Get(ctx, t.tx, &answer, `
INSERT INTO answers (question_id, content, created_at)
VALUES ($1, $2, $3)
RETURNING id, question_id, content, created_at, deleted_at
`, questionID, content, now)
	if err != nil {
		if isUniqueViolation(err) {
			return Answer{}, ErrAlreadyAnswered
		}
		return Answer{}, err
	}
	return answer, nil
}

func (t *pgTx) NextAnswerNumber(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var sequence int64
	err := pgxscan.Get(ctx, t.tx, &sequence, `
UPDATE users
SET answered_sequence = answered_sequence + 1, updated_at = now()
WHERE id = $1
RETURNING answered_sequence
`, recipientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return sequence, nil
}

func (t *pgTx) MarkAnswered(ctx context.Context, questionID, answerID int64, answeredAt time.Time, number int64) error {
	_, err := t.tx.Exec(ctx, `
UPDATE questions
SET answer_id = $2, answered_at = $3, answer_number = $4
WHERE id = $1
`, questionID, answerID, answeredAt, number)
	return err
}

func (t *pgTx) UpdateAnswerNumbering(ctx context.Context, questionID int64, answeredAt time.Time, number int64) error {
	_, err := t.tx.Exec(ctx, `
UPDATE questions
SET answered_at = $2, answer_number = $3
WHERE id = $1
`, questionID, answeredAt, number)
	return err
}

func (t *pgTx) SetAnsweredSequence(ctx context.Context, recipientID uuid.UUID, sequence int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
UPDATE users
SET answered_sequence = $2, updated_at = now()
WHERE id = $1 AND answered_sequence <> $2
`, recipientID, sequence)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
