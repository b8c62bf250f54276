package qna

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for exercising the service logic without a
// database. InTx serializes callers on one mutex and rolls back on error,
// mirroring the transactional behaviour the Postgres store provides.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]User
	questions map[int64]Question
	answers   map[int64]Answer
	subs      map[string]PushSubscription
	stats     map[string]Stat
	nextQID   int64
	nextAID   int64
	nextSubID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uuid.UUID]User),
		questions: make(map[int64]Question),
		answers:   make(map[int64]Answer),
		subs:      make(map[string]PushSubscription),
		stats:     make(map[string]Stat),
	}
}

func (m *memStore) CreateUser(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return User{}, ErrUsernameTaken
		}
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) UserByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memStore) UserByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memStore) UserBySubject(_ context.Context, subjectID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.SubjectID == subjectID {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memStore) UsersByIDs(_ context.Context, ids []uuid.UUID) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]User, 0, len(ids))
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (m *memStore) InsertQuestion(_ context.Context, question Question) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQID++
	question.ID = m.nextQID
	m.questions[question.ID] = question
	return question, nil
}

func (m *memStore) Question(_ context.Context, id int64) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	question, ok := m.questions[id]
	if !ok || question.DeletedAt != nil {
		return Question{}, ErrQuestionNotFound
	}
	return question, nil
}

func (m *memStore) AnswerForQuestion(_ context.Context, questionID int64) (Answer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, answer := range m.answers {
		if answer.QuestionID == questionID && answer.DeletedAt == nil {
			return answer, true, nil
		}
	}
	return Answer{}, false, nil
}

func (m *memStore) UnansweredByRecipient(_ context.Context, recipientID uuid.UUID, limit int) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var questions []Question
	for _, q := range m.questions {
		if q.RecipientID == recipientID && q.DeletedAt == nil && q.AnswerID == nil {
			questions = append(questions, q)
		}
	}
	sortNewestFirst(questions)
	return clip(questions, limit), nil
}

func (m *memStore) AnsweredByRecipient(_ context.Context, recipientID uuid.UUID, limit int) ([]AnsweredQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var questions []Question
	for _, q := range m.questions {
		if q.RecipientID == recipientID && q.DeletedAt == nil && q.AnswerID != nil {
			questions = append(questions, q)
		}
	}
	sortNewestFirst(questions)
	questions = clip(questions, limit)

	answered := make([]AnsweredQuestion, 0, len(questions))
	for _, q := range questions {
		answered = append(answered, AnsweredQuestion{Question: q, Answer: m.answers[*q.AnswerID]})
	}
	return answered, nil
}

func (m *memStore) SentBySender(_ context.Context, senderID uuid.UUID, limit int) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var questions []Question
	for _, q := range m.questions {
		if q.SenderID != nil && *q.SenderID == senderID && q.DeletedAt == nil {
			questions = append(questions, q)
		}
	}
	sortNewestFirst(questions)
	return clip(questions, limit), nil
}

func (m *memStore) SoftDeleteQuestion(_ context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	question, ok := m.questions[id]
	if !ok || question.DeletedAt != nil {
		return ErrQuestionNotFound
	}
	question.DeletedAt = &now
	m.questions[id] = question
	return nil
}

func (m *memStore) CountAnsweredCreatedAtOrBefore(_ context.Context, recipientID uuid.UUID, createdAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, q := range m.questions {
		if q.RecipientID == recipientID && q.DeletedAt == nil && q.AnswerID != nil && !q.CreatedAt.After(createdAt) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) AnsweredIdentified(_ context.Context, recipientID uuid.UUID) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var questions []Question
	for _, q := range m.questions {
		if q.RecipientID == recipientID && q.DeletedAt == nil && q.AnswerID != nil &&
			q.SenderID != nil && !q.IsAnonymous {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (m *memStore) RecentAnswers(_ context.Context, limit int) ([]FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var answers []Answer
	for _, a := range m.answers {
		if a.DeletedAt == nil {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].CreatedAt.After(answers[j].CreatedAt) })
	if limit > 0 && len(answers) > limit {
		answers = answers[:limit]
	}

	items := make([]FeedItem, 0, len(answers))
	for _, a := range answers {
		q, ok := m.questions[a.QuestionID]
		if !ok || q.DeletedAt != nil {
			continue
		}
		items = append(items, FeedItem{
			Question:          q,
			Answer:            a,
			RecipientUsername: m.users[q.RecipientID].Username,
		})
	}
	return items, nil
}

func (m *memStore) AnswerCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, a := range m.answers {
		if a.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memStore) Stat(_ context.Context, key string) (Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stat, ok := m.stats[key]
	if !ok {
		return Stat{Key: key}, nil
	}
	return stat, nil
}

func (m *memStore) UpsertStat(_ context.Context, key string, count int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[key] = Stat{Key: key, Count: count, UpdatedAt: now}
	return nil
}

func (m *memStore) SavePushSubscription(_ context.Context, sub PushSubscription) (PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		m.nextSubID++
		sub.ID = m.nextSubID
	}
	m.subs[sub.Endpoint] = sub
	return sub, nil
}

func (m *memStore) DeletePushSubscription(_ context.Context, userID uuid.UUID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[endpoint]
	if !ok || sub.UserID != userID {
		return ErrSubscriptionNotFound
	}
	delete(m.subs, endpoint)
	return nil
}

func (m *memStore) PushSubscriptionsByUser(_ context.Context, userID uuid.UUID) ([]PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []PushSubscription
	for _, sub := range m.subs {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (m *memStore) RecipientsWithAnswers(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var recipients []uuid.UUID
	for _, q := range m.questions {
		if q.AnswerID != nil && q.DeletedAt == nil && !seen[q.RecipientID] {
			seen[q.RecipientID] = true
			recipients = append(recipients, q.RecipientID)
		}
	}
	return recipients, nil
}

func (m *memStore) AnsweredTimeline(_ context.Context, recipientID uuid.UUID) ([]TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var timeline []TimelineEntry
	for _, q := range m.questions {
		if q.RecipientID == recipientID && q.DeletedAt == nil && q.AnswerID != nil {
			timeline = append(timeline, TimelineEntry{Question: q, AnsweredAt: m.answers[*q.AnswerID].CreatedAt})
		}
	}
	return timeline, nil
}

func (m *memStore) NormalizeUnanswered(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var patched int64
	for id, q := range m.questions {
		if q.AnswerID == nil && q.DeletedAt == nil && (q.AnsweredAt != nil || q.AnswerNumber != nil) {
			q.AnsweredAt = nil
			q.AnswerNumber = nil
			m.questions[id] = q
			patched++
		}
	}
	return patched, nil
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := cloneMap(m.users)
	questions := cloneMap(m.questions)
	answers := cloneMap(m.answers)
	nextAID := m.nextAID

	if err := fn(ctx, &memTx{store: m}); err != nil {
		m.users = users
		m.questions = questions
		m.answers = answers
		m.nextAID = nextAID
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// memTx mutates the store directly; the caller holds the store mutex for the
// whole transaction.
type memTx struct {
	store *memStore
}

func (t *memTx) QuestionForUpdate(_ context.Context, questionID int64) (Question, error) {
	question, ok := t.store.questions[questionID]
	if !ok {
		return Question{}, ErrQuestionNotFound
	}
	return question, nil
}

func (t *memTx) InsertAnswer(_ context.Context, questionID int64, content string, now time.Time) (Answer, error) {
	for _, a := range t.store.answers {
		if a.QuestionID == questionID {
			return Answer{}, ErrAlreadyAnswered
		}
	}
	t.store.nextAID++
	answer := Answer{ID: t.store.nextAID, QuestionID: questionID, Content: content, CreatedAt: now}
	t.store.answers[answer.ID] = answer
	return answer, nil
}

func (t *memTx) NextAnswerNumber(_ context.Context, recipientID uuid.UUID) (int64, error) {
	user, ok := t.store.users[recipientID]
	if !ok {
		return 0, ErrUserNotFound
	}
	user.AnsweredSequence++
	t.store.users[recipientID] = user
	return user.AnsweredSequence, nil
}

func (t *memTx) MarkAnswered(_ context.Context, questionID, answerID int64, answeredAt time.Time, number int64) error {
	question, ok := t.store.questions[questionID]
	if !ok {
		return ErrQuestionNotFound
	}
	question.AnswerID = &answerID
	question.AnsweredAt = &answeredAt
	question.AnswerNumber = &number
	t.store.questions[questionID] = question
	return nil
}

func (t *memTx) UpdateAnswerNumbering(_ context.Context, questionID int64, answeredAt time.Time, number int64) error {
	question, ok := t.store.questions[questionID]
	if !ok {
		return ErrQuestionNotFound
	}
	question.AnsweredAt = &answeredAt
	question.AnswerNumber = &number
	t.store.questions[questionID] = question
	return nil
}

func (t *memTx) SetAnsweredSequence(_ context.Context, recipientID uuid.UUID, sequence int64) (bool, error) {
	user, ok := t.store.users[recipientID]
	if !ok {
		return false, ErrUserNotFound
	}
	if user.AnsweredSequence == sequence {
		return false, nil
	}
	user.AnsweredSequence = sequence
	t.store.users[recipientID] = user
	return true, nil
}

func sortNewestFirst(questions []Question) {
	sort.Slice(questions, func(i, j int) bool { return questions[i].CreatedAt.After(questions[j].CreatedAt) })
}

func clip(questions []Question, limit int) []Question {
	if limit > 0 && len(questions) > limit {
		return questions[:limit]
	}
	return questions
}
