// Package notify delivers Web Push notifications for new questions and
// relays answer events to Slack.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"goongoom/pkg/bus"
	"goongoom/services/qna"
)

const (
	questionsSubject = "goongoom.questions.created"
	answersSubject   = "goongoom.answers.created"
	questionsDurable = "notify-questions"
	answersDurable   = "notify-answers"
)

type questionEvent struct {
	QuestionID  int64     `json:"question_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

type answerEvent struct {
	AnswerID     int64     `json:"answer_id"`
	QuestionID   int64     `json:"question_id"`
	RecipientID  uuid.UUID `json:"recipient_id"`
	AnswerNumber *int64    `json:"answer_number"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Service consumes domain events and fans them out to push subscribers and
// Slack. Delivery is best-effort per destination; a failed send never blocks
// the subscription.
type Service struct {
	qna    *qna.Service
	bus    *bus.Bus
	sender PushSender
	slack  *SlackNotifier
	logger *log.Logger

	subMu sync.Mutex
	subs  []io.Closer
}

// New constructs the notification service. sender and slack are optional;
// the corresponding deliveries are skipped when absent.
func New(service *qna.Service, eventBus *bus.Bus, sender PushSender, slack *SlackNotifier, logger *log.Logger) (*Service, error) {
	if service == nil {
		return nil, errors.New("qna service is required")
	}
	if eventBus == nil {
		return nil, errors.New("bus is required")
	}

	return &Service{
		qna:    service,
		bus:    eventBus,
		sender: sender,
		slack:  slack,
		logger: logger,
	}, nil
}

// Start subscribes to the question and answer subjects and processes events
// until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("nil service")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	questionSub, err := s.bus.Subscribe(ctx, questionsSubject, questionsDurable, s.handleQuestion)
	if err != nil {
		return err
	}
	answerSub, err := s.bus.Subscribe(ctx, answersSubject, answersDurable, s.handleAnswer)
	if err != nil {
		_ = questionSub.Close()
		return err
	}

	s.subMu.Lock()
	s.subs = append(s.subs, questionSub, answerSub)
	s.subMu.Unlock()

	return nil
}

// Close stops the underlying subscriptions.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.subs = nil
	return firstErr
}

func (s *Service) handleQuestion(ctx context.Context, data []byte) error {
	var evt questionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		// Malformed events can never succeed; drop instead of redelivering.
		s.warnf("dropping malformed question event: %v", err)
		return nil
	}
	if evt.QuestionID == 0 || evt.RecipientID == uuid.Nil {
		s.warnf("dropping question event with missing ids")
		return nil
	}
	if s.sender == nil {
		return nil
	}

	recipient, err := s.qna.UserByID(ctx, evt.RecipientID)
	if err != nil {
		if errors.Is(err, qna.ErrUserNotFound) {
			return nil
		}
		return err
	}

	subs, err := s.qna.PushSubscriptions(ctx, recipient.ID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(questionMessage(recipient.Locale, evt.Content, evt.QuestionID))
	if err != nil {
		return err
	}

	for _, sub := range subs {
		err := s.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrSubscriptionGone):
			// The endpoint no longer exists; stop pushing to it.
			if err := s.qna.UnsubscribePush(ctx, sub.UserID, sub.Endpoint); err != nil {
				s.warnf("prune dead subscription %d: %v", sub.ID, err)
			}
		default:
			s.warnf("push to subscription %d failed: %v", sub.ID, err)
		}
	}

	return nil
}

func (s *Service) handleAnswer(ctx context.Context, data []byte) error {
	var evt answerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.warnf("dropping malformed answer event: %v", err)
		return nil
	}
	if s.slack == nil {
		return nil
	}

	recipientName := "someone"
	if evt.RecipientID != uuid.Nil {
		recipient, err := s.qna.UserByID(ctx, evt.RecipientID)
		switch {
		case err == nil:
			recipientName = recipient.Username
		case errors.Is(err, qna.ErrUserNotFound):
		default:
			return err
		}
	}

	text := fmt.Sprintf("%s answered question #%d", recipientName, evt.QuestionID)
	if evt.AnswerNumber != nil {
		text = fmt.Sprintf("%s (answer no. %d)", text, *evt.AnswerNumber)
	}
	if evt.Content != "" {
		text = fmt.Sprintf("%s: %s", text, truncateRunes(evt.Content, notificationBodyRunes))
	}

	return s.slack.Notify(ctx, text)
}

func (s *Service) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf("WARN "+format, args...)
	}
}
