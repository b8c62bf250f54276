package qna

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFriendsAggregatesIdentifiedSenders(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")
	frequent := seedUser(t, store, "june")
	recent := seedUser(t, store, "hana")
	ghost := uuid.New() // profile removed after asking

	ask := func(senderID uuid.UUID, anonymous bool, createdAt time.Time) {
		t.Helper()
		q, err := store.InsertQuestion(context.Background(), Question{
			RecipientID: recipient.ID,
			SenderID:    &senderID,
			Content:     "hello",
			IsAnonymous: anonymous,
			CreatedAt:   createdAt,
		})
		if err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
		if _, _, err := svc.AnswerQuestion(context.Background(), q.ID, recipient.ID, "hi"); err != nil {
			t.Fatalf("AnswerQuestion: %v", err)
		}
	}

	ask(frequent.ID, false, testBase)
	ask(frequent.ID, false, testBase.Add(time.Minute))
	ask(recent.ID, false, testBase.Add(time.Hour))
	ask(ghost, false, testBase.Add(2*time.Hour))
	// Anonymous exchanges never surface, even from a signed-in sender.
	ask(recent.ID, true, testBase.Add(3*time.Hour))

	// An unanswered identified question does not count.
	if _, err := store.InsertQuestion(context.Background(), Question{
		RecipientID: recipient.ID,
		SenderID:    &frequent.ID,
		Content:     "pending",
		CreatedAt:   testBase.Add(4 * time.Hour),
	}); err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	friends, err := svc.Friends(context.Background(), recipient.ID)
	if err != nil {
		t.Fatalf("Friends: %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("len(friends) = %d, want 2", len(friends))
	}

	if friends[0].User.ID != recent.ID {
		t.Errorf("friends[0] = %s, want hana (most recent exchange first)", friends[0].User.Username)
	}
	if friends[0].Exchanged != 1 {
		t.Errorf("hana exchanged = %d, want 1", friends[0].Exchanged)
	}
	if !friends[0].LastAsked.Equal(testBase.Add(time.Hour)) {
		t.Errorf("hana last asked = %v, want %v", friends[0].LastAsked, testBase.Add(time.Hour))
	}

	if friends[1].User.ID != frequent.ID {
		t.Errorf("friends[1] = %s, want june", friends[1].User.Username)
	}
	if friends[1].Exchanged != 2 {
		t.Errorf("june exchanged = %d, want 2", friends[1].Exchanged)
	}
}

func TestFriendsEmptyWithoutIdentifiedExchanges(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	recipient := seedUser(t, store, "mina")

	q := seedQuestion(t, store, recipient.ID, "anonymous", testBase)
	if _, _, err := svc.AnswerQuestion(context.Background(), q.ID, recipient.ID, "hi"); err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}

	friends, err := svc.Friends(context.Background(), recipient.ID)
	if err != nil {
		t.Fatalf("Friends: %v", err)
	}
	if len(friends) != 0 {
		t.Errorf("len(friends) = %d, want 0", len(friends))
	}
}
