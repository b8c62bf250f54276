package qna

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Friends aggregates the identified senders whose questions a recipient has
// answered: one entry per sender, with the number of answered exchanges and
// the most recent ask time, newest first. Anonymous questions never
// contribute, even when the sender was signed in.
func (s *Service) Friends(ctx context.Context, recipientID uuid.UUID) ([]Friend, error) {
	questions, err := s.store.AnsweredIdentified(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		count     int64
		lastAsked int // index into questions, latest CreatedAt
	}
	buckets := make(map[uuid.UUID]*bucket)
	for i, q := range questions {
		if q.SenderID == nil || q.IsAnonymous {
			continue
		}
		b, ok := buckets[*q.SenderID]
		if !ok {
			buckets[*q.SenderID] = &bucket{count: 1, lastAsked: i}
			continue
		}
		b.count++
		if questions[i].CreatedAt.After(questions[b.lastAsked].CreatedAt) {
			b.lastAsked = i
		}
	}

	if len(buckets) == 0 {
		return []Friend{}, nil
	}

	senderIDs := make([]uuid.UUID, 0, len(buckets))
	for id := range buckets {
		senderIDs = append(senderIDs, id)
	}

	users, err := s.store.UsersByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	usersByID := make(map[uuid.UUID]User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	friends := make([]Friend, 0, len(buckets))
	for id, b := range buckets {
		user, ok := usersByID[id]
		if !ok {
			// Sender profile has since been removed.
			continue
		}
		friends = append(friends, Friend{
			User:      user,
			Exchanged: b.count,
			LastAsked: questions[b.lastAsked].CreatedAt,
		})
	}

	sort.Slice(friends, func(i, j int) bool {
		if !friends[i].LastAsked.Equal(friends[j].LastAsked) {
			return friends[i].LastAsked.After(friends[j].LastAsked)
		}
		return friends[i].User.Username < friends[j].User.Username
	})

	return friends, nil
}
