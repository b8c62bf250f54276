package qna

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// BackfillReport summarizes a repair run. Failed recipients are collected
// rather than aborting the batch; each recipient repairs in its own
// transaction so a fault cannot corrupt recipients already written.
type BackfillReport struct {
	Recipients       int
	UpdatedQuestions int
	UpdatedUsers     int
	Failed           []BackfillFailure
}

// BackfillFailure records one recipient whose repair did not complete.
type BackfillFailure struct {
	RecipientID uuid.UUID
	Err         error
}

// BackfillAnswerNumbers recomputes answer numbering for every recipient:
// answered questions sort by their answer's creation time ascending, ranks
// reassign 1-based, and the recipient's answered_sequence pins to the final
// count. Rows already correct are left untouched, so a second run with no
// intervening writes patches nothing.
func (s *Service) BackfillAnswerNumbers(ctx context.Context) (BackfillReport, error) {
	recipients, err := s.store.RecipientsWithAnswers(ctx)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("list recipients: %w", err)
	}

	report := BackfillReport{Recipients: len(recipients)}

	for _, recipientID := range recipients {
		updatedQuestions, updatedUser, err := s.backfillRecipient(ctx, recipientID)
		if err != nil {
			report.Failed = append(report.Failed, BackfillFailure{RecipientID: recipientID, Err: err})
			continue
		}
		report.UpdatedQuestions += updatedQuestions
		if updatedUser {
			report.UpdatedUsers++
		}
	}

	return report, nil
}

func (s *Service) backfillRecipient(ctx context.Context, recipientID uuid.UUID) (int, bool, error) {
	timeline, err := s.store.AnsweredTimeline(ctx, recipientID)
	if err != nil {
		return 0, false, fmt.Errorf("load answered timeline: %w", err)
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].AnsweredAt.Before(timeline[j].AnsweredAt)
	})

	updatedQuestions := 0
	updatedUser := false

	err = s.store.InTx(ctx, func(ctx context.Context, tx TxStore) error {
		for i, entry := range timeline {
			rank := int64(i + 1)
			q := entry.Question
			if q.AnswerNumber != nil && *q.AnswerNumber == rank &&
				q.AnsweredAt != nil && q.AnsweredAt.Equal(entry.AnsweredAt) {
				continue
			}
			if err := tx.UpdateAnswerNumbering(ctx, q.ID, entry.AnsweredAt, rank); err != nil {
				return err
			}
			updatedQuestions++
		}

		changed, err := tx.SetAnsweredSequence(ctx, recipientID, int64(len(timeline)))
		if err != nil {
			return err
		}
		updatedUser = changed
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return updatedQuestions, updatedUser, nil
}

// BackfillUnanswered clears stale answered_at and answer_number values from
// questions that have no answer reference, restoring the invariant that
// numbering exists only alongside an answer.
func (s *Service) BackfillUnanswered(ctx context.Context) (int64, error) {
	return s.store.NormalizeUnanswered(ctx)
}

// BackfillAnswerStats recounts non-deleted answers into the global stats
// row.
func (s *Service) BackfillAnswerStats(ctx context.Context) (int64, error) {
	count, err := s.store.AnswerCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	if err := s.store.UpsertStat(ctx, StatAnswers, count, s.now().UTC()); err != nil {
		return 0, fmt.Errorf("write stats: %w", err)
	}
	return count, nil
}
