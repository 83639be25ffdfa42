package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"parkspot/internal/db"
	"parkspot/internal/logging"
	"parkspot/internal/metrics"
	"parkspot/internal/repository"
)

// PaymentReleaser cancels the open payment intents of reservations the
// jobs have cancelled.
type PaymentReleaser interface {
	CancelOpenPayments(ctx context.Context, ids []string)
}

type JobService struct {
	Repo        repository.JobStore
	NoShowGrace time.Duration
	PendingTTL  time.Duration
	// Payments is optional. Without it expired intents stay open on the
	// gateway and a late payment is refunded when its webhook arrives.
	Payments PaymentReleaser
	now      func() time.Time
}

func NewJobService(repo repository.JobStore, noShowGrace, pendingTTL time.Duration) *JobService {
	return &JobService{Repo: repo, NoShowGrace: noShowGrace, PendingTTL: pendingTTL, now: time.Now}
}

// CompleteFinished marks active reservations past their end time completed.
func (s *JobService) CompleteFinished(ctx context.Context) (int64, error) {
	_, n, err := s.sweep(ctx, db.StatusActive, db.StatusCompleted, repository.JobEndTime, s.now())
	return n, err
}

// MarkNoShows marks confirmed reservations whose start passed more than the
// grace period ago without a check-in.
func (s *JobService) MarkNoShows(ctx context.Context) (int64, error) {
	_, n, err := s.sweep(ctx, db.StatusConfirmed, db.StatusNoShow, repository.JobStartTime, s.now().Add(-s.NoShowGrace))
	return n, err
}

// ExpirePending cancels reservations left pending longer than the TTL, which
// releases the capacity held by abandoned payments. Their payment intents are
// cancelled afterwards.
func (s *JobService) ExpirePending(ctx context.Context) (int64, error) {
	ids, n, err := s.sweep(ctx, db.StatusPending, db.StatusCancelled, repository.JobCreatedAt, s.now().Add(-s.PendingTTL))
	if err != nil || n == 0 || s.Payments == nil {
		return n, err
	}
	s.Payments.CancelOpenPayments(ctx, ids)
	return n, nil
}

// sweep moves the reservations in status from whose column is before the cutoff
// to status to. It returns the candidate ids and how many actually moved.
func (s *JobService) sweep(ctx context.Context, from, to db.ReservationStatus, column repository.JobTimeColumn, before time.Time) ([]string, int64, error) {
	ids, err := s.Repo.ReservationIDsBefore(ctx, from, column, before)
	if err != nil {
		return nil, 0, fmt.Errorf("cron job: failed to list %s reservations: %w", from, err)
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}
	n, err := s.Repo.UpdateReservationStatuses(ctx, ids, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("cron job: failed to move reservations to %s: %w", to, err)
	}
	metrics.ReservationTransitions.WithLabelValues(string(to), "job").Add(float64(n))
	logging.Info().Str("from", string(from)).Str("to", string(to)).Int64("count", n).Msg("cron job: reservations updated")
	return ids, n, nil
}

// RunAll runs every lifecycle job once, logging failures.
func (s *JobService) RunAll(ctx context.Context) {
	jobs := []struct {
		name string
		run  func(context.Context) (int64, error)
	}{
		{"complete-finished", s.CompleteFinished},
		{"mark-no-shows", s.MarkNoShows},
		{"expire-pending", s.ExpirePending},
	}
	for _, j := range jobs {
		if _, err := j.run(ctx); err != nil {
			logging.Error().Err(err).Str("job", j.name).Msg("cron job failed")
		}
	}
}

// Register schedules RunAll on c. Each run is bounded by timeout.
func (s *JobService) Register(c *cron.Cron, schedule string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.RunAll(ctx)
	})
}
