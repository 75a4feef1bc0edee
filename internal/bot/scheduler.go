package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// UserLister enumerates the users that receive scheduled digests.
type UserLister interface {
	ListUsers(ctx context.Context) ([]int64, error)
}

// DigestScheduler pushes the daily digest to every known user on a cron
// schedule. Users with nothing in their digest get no message.
type DigestScheduler struct {
	schedule cron.Schedule
	users    UserLister
	digest   DigestBuilder
	sender   Sender
	logger   *zap.Logger
	now      func() time.Time
}

// NewDigestScheduler parses a standard 5-field cron expression.
func NewDigestScheduler(expr string, users UserLister, digest DigestBuilder, sender Sender, logger *zap.Logger) (*DigestScheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse digest schedule %q: %w", expr, err)
	}
	return &DigestScheduler{
		schedule: schedule,
		users:    users,
		digest:   digest,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Next returns the duration until the next fire time after now.
func (s *DigestScheduler) Next(now time.Time) time.Duration {
	d := s.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run fires the digest at each scheduled time until ctx is cancelled.
func (s *DigestScheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.Next(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			sent := s.fire(ctx)
			s.logger.Info("Daily digest sent", zap.Int("recipients", sent))
			timer.Reset(s.Next(s.now()))
		}
	}
}

// fire sends one round of digests and returns how many were delivered.
func (s *DigestScheduler) fire(ctx context.Context) int {
	ids, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users for digest", zap.Error(err))
		return 0
	}

	sent := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return sent
		}

		report, err := s.digest.Daily(ctx, id)
		if err != nil {
			s.logger.Error("Failed to build scheduled digest", zap.Error(err), zap.Int64("user_id", id))
			continue
		}
		if report.Empty() {
			continue
		}

		// private chats share the user's id
		msg := tgbotapi.NewMessage(id, renderDigest(report))
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.sender.Send(msg); err != nil {
			s.logger.Error("Failed to send scheduled digest", zap.Error(err), zap.Int64("user_id", id))
			continue
		}
		sent++
	}
	return sent
}
