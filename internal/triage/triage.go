package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/classifier"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"github.com/xaenox/reality-filter-bot/internal/presence"
	"go.uber.org/zap"
)

// EscalateAbove is the score above which a delivered message is flagged
// for a fast reply.
const EscalateAbove = 12

// ErrEmptyMessage is returned when there is no text to triage.
var ErrEmptyMessage = errors.New("message has no text")

// Decision is the outcome of triaging one message. When Deferred is set
// only SenderLabel, WakeAt and RecordID are meaningful; the message content
// must not be shown.
type Decision struct {
	Deferred    bool
	RecordID    int64
	SenderLabel string
	WakeAt      time.Time

	Text      string
	Truncated bool
	Category  models.Category
	Score     int
	Advice    classifier.Advice
	Escalate  bool
}

// Classifier scores message text.
type Classifier interface {
	Classify(text string) classifier.Result
}

// Archiver persists classified messages.
type Archiver interface {
	Append(ctx context.Context, ownerID int64, text, senderLabel string, category models.Category, score int) (int64, error)
}

// PresenceChecker reports whether the owner is asleep.
type PresenceChecker interface {
	IsAsleep(ctx context.Context, userID int64) (presence.Status, error)
}

// Service is the triage orchestrator.
type Service struct {
	classifier Classifier
	archive    Archiver
	presence   PresenceChecker
	metrics    *Metrics
	logger     *zap.Logger
}

// NewService creates a triage service. metrics may be nil.
func NewService(clf Classifier, arch Archiver, pres PresenceChecker, metrics *Metrics, logger *zap.Logger) *Service {
	return &Service{
		classifier: clf,
		archive:    arch,
		presence:   pres,
		metrics:    metrics,
		logger:     logger,
	}
}

// Triage classifies and archives text forwarded to ownerID, then decides
// whether to deliver it now or defer until the owner wakes up.
func (s *Service) Triage(ctx context.Context, ownerID int64, text, senderLabel string) (*Decision, error) {
	if strings.TrimSpace(text) == "" {
		s.metrics.observeError(errKindEmpty)
		return nil, ErrEmptyMessage
	}

	res := s.classifier.Classify(text)
	s.metrics.observeClassified(res)

	id, err := s.archive.Append(ctx, ownerID, text, senderLabel, res.Category, res.Score)
	if err != nil {
		s.metrics.observeError(errKindPersistence)
		s.logger.Error("Failed to archive message",
			zap.Error(err),
			zap.Int64("user_id", ownerID),
			zap.String("category", string(res.Category)))
		return nil, err
	}

	status, err := s.presence.IsAsleep(ctx, ownerID)
	if err != nil {
		s.metrics.observeError(errKindPersistence)
		s.logger.Error("Failed to check presence",
			zap.Error(err),
			zap.Int64("user_id", ownerID),
			zap.Int64("record_id", id))
		return nil, err
	}

	if status.Asleep {
		s.metrics.observeDecision(decisionDeferred)
		s.logger.Debug("Message deferred",
			zap.Int64("user_id", ownerID),
			zap.Int64("record_id", id),
			zap.Time("wake_at", status.WakeAt))
		return &Decision{
			Deferred:    true,
			RecordID:    id,
			SenderLabel: senderLabel,
			WakeAt:      status.WakeAt,
		}, nil
	}

	shown, truncated := models.Truncate(text, models.MaxTextLength)
	s.metrics.observeDecision(decisionDelivered)
	s.logger.Debug("Message delivered",
		zap.Int64("user_id", ownerID),
		zap.Int64("record_id", id),
		zap.String("category", string(res.Category)),
		zap.Int("score", res.Score))

	return &Decision{
		RecordID:    id,
		SenderLabel: senderLabel,
		Text:        shown,
		Truncated:   truncated,
		Category:    res.Category,
		Score:       res.Score,
		Advice:      res.Advice,
		Escalate:    res.Score > EscalateAbove,
	}, nil
}
