package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ilp-api/internal/models"
	"github.com/noah-isme/sma-ilp-api/internal/notify"
	appErrors "github.com/noah-isme/sma-ilp-api/pkg/errors"
)

type expiryStore interface {
	FindExpired(ctx context.Context, graceCutoff time.Time) ([]models.LessonProgress, error)
	MarkIncomplete(ctx context.Context, id, reason string, at time.Time) error
}

type expiryRecorder interface {
	RecordExpirySweep(processed int, duration time.Duration)
	RecordNotificationFailure()
}

// GraceExpiryService closes out assessments whose grace deadline passed
// without a submission. It is the sole writer of the incomplete fields; the
// opener sweep never touches them.
type GraceExpiryService struct {
	progress expiryStore
	windows  *WindowCalculator
	notifier eventPublisher
	metrics  expiryRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewGraceExpiryService wires the expiry sweep. metrics may be nil.
func NewGraceExpiryService(progress expiryStore, windows *WindowCalculator, notifier eventPublisher, metrics expiryRecorder, logger *zap.Logger) *GraceExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraceExpiryService{
		progress: progress,
		windows:  windows,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessExpiredAssessments marks records past their grace deadline as
// incomplete with reason MISSED_GRACE_PERIOD, locks accessibility, and
// notifies the student. Per-record failures are logged and skipped so one
// bad row never stalls the batch.
func (s *GraceExpiryService) ProcessExpiredAssessments(ctx context.Context) (int, error) {
	now := s.now()
	started := now
	// A deadline is only expired once the late tolerance has also lapsed.
	graceCutoff := now.Add(-s.windows.lateTolerance)

	expired, err := s.progress.FindExpired(ctx, graceCutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan expired assessments")
	}
	if len(expired) == 0 {
		s.logger.Sugar().Debugw("no expired assessments")
		return 0, nil
	}

	processed := 0
	for i := range expired {
		progress := &expired[i]

		if err := s.progress.MarkIncomplete(ctx, progress.ID, models.IncompleteReasonMissedGrace, now); err != nil {
			s.logger.Sugar().Errorw("failed to mark assessment incomplete",
				"progress_id", progress.ID, "error", err)
			continue
		}
		processed++

		s.logger.Sugar().Infow("marked assessment incomplete",
			"progress_id", progress.ID,
			"student_id", progress.StudentID,
			"subject", progress.SubjectName,
			"reason", models.IncompleteReasonMissedGrace)

		if err := s.notifier.Publish(ctx, s.expiredEvent(progress, now)); err != nil {
			s.logger.Sugar().Errorw("failed to send expiry notification",
				"progress_id", progress.ID, "error", err)
			if s.metrics != nil {
				s.metrics.RecordNotificationFailure()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordExpirySweep(processed, s.now().Sub(started))
	}
	s.logger.Sugar().Infow("expiry sweep finished", "processed", processed)
	return processed, nil
}

func (s *GraceExpiryService) expiredEvent(progress *models.LessonProgress, now time.Time) notify.Event {
	subject := progress.SubjectName
	if subject == "" {
		subject = "Assessment"
	}
	topic := progress.TopicTitle
	if topic == "" {
		topic = "Lesson"
	}

	return notify.Event{
		ID:          uuid.NewString(),
		Type:        notify.EventAssessmentExpired,
		RecipientID: progress.StudentID,
		ProgressID:  progress.ID,
		Title:       fmt.Sprintf("%s Assessment Missed", subject),
		Message: fmt.Sprintf("%s assessment was not submitted before the deadline (%s) and has been marked incomplete. Period %d of %d.",
			topic,
			progress.WindowDeadline.Format("15:04"),
			progress.PeriodSequence,
			progress.TotalPeriodsInSequence),
		Deadline:  progress.WindowDeadline,
		EmittedAt: now,
	}
}
