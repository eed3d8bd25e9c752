package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ilp-api/internal/models"
	"github.com/noah-isme/sma-ilp-api/internal/notify"
	appErrors "github.com/noah-isme/sma-ilp-api/pkg/errors"
)

type progressStore interface {
	FindCandidatesForOpening(ctx context.Context, now, dateFrom, dateTo time.Time) ([]models.LessonProgress, error)
	MarkAccessible(ctx context.Context, id string, at time.Time) error
	FindByID(ctx context.Context, id string) (*models.LessonProgress, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event notify.Event) error
}

type sweepRecorder interface {
	RecordOpenerSweep(opened, expiredSkips int, duration time.Duration)
	RecordNotificationFailure()
}

// AccessibilityService decides when assessments open for students. The
// recurring opener sweep flips eligible progress records to accessible and
// emits one availability notification each; point queries project the
// current accessibility state on demand.
type AccessibilityService struct {
	progress progressStore
	windows  *WindowCalculator
	notifier eventPublisher
	metrics  sweepRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccessibilityService wires the coordinator. metrics may be nil.
func NewAccessibilityService(progress progressStore, windows *WindowCalculator, notifier eventPublisher, metrics sweepRecorder, logger *zap.Logger) *AccessibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessibilityService{
		progress: progress,
		windows:  windows,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// OpenAvailableAssessments flips records whose window start has arrived to
// accessible and returns how many were opened. Candidates are scoped to
// today through tomorrow; records whose deadline already passed or that are
// terminally closed are skipped without mutation. A failed notification is
// logged per record and never aborts the sweep.
func (s *AccessibilityService) OpenAvailableAssessments(ctx context.Context) (int, error) {
	now := s.now()
	started := now
	dateFrom := truncateToDay(now)
	dateTo := truncateToDay(now.Add(24 * time.Hour))

	candidates, err := s.progress.FindCandidatesForOpening(ctx, now, dateFrom, dateTo)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan opening candidates")
	}
	if len(candidates) == 0 {
		s.logger.Sugar().Debugw("no assessments to open")
		return 0, nil
	}

	opened := 0
	expiredSkips := 0

	for i := range candidates {
		progress := &candidates[i]

		if now.After(progress.WindowDeadline) {
			s.logger.Sugar().Warnw("skipping expired assessment",
				"progress_id", progress.ID, "deadline", progress.WindowDeadline)
			expiredSkips++
			continue
		}
		if progress.Terminal() {
			s.logger.Sugar().Debugw("skipping terminal progress record", "progress_id", progress.ID)
			continue
		}

		if err := s.progress.MarkAccessible(ctx, progress.ID, now); err != nil {
			if s.metrics != nil {
				s.metrics.RecordOpenerSweep(opened, expiredSkips, s.now().Sub(started))
			}
			return opened, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("failed to mark progress %s accessible", progress.ID))
		}
		opened++

		s.logger.Sugar().Infow("opened assessment",
			"progress_id", progress.ID,
			"student_id", progress.StudentID,
			"subject", progress.SubjectName,
			"period", progress.PeriodSequence,
			"of", progress.TotalPeriodsInSequence)

		if err := s.notifier.Publish(ctx, s.availableEvent(progress, now)); err != nil {
			s.logger.Sugar().Errorw("failed to send availability notification",
				"progress_id", progress.ID, "error", err)
			if s.metrics != nil {
				s.metrics.RecordNotificationFailure()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordOpenerSweep(opened, expiredSkips, s.now().Sub(started))
	}
	s.logger.Sugar().Infow("opener sweep finished", "opened", opened, "expired_skips", expiredSkips)
	return opened, nil
}

// IsCurrentlyAccessible reports whether an assessment can be entered right
// now. The stored flag is advisory only: it is re-validated against the live
// window so a lapsed window reads as inaccessible even when the flag is
// still true.
func (s *AccessibilityService) IsCurrentlyAccessible(ctx context.Context, id string) bool {
	progress, err := s.progress.FindByID(ctx, id)
	if err != nil || progress == nil {
		return false
	}
	if !progress.AssessmentAccessible {
		return false
	}

	now := s.now()
	return !now.Before(progress.WindowOpenAt) && !now.After(progress.WindowDeadline)
}

// GetAccessibilityStatus projects the lifecycle state for a progress record.
// Precedence is load-bearing: completion and an explicit incomplete reason
// win over any temporal computation.
func (s *AccessibilityService) GetAccessibilityStatus(ctx context.Context, id string) models.AccessibilityStatus {
	progress, err := s.progress.FindByID(ctx, id)
	if err != nil || progress == nil {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Sugar().Errorw("failed to load progress record", "progress_id", id, "error", err)
		}
		return models.AccessibilityNotFound
	}

	now := s.now()
	switch {
	case progress.Completed:
		return models.AccessibilityCompleted
	case progress.IncompleteReason != nil:
		return models.AccessibilityExpired
	case now.Before(progress.WindowOpenAt):
		return models.AccessibilityNotYetAvailable
	case now.After(progress.WindowDeadline):
		return models.AccessibilityExpired
	case progress.AssessmentAccessible:
		return models.AccessibilityAvailable
	default:
		return models.AccessibilityPendingActivation
	}
}

// Window rebuilds the full assessment window for a record from its stored
// bounds plus the configured late tolerance.
func (s *AccessibilityService) Window(progress *models.LessonProgress) models.AssessmentWindow {
	return models.AssessmentWindow{
		OpenAt:         progress.WindowOpenAt,
		StrictDeadline: progress.WindowDeadline,
		GraceDeadline:  progress.WindowDeadline.Add(s.windows.lateTolerance),
	}
}

// FindProgress exposes the raw record for the HTTP layer.
func (s *AccessibilityService) FindProgress(ctx context.Context, id string) (*models.LessonProgress, error) {
	progress, err := s.progress.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
	}
	return progress, nil
}

func (s *AccessibilityService) availableEvent(progress *models.LessonProgress, now time.Time) notify.Event {
	window := s.Window(progress)
	minutes := s.windows.MinutesRemaining(window, now)
	hours := minutes / 60

	timeRemaining := fmt.Sprintf("%d minutes", minutes)
	if hours > 0 {
		timeRemaining = fmt.Sprintf("%d hours", hours)
	}

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
		Type:        notify.EventAssessmentAvailable,
		RecipientID: progress.StudentID,
		ProgressID:  progress.ID,
		Title:       fmt.Sprintf("%s Assessment Available", subject),
		Message: fmt.Sprintf("%s assessment is now open. Time remaining: %s. Deadline: %s (strict). Period %d of %d.",
			topic,
			timeRemaining,
			progress.WindowDeadline.Format("15:04"),
			progress.PeriodSequence,
			progress.TotalPeriodsInSequence),
		Deadline:  progress.WindowDeadline,
		EmittedAt: now,
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
