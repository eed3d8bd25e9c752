package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ilp-api/internal/models"
)

const progressColumns = `id, student_id, subject_id, subject_name, topic_title, scheduled_date, period_start, period_end, window_open_at, window_deadline, completed, completed_at, incomplete_reason, auto_marked_incomplete_at, assessment_accessible, period_sequence, total_periods_in_sequence, created_at, updated_at`

// ProgressRepository provides persistence for student lesson progress rows.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// FindCandidatesForOpening returns not-yet-accessible rows whose window has
// started, scoped to the given scheduled-date bounds. The false-flag filter
// is what makes the opener sweep idempotent.
func (r *ProgressRepository) FindCandidatesForOpening(ctx context.Context, now, dateFrom, dateTo time.Time) ([]models.LessonProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_lesson_progress WHERE assessment_accessible = FALSE AND window_open_at <= $1 AND scheduled_date BETWEEN $2 AND $3 ORDER BY window_open_at ASC`, progressColumns)
	var rows []models.LessonProgress
	if err := r.db.SelectContext(ctx, &rows, query, now, dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("find opening candidates: %w", err)
	}
	return rows, nil
}

// FindExpired returns non-terminal rows whose strict deadline lies before
// the grace cutoff.
func (r *ProgressRepository) FindExpired(ctx context.Context, graceCutoff time.Time) ([]models.LessonProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_lesson_progress WHERE completed = FALSE AND incomplete_reason IS NULL AND window_deadline < $1 ORDER BY window_deadline ASC`, progressColumns)
	var rows []models.LessonProgress
	if err := r.db.SelectContext(ctx, &rows, query, graceCutoff); err != nil {
		return nil, fmt.Errorf("find expired progress: %w", err)
	}
	return rows, nil
}

// FindByID loads a progress row by id.
func (r *ProgressRepository) FindByID(ctx context.Context, id string) (*models.LessonProgress, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_lesson_progress WHERE id = $1`, progressColumns)
	var progress models.LessonProgress
	if err := r.db.GetContext(ctx, &progress, query, id); err != nil {
		return nil, err
	}
	return &progress, nil
}

// MarkAccessible flips the accessibility flag. Touches only the columns the
// opener sweep owns.
func (r *ProgressRepository) MarkAccessible(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE student_lesson_progress SET assessment_accessible = TRUE, updated_at = $2 WHERE id = $1 AND assessment_accessible = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark progress accessible: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark progress accessible: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkIncomplete records the expiry outcome and locks accessibility. The
// incomplete-reason guard keeps the write idempotent under overlapping
// sweeps.
func (r *ProgressRepository) MarkIncomplete(ctx context.Context, id, reason string, at time.Time) error {
	const query = `UPDATE student_lesson_progress SET completed = FALSE, incomplete_reason = $2, auto_marked_incomplete_at = $3, assessment_accessible = FALSE, updated_at = $3 WHERE id = $1 AND completed = FALSE AND incomplete_reason IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, reason, at)
	if err != nil {
		return fmt.Errorf("mark progress incomplete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark progress incomplete: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
