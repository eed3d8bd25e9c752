package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProgressRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func progressRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "subject_id", "subject_name", "topic_title",
		"scheduled_date", "period_start", "period_end", "window_open_at", "window_deadline",
		"completed", "completed_at", "incomplete_reason", "auto_marked_incomplete_at",
		"assessment_accessible", "period_sequence", "total_periods_in_sequence",
		"created_at", "updated_at",
	}).AddRow(
		"p1", "student-1", "subject-1", "Mathematics", "Quadratic Equations",
		now, "16:00", "18:00", now.Add(-30*time.Minute), now.Add(4*time.Hour),
		false, nil, nil, nil,
		false, 1, 3,
		now, now,
	)
}

func TestProgressRepositoryFindCandidatesForOpening(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_lesson_progress WHERE assessment_accessible = FALSE AND window_open_at <= $1 AND scheduled_date BETWEEN $2 AND $3 ORDER BY window_open_at ASC")).
		WithArgs(now, now, now.Add(24*time.Hour)).
		WillReturnRows(progressRows())

	rows, err := repo.FindCandidatesForOpening(context.Background(), now, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ID)
	assert.False(t, rows[0].AssessmentAccessible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryFindExpired(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	cutoff := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_lesson_progress WHERE completed = FALSE AND incomplete_reason IS NULL AND window_deadline < $1 ORDER BY window_deadline ASC")).
		WithArgs(cutoff).
		WillReturnRows(progressRows())

	rows, err := repo.FindExpired(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_lesson_progress WHERE id = $1")).
		WithArgs("p1").
		WillReturnRows(progressRows())

	progress, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", progress.SubjectName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryFindByIDMiss(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM student_lesson_progress WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryMarkAccessible(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_lesson_progress SET assessment_accessible = TRUE, updated_at = $2 WHERE id = $1 AND assessment_accessible = FALSE")).
		WithArgs("p1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkAccessible(context.Background(), "p1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryMarkAccessibleAlreadyFlipped(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	at := time.Now()
	mock.ExpectExec("UPDATE student_lesson_progress SET assessment_accessible = TRUE").
		WithArgs("p1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkAccessible(context.Background(), "p1", at)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryMarkIncomplete(t *testing.T) {
	db, mock, cleanup := newProgressRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_lesson_progress SET completed = FALSE, incomplete_reason = $2, auto_marked_incomplete_at = $3, assessment_accessible = FALSE, updated_at = $3 WHERE id = $1 AND completed = FALSE AND incomplete_reason IS NULL")).
		WithArgs("p1", "MISSED_GRACE_PERIOD", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkIncomplete(context.Background(), "p1", "MISSED_GRACE_PERIOD", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
