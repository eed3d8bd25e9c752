package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ilp-api/internal/models"
	"github.com/noah-isme/sma-ilp-api/internal/notify"
)

type progressStoreStub struct {
	items   map[string]*models.LessonProgress
	markErr error
}

func (s *progressStoreStub) FindCandidatesForOpening(ctx context.Context, now, dateFrom, dateTo time.Time) ([]models.LessonProgress, error) {
	var out []models.LessonProgress
	for _, p := range s.items {
		if !p.AssessmentAccessible && !p.WindowOpenAt.After(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *progressStoreStub) MarkAccessible(ctx context.Context, id string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	p, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.AssessmentAccessible = true
	p.UpdatedAt = at
	return nil
}

func (s *progressStoreStub) FindByID(ctx context.Context, id string) (*models.LessonProgress, error) {
	if p, ok := s.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type failingStore struct {
	progressStoreStub
}

func (s *failingStore) FindCandidatesForOpening(ctx context.Context, now, dateFrom, dateTo time.Time) ([]models.LessonProgress, error) {
	return nil, errors.New("connection refused")
}

type publisherStub struct {
	events []notify.Event
	err    error
}

func (s *publisherStub) Publish(ctx context.Context, event notify.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// Sweep reference time: Tuesday 2025-09-02 16:10 UTC.
var sweepNow = time.Date(2025, 9, 2, 16, 10, 0, 0, time.UTC)

func progressFixture(id string) *models.LessonProgress {
	return &models.LessonProgress{
		ID:                     id,
		StudentID:              "student-1",
		SubjectID:              "subject-1",
		SubjectName:            "Mathematics",
		TopicTitle:             "Quadratic Equations",
		ScheduledDate:          tuesday,
		PeriodStart:            "16:00",
		PeriodEnd:              "18:00",
		WindowOpenAt:           time.Date(2025, 9, 2, 15, 30, 0, 0, time.UTC),
		WindowDeadline:         time.Date(2025, 9, 2, 20, 0, 0, 0, time.UTC),
		PeriodSequence:         1,
		TotalPeriodsInSequence: 3,
	}
}

func newAccessibilityFixture(t *testing.T, store progressStore, pub eventPublisher) *AccessibilityService {
	t.Helper()
	svc := NewAccessibilityService(store, newTestCalculator(t), pub, nil, zap.NewNop())
	svc.now = func() time.Time { return sweepNow }
	return svc
}

func TestOpenAvailableAssessments(t *testing.T) {
	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"p1": progressFixture("p1"),
		"p2": progressFixture("p2"),
	}}
	pub := &publisherStub{}
	svc := newAccessibilityFixture(t, store, pub)

	opened, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, opened)
	assert.True(t, store.items["p1"].AssessmentAccessible)
	assert.True(t, store.items["p2"].AssessmentAccessible)
	assert.Len(t, pub.events, 2)
}

func TestOpenAvailableAssessmentsIdempotent(t *testing.T) {
	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"p1": progressFixture("p1"),
	}}
	svc := newAccessibilityFixture(t, store, &publisherStub{})

	opened, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, opened)

	opened, err = svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, opened)
}

func TestOpenAvailableAssessmentsSkipsExpired(t *testing.T) {
	expired := progressFixture("p1")
	expired.WindowDeadline = sweepNow.Add(-time.Minute)
	store := &progressStoreStub{items: map[string]*models.LessonProgress{"p1": expired}}
	pub := &publisherStub{}
	svc := newAccessibilityFixture(t, store, pub)

	opened, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, opened)
	assert.False(t, store.items["p1"].AssessmentAccessible)
	assert.Empty(t, pub.events)
}

func TestOpenAvailableAssessmentsSkipsTerminal(t *testing.T) {
	reason := models.IncompleteReasonMissedGrace
	blocked := progressFixture("p1")
	blocked.IncompleteReason = &reason
	done := progressFixture("p2")
	done.Completed = true
	store := &progressStoreStub{items: map[string]*models.LessonProgress{"p1": blocked, "p2": done}}
	svc := newAccessibilityFixture(t, store, &publisherStub{})

	opened, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, opened)
	assert.False(t, store.items["p1"].AssessmentAccessible)
	assert.False(t, store.items["p2"].AssessmentAccessible)
}

func TestOpenAvailableAssessmentsToleratesNotificationFailure(t *testing.T) {
	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"p1": progressFixture("p1"),
	}}
	pub := &publisherStub{err: errors.New("broker unreachable")}
	svc := newAccessibilityFixture(t, store, pub)

	opened, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, opened)
	assert.True(t, store.items["p1"].AssessmentAccessible)
}

func TestOpenAvailableAssessmentsStoreFailureAborts(t *testing.T) {
	svc := newAccessibilityFixture(t, &failingStore{}, &publisherStub{})

	opened, err := svc.OpenAvailableAssessments(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, opened)
}

func TestAvailabilityNotificationContent(t *testing.T) {
	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"p1": progressFixture("p1"),
	}}
	pub := &publisherStub{}
	svc := newAccessibilityFixture(t, store, pub)

	_, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.events, 1)

	event := pub.events[0]
	assert.Equal(t, notify.EventAssessmentAvailable, event.Type)
	assert.Equal(t, "student-1", event.RecipientID)
	assert.Equal(t, "Mathematics Assessment Available", event.Title)
	// 3h50m remaining at 16:10 -> phrased in hours.
	assert.Contains(t, event.Message, "Time remaining: 3 hours")
	assert.Contains(t, event.Message, "Deadline: 20:00 (strict)")
	assert.Contains(t, event.Message, "Period 1 of 3")
	assert.Equal(t, store.items["p1"].WindowDeadline, event.Deadline)
}

func TestAvailabilityNotificationMinutePhrase(t *testing.T) {
	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"p1": progressFixture("p1"),
	}}
	pub := &publisherStub{}
	svc := newAccessibilityFixture(t, store, pub)
	svc.now = func() time.Time { return time.Date(2025, 9, 2, 19, 15, 0, 0, time.UTC) }

	_, err := svc.OpenAvailableAssessments(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Contains(t, pub.events[0].Message, "Time remaining: 45 minutes")
}

func TestIsCurrentlyAccessible(t *testing.T) {
	open := progressFixture("open")
	open.AssessmentAccessible = true
	pending := progressFixture("pending")
	lapsed := progressFixture("lapsed")
	lapsed.AssessmentAccessible = true
	lapsed.WindowDeadline = sweepNow.Add(-time.Minute)

	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"open": open, "pending": pending, "lapsed": lapsed,
	}}
	svc := newAccessibilityFixture(t, store, &publisherStub{})

	ctx := context.Background()
	assert.True(t, svc.IsCurrentlyAccessible(ctx, "open"))
	assert.False(t, svc.IsCurrentlyAccessible(ctx, "pending"), "stored flag false")
	assert.False(t, svc.IsCurrentlyAccessible(ctx, "lapsed"), "flag not trusted past deadline")
	assert.False(t, svc.IsCurrentlyAccessible(ctx, "missing"))
}

func TestGetAccessibilityStatusPrecedence(t *testing.T) {
	reason := models.IncompleteReasonMissedGrace

	completedExpired := progressFixture("completed")
	completedExpired.Completed = true
	completedExpired.WindowDeadline = sweepNow.Add(-time.Hour)

	marked := progressFixture("marked")
	marked.IncompleteReason = &reason

	future := progressFixture("future")
	future.WindowOpenAt = sweepNow.Add(time.Hour)

	lapsed := progressFixture("lapsed")
	lapsed.WindowDeadline = sweepNow.Add(-time.Minute)
	lapsed.AssessmentAccessible = true

	available := progressFixture("available")
	available.AssessmentAccessible = true

	pending := progressFixture("pending")

	store := &progressStoreStub{items: map[string]*models.LessonProgress{
		"completed": completedExpired,
		"marked":    marked,
		"future":    future,
		"lapsed":    lapsed,
		"available": available,
		"pending":   pending,
	}}
	svc := newAccessibilityFixture(t, store, &publisherStub{})

	ctx := context.Background()
	assert.Equal(t, models.AccessibilityCompleted, svc.GetAccessibilityStatus(ctx, "completed"),
		"completion wins over expired window")
	assert.Equal(t, models.AccessibilityExpired, svc.GetAccessibilityStatus(ctx, "marked"))
	assert.Equal(t, models.AccessibilityNotYetAvailable, svc.GetAccessibilityStatus(ctx, "future"))
	assert.Equal(t, models.AccessibilityExpired, svc.GetAccessibilityStatus(ctx, "lapsed"))
	assert.Equal(t, models.AccessibilityAvailable, svc.GetAccessibilityStatus(ctx, "available"))
	assert.Equal(t, models.AccessibilityPendingActivation, svc.GetAccessibilityStatus(ctx, "pending"))
	assert.Equal(t, models.AccessibilityNotFound, svc.GetAccessibilityStatus(ctx, "missing"))
}
