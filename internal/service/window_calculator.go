package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-ilp-api/internal/models"
	"github.com/noah-isme/sma-ilp-api/pkg/config"
)

const clockLayout = "15:04"

// WindowCalculator computes per-period assessment windows and validates
// schedule slots against the allowed time-of-day ranges. Stateless and
// deterministic given its configuration.
//
// Window rules:
//   - opens preWindow minutes before the period starts
//   - strict deadline is graceOffset hours after the period ends
//   - lateTolerance minutes past the strict deadline are accepted but late
//   - Sunday slots are never valid; Saturday and weekday slots must fit
//     their configured ranges
type WindowCalculator struct {
	preWindow     time.Duration
	graceOffset   time.Duration
	lateTolerance time.Duration

	weekdayStart  clockTime
	weekdayEnd    clockTime
	saturdayStart clockTime
	saturdayEnd   clockTime
}

// clockTime is a time-of-day without a date.
type clockTime struct {
	hour   int
	minute int
}

func (c clockTime) before(o clockTime) bool {
	return c.hour < o.hour || (c.hour == o.hour && c.minute < o.minute)
}

func (c clockTime) after(o clockTime) bool {
	return o.before(c)
}

func parseClock(raw string) (clockTime, error) {
	t, err := time.Parse(clockLayout, raw)
	if err != nil {
		return clockTime{}, fmt.Errorf("parse time of day %q: %w", raw, err)
	}
	return clockTime{hour: t.Hour(), minute: t.Minute()}, nil
}

// NewWindowCalculator builds a calculator from validated configuration.
func NewWindowCalculator(cfg config.AssessmentConfig) (*WindowCalculator, error) {
	if cfg.PreWindowMinutes <= 0 || cfg.GraceOffsetHours <= 0 || cfg.LateToleranceMinutes <= 0 {
		return nil, fmt.Errorf("assessment offsets must be positive: pre=%d grace=%d tolerance=%d",
			cfg.PreWindowMinutes, cfg.GraceOffsetHours, cfg.LateToleranceMinutes)
	}

	calc := &WindowCalculator{
		preWindow:     time.Duration(cfg.PreWindowMinutes) * time.Minute,
		graceOffset:   time.Duration(cfg.GraceOffsetHours) * time.Hour,
		lateTolerance: time.Duration(cfg.LateToleranceMinutes) * time.Minute,
	}

	var err error
	if calc.weekdayStart, err = parseClock(cfg.WeekdayStart); err != nil {
		return nil, err
	}
	if calc.weekdayEnd, err = parseClock(cfg.WeekdayEnd); err != nil {
		return nil, err
	}
	if calc.saturdayStart, err = parseClock(cfg.SaturdayStart); err != nil {
		return nil, err
	}
	if calc.saturdayEnd, err = parseClock(cfg.SaturdayEnd); err != nil {
		return nil, err
	}

	return calc, nil
}

// ComputeWindow derives the assessment window for a scheduled period.
func (w *WindowCalculator) ComputeWindow(scheduledDate time.Time, periodStart, periodEnd string) (models.AssessmentWindow, error) {
	if scheduledDate.IsZero() {
		return models.AssessmentWindow{}, fmt.Errorf("scheduled date is required")
	}
	start, err := parseClock(periodStart)
	if err != nil {
		return models.AssessmentWindow{}, err
	}
	end, err := parseClock(periodEnd)
	if err != nil {
		return models.AssessmentWindow{}, err
	}

	openAt := combine(scheduledDate, start).Add(-w.preWindow)
	strictDeadline := combine(scheduledDate, end).Add(w.graceOffset)
	graceDeadline := strictDeadline.Add(w.lateTolerance)

	return models.AssessmentWindow{
		OpenAt:         openAt,
		StrictDeadline: strictDeadline,
		GraceDeadline:  graceDeadline,
	}, nil
}

// IsOpen reports whether now falls inside [OpenAt, StrictDeadline].
func (w *WindowCalculator) IsOpen(window models.AssessmentWindow, now time.Time) bool {
	return !now.Before(window.OpenAt) && !now.After(window.StrictDeadline)
}

// IsWithinGrace reports whether a submission landed in the late-but-tolerated
// interval (StrictDeadline, GraceDeadline].
func (w *WindowCalculator) IsWithinGrace(window models.AssessmentWindow, submittedAt time.Time) bool {
	return submittedAt.After(window.StrictDeadline) && !submittedAt.After(window.GraceDeadline)
}

// IsLate reports whether a submission missed even the grace deadline.
func (w *WindowCalculator) IsLate(window models.AssessmentWindow, submittedAt time.Time) bool {
	return submittedAt.After(window.GraceDeadline)
}

// MinutesRemaining returns whole minutes until the strict deadline, clamped
// at zero once the deadline has passed.
func (w *WindowCalculator) MinutesRemaining(window models.AssessmentWindow, now time.Time) int {
	if now.After(window.StrictDeadline) {
		return 0
	}
	return int(window.StrictDeadline.Sub(now) / time.Minute)
}

// Classify maps now onto the window lifecycle. The check order matters:
// EXPIRED is tested before GRACE_PERIOD so an instant equal to the grace
// deadline is never double-classified.
func (w *WindowCalculator) Classify(window models.AssessmentWindow, now time.Time) models.WindowState {
	switch {
	case now.Before(window.OpenAt):
		return models.WindowStateNotYetOpen
	case now.After(window.GraceDeadline):
		return models.WindowStateExpired
	case now.After(window.StrictDeadline):
		return models.WindowStateGracePeriod
	default:
		return models.WindowStateOpen
	}
}

// IsValidSlot checks a proposed period against the day-of-week policy.
// Sunday is never allowed; Saturday and weekday slots must lie inside their
// configured ranges, bounds inclusive.
func (w *WindowCalculator) IsValidSlot(date time.Time, periodStart, periodEnd string) (bool, error) {
	if date.IsZero() {
		return false, fmt.Errorf("slot date is required")
	}
	start, err := parseClock(periodStart)
	if err != nil {
		return false, err
	}
	end, err := parseClock(periodEnd)
	if err != nil {
		return false, err
	}

	switch date.Weekday() {
	case time.Sunday:
		return false, nil
	case time.Saturday:
		return !start.before(w.saturdayStart) && !end.after(w.saturdayEnd), nil
	default:
		return !start.before(w.weekdayStart) && !end.after(w.weekdayEnd), nil
	}
}

func combine(date time.Time, clock clockTime) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.hour, clock.minute, 0, 0, date.Location())
}
