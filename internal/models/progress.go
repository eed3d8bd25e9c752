package models

import "time"

// IncompleteReasonMissedGrace marks a record whose grace deadline passed
// without a submission. Set only by the grace expiry sweep.
const IncompleteReasonMissedGrace = "MISSED_GRACE_PERIOD"

// LessonProgress is one scheduled lesson/assessment occurrence for one
// student. Created by schedule generation; this service only ever mutates the
// accessibility flag (opener sweep) or the incomplete fields (expiry sweep).
// Completion is owned by the submission flow.
type LessonProgress struct {
	ID                     string     `db:"id" json:"id"`
	StudentID              string     `db:"student_id" json:"student_id"`
	SubjectID              string     `db:"subject_id" json:"subject_id"`
	SubjectName            string     `db:"subject_name" json:"subject_name"`
	TopicTitle             string     `db:"topic_title" json:"topic_title"`
	ScheduledDate          time.Time  `db:"scheduled_date" json:"scheduled_date"`
	PeriodStart            string     `db:"period_start" json:"period_start"`
	PeriodEnd              string     `db:"period_end" json:"period_end"`
	WindowOpenAt           time.Time  `db:"window_open_at" json:"window_open_at"`
	WindowDeadline         time.Time  `db:"window_deadline" json:"window_deadline"`
	Completed              bool       `db:"completed" json:"completed"`
	CompletedAt            *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	IncompleteReason       *string    `db:"incomplete_reason" json:"incomplete_reason,omitempty"`
	AutoMarkedIncompleteAt *time.Time `db:"auto_marked_incomplete_at" json:"auto_marked_incomplete_at,omitempty"`
	AssessmentAccessible   bool       `db:"assessment_accessible" json:"assessment_accessible"`
	PeriodSequence         int        `db:"period_sequence" json:"period_sequence"`
	TotalPeriodsInSequence int        `db:"total_periods_in_sequence" json:"total_periods_in_sequence"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the record is frozen for accessibility processing.
func (p *LessonProgress) Terminal() bool {
	return p.Completed || p.IncompleteReason != nil
}
