package dto

import (
	"time"

	"github.com/noah-isme/sma-ilp-api/internal/models"
)

// AccessibilityResponse describes the live accessibility state of one
// progress record.
type AccessibilityResponse struct {
	ProgressID       string                     `json:"progress_id"`
	Status           models.AccessibilityStatus `json:"status"`
	Accessible       bool                       `json:"accessible"`
	WindowState      models.WindowState         `json:"window_state"`
	Window           models.AssessmentWindow    `json:"window"`
	MinutesRemaining int                        `json:"minutes_remaining"`
	PeriodSequence   int                        `json:"period_sequence"`
	TotalPeriods     int                        `json:"total_periods_in_sequence"`
}

// SlotValidationRequest proposes a period slot for schedule creation.
type SlotValidationRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	PeriodStart string `json:"period_start" validate:"required"`
	PeriodEnd   string `json:"period_end" validate:"required"`
}

// SlotValidationResponse reports the policy outcome for a proposed slot.
type SlotValidationResponse struct {
	Date        string `json:"date"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Valid       bool   `json:"valid"`
}

// SweepResponse reports the outcome of a manually triggered sweep.
type SweepResponse struct {
	Task      string    `json:"task"`
	Processed int       `json:"processed"`
	RanAt     time.Time `json:"ran_at"`
}
