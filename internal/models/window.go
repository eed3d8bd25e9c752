package models

import "time"

// AssessmentWindow holds the three temporal boundaries of an assessment's
// lifecycle. Immutable once computed.
type AssessmentWindow struct {
	OpenAt         time.Time `json:"open_at"`
	StrictDeadline time.Time `json:"strict_deadline"`
	GraceDeadline  time.Time `json:"grace_deadline"`
}

// WindowState classifies an instant against an assessment window.
type WindowState string

const (
	WindowStateNotYetOpen  WindowState = "NOT_YET_OPEN"
	WindowStateOpen        WindowState = "OPEN"
	WindowStateGracePeriod WindowState = "GRACE_PERIOD"
	WindowStateExpired     WindowState = "EXPIRED"
)

// AccessibilityStatus is the derived lifecycle state of a progress record.
// Never persisted; projected on demand from the stored flags and the clock.
type AccessibilityStatus string

const (
	AccessibilityNotFound          AccessibilityStatus = "NOT_FOUND"
	AccessibilityNotYetAvailable   AccessibilityStatus = "NOT_YET_AVAILABLE"
	AccessibilityPendingActivation AccessibilityStatus = "PENDING_ACTIVATION"
	AccessibilityAvailable         AccessibilityStatus = "AVAILABLE"
	AccessibilityCompleted         AccessibilityStatus = "COMPLETED"
	AccessibilityExpired           AccessibilityStatus = "EXPIRED"
)
