package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-ilp-api/internal/dto"
	"github.com/noah-isme/sma-ilp-api/internal/models"
	appErrors "github.com/noah-isme/sma-ilp-api/pkg/errors"
	"github.com/noah-isme/sma-ilp-api/pkg/response"
)

type accessibilityService interface {
	GetAccessibilityStatus(ctx context.Context, id string) models.AccessibilityStatus
	IsCurrentlyAccessible(ctx context.Context, id string) bool
	FindProgress(ctx context.Context, id string) (*models.LessonProgress, error)
	Window(progress *models.LessonProgress) models.AssessmentWindow
	OpenAvailableAssessments(ctx context.Context) (int, error)
}

type expiryService interface {
	ProcessExpiredAssessments(ctx context.Context) (int, error)
}

type slotPolicy interface {
	IsValidSlot(date time.Time, periodStart, periodEnd string) (bool, error)
	Classify(window models.AssessmentWindow, now time.Time) models.WindowState
	MinutesRemaining(window models.AssessmentWindow, now time.Time) int
}

// AccessibilityHandler exposes the accessibility query and sweep endpoints.
type AccessibilityHandler struct {
	service   accessibilityService
	expiry    expiryService
	slots     slotPolicy
	validator *validator.Validate
	now       func() time.Time
}

// NewAccessibilityHandler builds a new handler.
func NewAccessibilityHandler(service accessibilityService, expiry expiryService, slots slotPolicy, validate *validator.Validate) *AccessibilityHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AccessibilityHandler{
		service:   service,
		expiry:    expiry,
		slots:     slots,
		validator: validate,
		now:       time.Now,
	}
}

// Register mounts the routes on the given group.
func (h *AccessibilityHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/progress/:id/accessibility", h.GetAccessibility)
	rg.POST("/slots/validate", h.ValidateSlot)
	rg.POST("/sweeps/opener", h.TriggerOpener)
	rg.POST("/sweeps/expiry", h.TriggerExpiry)
}

// GetAccessibility returns the derived status plus the live window for a
// progress record.
func (h *AccessibilityHandler) GetAccessibility(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	status := h.service.GetAccessibilityStatus(ctx, id)
	if status == models.AccessibilityNotFound {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "progress record not found"))
		return
	}

	progress, err := h.service.FindProgress(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	now := h.now()
	window := h.service.Window(progress)
	resp := dto.AccessibilityResponse{
		ProgressID:       progress.ID,
		Status:           status,
		Accessible:       h.service.IsCurrentlyAccessible(ctx, id),
		WindowState:      h.slots.Classify(window, now),
		Window:           window,
		MinutesRemaining: h.slots.MinutesRemaining(window, now),
		PeriodSequence:   progress.PeriodSequence,
		TotalPeriods:     progress.TotalPeriodsInSequence,
	}
	response.JSON(c, http.StatusOK, resp)
}

// ValidateSlot checks a proposed period slot against the day-of-week policy.
func (h *AccessibilityHandler) ValidateSlot(c *gin.Context) {
	var req dto.SlotValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot date"))
		return
	}

	valid, err := h.slots.IsValidSlot(date, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot times"))
		return
	}

	response.JSON(c, http.StatusOK, dto.SlotValidationResponse{
		Date:        req.Date,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Valid:       valid,
	})
}

// TriggerOpener runs one opener sweep on demand.
func (h *AccessibilityHandler) TriggerOpener(c *gin.Context) {
	opened, err := h.service.OpenAvailableAssessments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SweepResponse{Task: "opener", Processed: opened, RanAt: h.now()})
}

// TriggerExpiry runs one grace expiry sweep on demand.
func (h *AccessibilityHandler) TriggerExpiry(c *gin.Context) {
	processed, err := h.expiry.ProcessExpiredAssessments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SweepResponse{Task: "expiry", Processed: processed, RanAt: h.now()})
}
