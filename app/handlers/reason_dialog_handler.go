package handlers

import (
	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ReasonDialogHandlerInterface defines the contract for Lost/Junk dialog handlers
type ReasonDialogHandlerInterface interface {
	Open(c fiber.Ctx) error
	Choose(c fiber.Ctx) error
	Submit(c fiber.Ctx) error
	Cancel(c fiber.Ctx) error
}

// ReasonDialogHandler drives the two-step Lost/Junk reason capture
type ReasonDialogHandler struct {
	baseHandler
	flow businessflow.ReasonCaptureFlow
}

// NewReasonDialogHandler creates a new reason dialog handler
func NewReasonDialogHandler(flow businessflow.ReasonCaptureFlow) *ReasonDialogHandler {
	return &ReasonDialogHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// Open
// @Summary Open reason dialog
// @Description Start a Lost or Junk dialog for a lead. Fails when the transition is not allowed from the lead's current status.
// @Tags Reason Dialog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body dto.OpenReasonDialogRequest true "Dialog kind"
// @Success 200 {object} dto.APIResponse{data=dto.ReasonDialogResponse} "Dialog opened"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Transition not allowed"
// @Router /api/v1/leads/{id}/reason-dialog [post]
func (h *ReasonDialogHandler) Open(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.OpenReasonDialogRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/reason-dialog")
	defer cancel()

	result, err := h.flow.OpenReasonDialog(ctx, c.Params("id"), &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to open reason dialog", "REASON_DIALOG_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reason dialog opened", result)
}

// Choose
// @Summary Choose reason
// @Description Set the reason of an open dialog. Lost reasons must come from the fixed list.
// @Tags Reason Dialog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body dto.ChooseReasonRequest true "Reason"
// @Success 200 {object} dto.APIResponse{data=dto.ReasonDialogResponse} "Reason set"
// @Failure 400 {object} dto.APIResponse "Invalid reason"
// @Failure 404 {object} dto.APIResponse "No open dialog"
// @Router /api/v1/leads/{id}/reason-dialog [put]
func (h *ReasonDialogHandler) Choose(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.ChooseReasonRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/reason-dialog")
	defer cancel()

	result, err := h.flow.ChooseReason(ctx, c.Params("id"), &req, actor)
	if err != nil {
		return h.flowError(c, err, "Failed to set reason", "REASON_DIALOG_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reason set", result)
}

// Submit
// @Summary Submit reason dialog
// @Description Apply the Lost or Junk transition with the chosen reason
// @Tags Reason Dialog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Lead closed"
// @Failure 400 {object} dto.APIResponse "Missing reason"
// @Failure 404 {object} dto.APIResponse "No open dialog"
// @Failure 409 {object} dto.APIResponse "Transition no longer allowed"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads/{id}/reason-dialog/submit [post]
func (h *ReasonDialogHandler) Submit(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/reason-dialog/submit")
	defer cancel()

	result, err := h.flow.SubmitReason(ctx, c.Params("id"), actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to submit reason", "REASON_DIALOG_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead status changed successfully", result)
}

// Cancel
// @Summary Cancel reason dialog
// @Description Discard an open dialog without changing the lead
// @Tags Reason Dialog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} dto.APIResponse "Dialog cancelled"
// @Router /api/v1/leads/{id}/reason-dialog [delete]
func (h *ReasonDialogHandler) Cancel(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/reason-dialog")
	defer cancel()

	if err := h.flow.CancelReasonDialog(ctx, c.Params("id"), actor, h.metadata(c)); err != nil {
		return h.flowError(c, err, "Failed to cancel reason dialog", "REASON_DIALOG_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reason dialog cancelled", nil)
}
