package handlers

import (
	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// LeadHandlerInterface defines the contract for lead handlers
type LeadHandlerInterface interface {
	ListLeads(c fiber.Ctx) error
	ExportLeads(c fiber.Ctx) error
	CreateLead(c fiber.Ctx) error
	GetLead(c fiber.Ctx) error
	UpdateLead(c fiber.Ctx) error
	AssignLead(c fiber.Ctx) error
	TransitionLead(c fiber.Ctx) error
	AddFollowUp(c fiber.Ctx) error
	GetCallHistory(c fiber.Ctx) error
	GetTransitionHistory(c fiber.Ctx) error
}

// LeadHandler handles lead list, detail and lifecycle requests
type LeadHandler struct {
	baseHandler
	flow businessflow.LeadFlow
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(flow businessflow.LeadFlow) *LeadHandler {
	return &LeadHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// ListLeads
// @Summary List leads
// @Description Role-specific tabs with badge counts and the leads of the active tab filtered by search. Counts ignore search.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param tab query string false "Tab key (defaults to the role's first tab)"
// @Param search query string false "Case-insensitive search over name, contact, email and address"
// @Success 200 {object} dto.APIResponse{data=dto.LeadListResponse} "Leads retrieved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads [get]
func (h *LeadHandler) ListLeads(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.ListLeadsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads")
	defer cancel()

	result, err := h.flow.ListLeads(ctx, &req, actor)
	if err != nil {
		return h.flowError(c, err, "Failed to list leads", "LIST_LEADS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

// ExportLeads
// @Summary Export leads
// @Description Download the active tab, after search, as an xlsx spreadsheet
// @Tags Leads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param tab query string false "Tab key"
// @Param search query string false "Search text"
// @Success 200 {file} file "Spreadsheet"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads/export [get]
func (h *LeadHandler) ExportLeads(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.ListLeadsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/export")
	defer cancel()

	export, err := h.flow.ExportLeads(ctx, &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to export leads", "EXPORT_LEADS_FAILED")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Attachment(export.Filename)
	return c.Status(fiber.StatusOK).Send(export.Content)
}

// CreateLead
// @Summary Create lead
// @Description Create a lead from the console. Managers may assign personnel at creation, which starts the lead as Assigned.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateLeadRequest true "Lead profile"
// @Success 201 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Lead created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Field not editable by this role"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads [post]
func (h *LeadHandler) CreateLead(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.CreateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads")
	defer cancel()

	result, err := h.flow.CreateLead(ctx, &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to create lead", "CREATE_LEAD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Lead created successfully", result)
}

// GetLead
// @Summary Get lead
// @Description Lead detail with call history, per-field editability and allowed transitions for the caller's role
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadDetailResponse} "Lead retrieved"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads/{id} [get]
func (h *LeadHandler) GetLead(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id")
	defer cancel()

	result, err := h.flow.GetLead(ctx, c.Params("id"), actor)
	if err != nil {
		return h.flowError(c, err, "Failed to get lead", "GET_LEAD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", result)
}

// UpdateLead
// @Summary Update lead
// @Description Edit profile fields. Only fields that differ from the stored lead are written; an unchanged form is reported as cancelled.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body dto.UpdateLeadRequest true "Changed fields"
// @Success 200 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Lead updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Field not editable"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 409 {object} dto.APIResponse "Another change in progress"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads/{id} [put]
func (h *LeadHandler) UpdateLead(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.UpdateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id")
	defer cancel()

	result, err := h.flow.UpdateLead(ctx, c.Params("id"), &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to update lead", "UPDATE_LEAD_FAILED")
	}
	if result.Cancelled {
		return h.SuccessResponse(c, fiber.StatusOK, "No changes to save", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead updated successfully", result)
}

// AssignLead
// @Summary Assign lead
// @Description Assign a sales rep and/or designer. A New lead moves to Assigned.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body dto.AssignLeadRequest true "Personnel"
// @Success 200 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Lead assigned"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Not allowed for this role"
// @Failure 409 {object} dto.APIResponse "Transition not allowed"
// @Router /api/v1/leads/{id}/assign [post]
func (h *LeadHandler) AssignLead(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.AssignLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/assign")
	defer cancel()

	result, err := h.flow.AssignLead(ctx, c.Params("id"), &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to assign lead", "ASSIGN_LEAD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead assigned successfully", result)
}

// TransitionLead
// @Summary Change lead status
// @Description Move a lead to another status. Lost requires reason_for_lost; Converted goes through the conversion form.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body dto.TransitionLeadRequest true "Target status and payload"
// @Success 200 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Status changed"
// @Failure 400 {object} dto.APIResponse "Validation error or missing reason"
// @Failure 409 {object} dto.APIResponse "Transition not allowed"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads/{id}/transitions [post]
func (h *LeadHandler) TransitionLead(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.TransitionLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/transitions")
	defer cancel()

	result, err := h.flow.TransitionLead(ctx, c.Params("id"), &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to change lead status", "TRANSITION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead status changed successfully", result)
}

// AddFollowUp
// @Summary Add follow-up
// @Description Append a follow-up call to the lead's call history
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body dto.FollowUpRequest true "Follow-up note"
// @Success 200 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Follow-up recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Follow-ups not allowed in this status"
// @Router /api/v1/leads/{id}/follow-ups [post]
func (h *LeadHandler) AddFollowUp(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.FollowUpRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/follow-ups")
	defer cancel()

	result, err := h.flow.AddFollowUp(ctx, c.Params("id"), &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to record follow-up", "FOLLOW_UP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Follow-up recorded successfully", result)
}

// GetCallHistory
// @Summary Call history
// @Description Recorded calls of a lead, most recent first
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.CallHistoryResponse} "Call history retrieved"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{id}/call-history [get]
func (h *LeadHandler) GetCallHistory(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/call-history")
	defer cancel()

	result, err := h.flow.GetCallHistory(ctx, c.Params("id"), actor)
	if err != nil {
		return h.flowError(c, err, "Failed to get call history", "CALL_HISTORY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Call history retrieved successfully", result)
}

// GetTransitionHistory
// @Summary Transition history
// @Description Recorded status changes of a lead, oldest first, with the transitions currently allowed
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.TransitionHistoryResponse} "Transition history retrieved"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{id}/transitions [get]
func (h *LeadHandler) GetTransitionHistory(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/transitions")
	defer cancel()

	result, err := h.flow.GetTransitionHistory(ctx, c.Params("id"), actor)
	if err != nil {
		return h.flowError(c, err, "Failed to get transition history", "TRANSITION_HISTORY_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Transition history retrieved successfully", result)
}
