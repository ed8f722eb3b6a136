package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
)

// LeadFlow handles listing, editing, assignment, follow-ups and status transitions of leads
type LeadFlow interface {
	ListLeads(ctx context.Context, req *dto.ListLeadsRequest, actor Actor) (*dto.LeadListResponse, error)
	GetLead(ctx context.Context, leadID string, actor Actor) (*dto.LeadDetailResponse, error)
	CreateLead(ctx context.Context, req *dto.CreateLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	UpdateLead(ctx context.Context, leadID string, req *dto.UpdateLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	AssignLead(ctx context.Context, leadID string, req *dto.AssignLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	TransitionLead(ctx context.Context, leadID string, req *dto.TransitionLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	AddFollowUp(ctx context.Context, leadID string, req *dto.FollowUpRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	GetCallHistory(ctx context.Context, leadID string, actor Actor) (*dto.CallHistoryResponse, error)
	GetTransitionHistory(ctx context.Context, leadID string, actor Actor) (*dto.TransitionHistoryResponse, error)
	ExportLeads(ctx context.Context, req *dto.ListLeadsRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadExportResponse, error)
}

// LeadFlowImpl implements the lead business flow
type LeadFlowImpl struct {
	store       services.LeadAPIClient
	historyRepo repository.LeadStatusHistoryRepository
	auditRepo   repository.AuditLogRepository
	writer      *leadWriter
	now         func() time.Time
}

// NewLeadFlow creates a new lead flow instance
func NewLeadFlow(
	store services.LeadAPIClient,
	historyRepo repository.LeadStatusHistoryRepository,
	auditRepo repository.AuditLogRepository,
) LeadFlow {
	return &LeadFlowImpl{
		store:       store,
		historyRepo: historyRepo,
		auditRepo:   auditRepo,
		writer:      newLeadWriter(store, historyRepo, auditRepo),
		now:         utils.UTCNow,
	}
}

// ListLeads fetches the collection and filters it by the active tab and search
func (f *LeadFlowImpl) ListLeads(ctx context.Context, req *dto.ListLeadsRequest, actor Actor) (*dto.LeadListResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	tab, ok := ResolveTab(actor.Role, req.Tab)
	if !ok {
		ve := NewValidationError()
		ve.Add("tab", fmt.Sprintf("unknown tab %q", req.Tab))
		return nil, ve
	}

	leads, err := f.store.ListLeads(ctx)
	if err != nil {
		return nil, remoteFailure("Failed to fetch leads", err)
	}

	visible := FilterLeads(leads, tab.Status, req.Search)
	return &dto.LeadListResponse{
		ActiveTab: tab.Key,
		Search:    strings.TrimSpace(req.Search),
		Tabs:      BuildTabs(actor.Role, leads),
		Leads:     visible,
		Total:     len(visible),
	}, nil
}

// GetLead opens a lead with its editability map and allowed transitions for the actor
func (f *LeadFlowImpl) GetLead(ctx context.Context, leadID string, actor Actor) (*dto.LeadDetailResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	lead, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}

	allowed := AllowedTransitions(lead.Status, actor.Role)
	resp := &dto.LeadDetailResponse{
		Lead:               lead,
		CallHistory:        lead.DisplayCallHistory(),
		Editable:           EditableFields(lead, actor.Role),
		AllowedTransitions: statusStrings(allowed),
	}
	for _, s := range allowed {
		if s == models.LeadStatusLost {
			resp.LostReasons = lostReasonStrings()
			break
		}
	}
	return resp, nil
}

// CreateLead submits a new lead in status New; assignment given at creation goes through the assignment command
func (f *LeadFlowImpl) CreateLead(ctx context.Context, req *dto.CreateLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	ve := NewValidationError()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		ve.Add(string(models.FieldName), "name is required")
	}
	propertyType := parsePropertyType(req.PropertyType, ve)
	if req.ExpectedBudget != nil && *req.ExpectedBudget < 0 {
		ve.Add(string(models.FieldExpectedBudget), "expected budget must not be negative")
	}
	if err := ve.ErrOrNil(); err != nil {
		return nil, err
	}

	salesRep := utils.TrimmedPtr(req.SalesRep)
	designer := utils.TrimmedPtr(req.Designer)
	wantsAssignment := salesRep != nil || designer != nil
	if wantsAssignment {
		if _, err := CheckTransition(models.LeadStatusNew, models.LeadStatusAssigned, actor.Role); err != nil {
			return nil, err
		}
	}

	lead := models.Lead{
		Name:           name,
		ContactNumber:  utils.TrimmedPtr(req.ContactNumber),
		Email:          utils.TrimmedPtr(req.Email),
		PropertyType:   propertyType,
		ProjectAddress: utils.TrimmedPtr(req.ProjectAddress),
		ExpectedBudget: req.ExpectedBudget,
		Status:         models.LeadStatusNew,
		CallHistory:    []models.CallHistoryEntry{},
		SubmittedBy:    utils.ToPtr(actor.Name),
	}
	if text := utils.TrimmedPtr(req.CallDescription); text != nil {
		patch := followUpPatch(*text, req.NextCall, f.now())
		lead, _ = BuildWriteRequest(lead, patch)
	} else if req.NextCall != nil {
		lead.NextCall = req.NextCall
	}

	created, err := f.store.CreateLead(ctx, lead)
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, f.auditRepo, actor, "", models.AuditActionLeadCreateFailed, "Lead creation failed", false, &errMsg, metadata)
		return nil, remoteFailure("Failed to create lead", err)
	}
	if created != nil {
		if created.Name == "" {
			id := created.LeadID
			*created = lead
			created.LeadID = id
		}
		lead = *created
	}
	_ = createAuditLog(ctx, f.auditRepo, actor, lead.LeadID, models.AuditActionLeadCreated,
		fmt.Sprintf("Lead %q created", lead.Name), true, nil, metadata)

	if wantsAssignment {
		if lead.LeadID == "" {
			return nil, remoteFailure("Lead created without an id; assign it from the list", fmt.Errorf("create response carried no leadId"))
		}
		return f.assign(ctx, lead, salesRep, designer, actor, metadata)
	}

	resp, err := f.writer.refresh(ctx, actor, lead.LeadID, models.LeadStatusNew)
	if err != nil {
		return nil, err
	}
	resp.ChangedFields = []string{string(models.FieldStatus)}
	return resp, nil
}

// UpdateLead applies edit form values; locked fields are refused before anything is sent
func (f *LeadFlowImpl) UpdateLead(ctx context.Context, leadID string, req *dto.UpdateLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := lockLead(leadID); err != nil {
		return nil, err
	}
	defer unlockLead(leadID)

	current, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}

	ve := NewValidationError()
	patch := LeadPatch{
		ContactNumber:   req.ContactNumber,
		Email:           req.Email,
		PropertyType:    parsePropertyType(req.PropertyType, ve),
		ProjectAddress:  req.ProjectAddress,
		ExpectedBudget:  req.ExpectedBudget,
		SalesRep:        req.SalesRep,
		Designer:        req.Designer,
		CallDescription: req.CallDescription,
		NextCall:        req.NextCall,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			ve.Add(string(models.FieldName), "name is required")
		}
		patch.Name = &name
	}
	if req.ExpectedBudget != nil && *req.ExpectedBudget < 0 {
		ve.Add(string(models.FieldExpectedBudget), "expected budget must not be negative")
	}
	if err := ve.ErrOrNil(); err != nil {
		return nil, err
	}

	_, changed := BuildWriteRequest(current, patch)
	if locked := LockedFields(current, actor.Role, changed); len(locked) > 0 {
		return nil, fieldsNotEditable(locked)
	}

	for _, field := range changed {
		switch field {
		case models.FieldSalesRep, models.FieldDesigner:
			assignment, err := applyAssignment(current, patch.SalesRep, patch.Designer, actor.Role)
			if err != nil {
				return nil, err
			}
			patch.SalesRep, patch.Designer, patch.Status = assignment.SalesRep, assignment.Designer, assignment.Status
		case models.FieldCallDescription:
			entry := NewCallHistoryEntry(*patch.CallDescription, patch.NextCall, f.now())
			patch.CallEntry = &entry
		}
	}

	return f.writer.write(ctx, writeRequest{
		actor:        actor,
		metadata:     metadata,
		current:      current,
		patch:        patch,
		action:       models.AuditActionLeadUpdated,
		failedAction: models.AuditActionLeadUpdateFailed,
		description:  "Lead updated",
	})
}

// AssignLead sets personnel on a lead; a New lead becomes Assigned
func (f *LeadFlowImpl) AssignLead(ctx context.Context, leadID string, req *dto.AssignLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := lockLead(leadID); err != nil {
		return nil, err
	}
	defer unlockLead(leadID)

	current, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return f.assign(ctx, current, req.SalesRep, req.Designer, actor, metadata)
}

func (f *LeadFlowImpl) assign(ctx context.Context, current models.Lead, salesRep, designer *string, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	patch, err := applyAssignment(current, salesRep, designer, actor.Role)
	if err != nil {
		if IsTransitionNotAllowed(err) {
			f.writer.reject(ctx, actor, current, models.LeadStatusAssigned, err, metadata)
		}
		return nil, err
	}

	return f.writer.write(ctx, writeRequest{
		actor:        actor,
		metadata:     metadata,
		current:      current,
		patch:        patch,
		action:       models.AuditActionLeadAssigned,
		failedAction: models.AuditActionLeadAssignFailed,
		description:  "Lead assigned",
	})
}

// applyAssignment is the one place assignment and status are coupled:
// assigning personnel to a New lead moves it to Assigned.
func applyAssignment(current models.Lead, salesRep, designer *string, role models.Role) (LeadPatch, error) {
	if !IsEditable(current, role, models.FieldSalesRep) {
		return LeadPatch{}, fieldsNotEditable(models.AssignmentFields)
	}

	if current.Status == models.LeadStatusNew {
		rule, err := CheckTransition(current.Status, models.LeadStatusAssigned, role)
		if err != nil {
			return LeadPatch{}, err
		}
		return ValidateTransitionPayload(rule, TransitionPayload{SalesRep: salesRep, Designer: designer})
	}

	patch := LeadPatch{SalesRep: utils.TrimmedPtr(salesRep), Designer: utils.TrimmedPtr(designer)}
	next, _ := BuildWriteRequest(current, patch)
	if !next.IsAssigned() {
		ve := NewValidationError()
		ve.Add(string(models.FieldSalesRep), ErrAssignmentRequired.Error())
		return LeadPatch{}, ve
	}
	return patch, nil
}

// TransitionLead moves a lead along the rule table with the payload its requirement asks for
func (f *LeadFlowImpl) TransitionLead(ctx context.Context, leadID string, req *dto.TransitionLeadRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := lockLead(leadID); err != nil {
		return nil, err
	}
	defer unlockLead(leadID)

	current, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}

	to := models.LeadStatus(req.Status)
	rule, err := CheckTransition(current.Status, to, actor.Role)
	if err != nil {
		f.writer.reject(ctx, actor, current, to, err, metadata)
		return nil, err
	}

	if rule.Requirement == RequireAssignment {
		return f.assign(ctx, current, req.SalesRep, req.Designer, actor, metadata)
	}

	patch, err := ValidateTransitionPayload(rule, TransitionPayload{
		ReasonForLost: req.ReasonForLost,
		ReasonForJunk: req.ReasonForJunk,
	})
	if err != nil {
		return nil, err
	}

	return f.writer.write(ctx, writeRequest{
		actor:        actor,
		metadata:     metadata,
		current:      current,
		patch:        patch,
		reason:       transitionReason(patch),
		action:       models.AuditActionTransitionApplied,
		failedAction: models.AuditActionTransitionFailed,
		description:  fmt.Sprintf("Lead moved from %s to %s", current.Status, to),
	})
}

// AddFollowUp records a follow-up call while the resolver allows follow-up fields
func (f *LeadFlowImpl) AddFollowUp(ctx context.Context, leadID string, req *dto.FollowUpRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		ve := NewValidationError()
		ve.Add("text", "follow-up text is required")
		return nil, ve
	}
	if err := lockLead(leadID); err != nil {
		return nil, err
	}
	defer unlockLead(leadID)

	current, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !IsEditable(current, actor.Role, models.FieldCallDescription) {
		return nil, fieldsNotEditable(models.FollowUpFields)
	}

	return f.writer.write(ctx, writeRequest{
		actor:        actor,
		metadata:     metadata,
		current:      current,
		patch:        followUpPatch(text, req.NextFollowUp, f.now()),
		action:       models.AuditActionFollowUpRecorded,
		failedAction: models.AuditActionFollowUpFailed,
		description:  "Follow-up recorded",
	})
}

// GetCallHistory returns the lead's calls most recent first
func (f *LeadFlowImpl) GetCallHistory(ctx context.Context, leadID string, actor Actor) (*dto.CallHistoryResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	lead, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return &dto.CallHistoryResponse{
		LeadID:  lead.LeadID,
		Entries: lead.DisplayCallHistory(),
	}, nil
}

// GetTransitionHistory lists the recorded lifecycle writes of a lead
func (f *LeadFlowImpl) GetTransitionHistory(ctx context.Context, leadID string, actor Actor) (*dto.TransitionHistoryResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	lead, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}

	rows, err := f.historyRepo.ListByLead(ctx, lead.LeadID)
	if err != nil {
		return nil, NewBusinessError("TRANSITION_HISTORY_FAILED", "Failed to load transition history", err)
	}

	items := make([]dto.TransitionHistoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.TransitionHistoryItem{
			CorrelationID: r.CorrelationID.String(),
			FromStatus:    r.FromStatus.String(),
			ToStatus:      r.ToStatus.String(),
			ActorName:     r.ActorName,
			ActorRole:     r.ActorRole.String(),
			Reason:        r.Reason,
			ChangedFields: []string(r.ChangedFields),
			Success:       utils.IsTrue(r.Success),
			ErrorMessage:  r.ErrorMessage,
			CreatedAt:     r.CreatedAt,
		})
	}

	return &dto.TransitionHistoryResponse{
		LeadID:             lead.LeadID,
		CurrentStatus:      lead.Status.String(),
		AllowedTransitions: statusStrings(AllowedTransitions(lead.Status, actor.Role)),
		Items:              items,
	}, nil
}

func fieldsNotEditable(fields []models.LeadField) error {
	return NewBusinessErrorf("FIELD_NOT_EDITABLE", "Fields not editable: %s", ErrFieldNotEditable, strings.Join(fieldNames(fields), ", "))
}

func parsePropertyType(value *string, ve *ValidationError) *models.PropertyType {
	v := utils.TrimmedPtr(value)
	if v == nil {
		return nil
	}
	pt := models.PropertyType(*v)
	if !pt.Valid() {
		ve.Add(string(models.FieldPropertyType), fmt.Sprintf("unknown property type %q", *v))
		return nil
	}
	return &pt
}

func transitionReason(patch LeadPatch) *string {
	switch {
	case patch.ReasonForLost != nil:
		return utils.ToPtr(patch.ReasonForLost.String())
	case patch.ReasonForJunk != nil:
		return patch.ReasonForJunk
	}
	return nil
}

func lostReasonStrings() []string {
	out := make([]string, 0, len(models.LostReasons))
	for _, r := range models.LostReasons {
		out = append(out, r.String())
	}
	return out
}
