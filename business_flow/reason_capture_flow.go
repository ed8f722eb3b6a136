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

// ReasonCaptureFlow drives the Lost/Junk dialog: open, choose, then submit or cancel
type ReasonCaptureFlow interface {
	OpenReasonDialog(ctx context.Context, leadID string, req *dto.OpenReasonDialogRequest, actor Actor, metadata *ClientMetadata) (*dto.ReasonDialogResponse, error)
	ChooseReason(ctx context.Context, leadID string, req *dto.ChooseReasonRequest, actor Actor) (*dto.ReasonDialogResponse, error)
	SubmitReason(ctx context.Context, leadID string, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	CancelReasonDialog(ctx context.Context, leadID string, actor Actor, metadata *ClientMetadata) error
}

// ReasonCaptureFlowImpl implements the reason dialog business flow
type ReasonCaptureFlowImpl struct {
	drafts    ReasonDraftStore
	auditRepo repository.AuditLogRepository
	writer    *leadWriter
	ttl       time.Duration
	now       func() time.Time
}

// NewReasonCaptureFlow creates a new reason capture flow instance
func NewReasonCaptureFlow(
	store services.LeadAPIClient,
	drafts ReasonDraftStore,
	historyRepo repository.LeadStatusHistoryRepository,
	auditRepo repository.AuditLogRepository,
	ttl time.Duration,
) ReasonCaptureFlow {
	if ttl <= 0 {
		ttl = utils.ReasonDraftTTL
	}
	return &ReasonCaptureFlowImpl{
		drafts:    drafts,
		auditRepo: auditRepo,
		writer:    newLeadWriter(store, historyRepo, auditRepo),
		ttl:       ttl,
		now:       utils.UTCNow,
	}
}

// OpenReasonDialog starts a dialog after checking the lead may move to the target status
func (f *ReasonCaptureFlowImpl) OpenReasonDialog(ctx context.Context, leadID string, req *dto.OpenReasonDialogRequest, actor Actor, metadata *ClientMetadata) (*dto.ReasonDialogResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	kind := ReasonKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	to, err := kind.Target()
	if err != nil {
		return nil, err
	}

	current, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if _, err := CheckTransition(current.Status, to, actor.Role); err != nil {
		f.writer.reject(ctx, actor, current, to, err, metadata)
		return nil, err
	}

	now := f.now()
	draft := &ReasonDraft{
		LeadID:     current.LeadID,
		Kind:       kind,
		FromStatus: current.Status,
		OpenedAt:   now,
		ExpiresAt:  now.Add(f.ttl),
	}
	if err := f.drafts.Put(ctx, actor.Name, draft, f.ttl); err != nil {
		return nil, err
	}

	_ = createAuditLog(ctx, f.auditRepo, actor, current.LeadID, models.AuditActionReasonDialogOpened,
		fmt.Sprintf("%s dialog opened", kind), true, nil, metadata)

	return dialogResponse(draft), nil
}

// ChooseReason records the selected or typed reason on the open dialog
func (f *ReasonCaptureFlowImpl) ChooseReason(ctx context.Context, leadID string, req *dto.ChooseReasonRequest, actor Actor) (*dto.ReasonDialogResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	draft, err := f.openDraft(ctx, leadID, actor)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	switch draft.Kind {
	case ReasonKindLost:
		if reason == "" {
			draft.Reason = nil
			break
		}
		if !models.LostReason(reason).Valid() {
			ve := NewValidationError()
			ve.Add(string(models.FieldReasonForLost), ErrInvalidLostReason.Error())
			return nil, ve
		}
		draft.Reason = &reason
	case ReasonKindJunk:
		draft.Reason = &reason
	}

	ttl := draft.ExpiresAt.Sub(f.now())
	if ttl <= 0 {
		return nil, draftNotFound(leadID)
	}
	if err := f.drafts.Put(ctx, actor.Name, draft, ttl); err != nil {
		return nil, err
	}

	return dialogResponse(draft), nil
}

// SubmitReason rechecks the transition against the current record and writes it
func (f *ReasonCaptureFlowImpl) SubmitReason(ctx context.Context, leadID string, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	draft, err := f.openDraft(ctx, leadID, actor)
	if err != nil {
		return nil, err
	}
	to, err := draft.Kind.Target()
	if err != nil {
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

	rule, err := CheckTransition(current.Status, to, actor.Role)
	if err != nil {
		f.writer.reject(ctx, actor, current, to, err, metadata)
		return nil, err
	}

	payload := TransitionPayload{}
	if draft.Kind == ReasonKindLost {
		payload.ReasonForLost = draft.Reason
	} else {
		payload.ReasonForJunk = draft.Reason
	}
	patch, err := ValidateTransitionPayload(rule, payload)
	if err != nil {
		return nil, err
	}

	resp, err := f.writer.write(ctx, writeRequest{
		actor:        actor,
		metadata:     metadata,
		current:      current,
		patch:        patch,
		reason:       transitionReason(patch),
		action:       models.AuditActionTransitionApplied,
		failedAction: models.AuditActionTransitionFailed,
		description:  fmt.Sprintf("Lead moved from %s to %s", current.Status, to),
	})
	if err != nil {
		return nil, err
	}

	_ = f.drafts.Delete(ctx, actor.Name, leadID)
	resp.ActiveTab = TabForStatus(actor.Role, to).Key
	return resp, nil
}

// CancelReasonDialog discards the draft; nothing is sent
func (f *ReasonCaptureFlowImpl) CancelReasonDialog(ctx context.Context, leadID string, actor Actor, metadata *ClientMetadata) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	draft, err := f.openDraft(ctx, leadID, actor)
	if err != nil {
		return err
	}
	if err := f.drafts.Delete(ctx, actor.Name, leadID); err != nil {
		return err
	}

	to, _ := draft.Kind.Target()
	observeTransition(draft.FromStatus, to, actor.Role, outcomeCancelled)
	_ = createAuditLog(ctx, f.auditRepo, actor, leadID, models.AuditActionReasonDialogCanceled,
		fmt.Sprintf("%s dialog canceled", draft.Kind), true, nil, metadata)
	return nil
}

func (f *ReasonCaptureFlowImpl) openDraft(ctx context.Context, leadID string, actor Actor) (*ReasonDraft, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, NewBusinessError("LEAD_ID_REQUIRED", "Lead id is required", ErrLeadIDRequired)
	}
	draft, err := f.drafts.Get(ctx, actor.Name, leadID)
	if err != nil {
		return nil, err
	}
	if draft == nil || (!draft.ExpiresAt.IsZero() && !f.now().Before(draft.ExpiresAt)) {
		return nil, draftNotFound(leadID)
	}
	return draft, nil
}

func draftNotFound(leadID string) error {
	return NewBusinessErrorf("REASON_DRAFT_NOT_FOUND", "No open reason dialog for lead %s", ErrReasonDraftNotFound, leadID)
}

func dialogResponse(draft *ReasonDraft) *dto.ReasonDialogResponse {
	resp := &dto.ReasonDialogResponse{
		LeadID:    draft.LeadID,
		Kind:      string(draft.Kind),
		Reason:    draft.Reason,
		ExpiresAt: draft.ExpiresAt,
	}
	switch draft.Kind {
	case ReasonKindLost:
		resp.Options = lostReasonStrings()
		resp.CanSubmit = draft.Reason != nil && *draft.Reason != ""
	case ReasonKindJunk:
		resp.CanSubmit = true
	}
	return resp
}
