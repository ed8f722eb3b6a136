package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
)

// leadWriter is the single write path shared by the lead, conversion and reason flows:
// snapshot, send, record, re-fetch.
type leadWriter struct {
	store       services.LeadAPIClient
	historyRepo repository.LeadStatusHistoryRepository
	auditRepo   repository.AuditLogRepository
}

func newLeadWriter(store services.LeadAPIClient, historyRepo repository.LeadStatusHistoryRepository, auditRepo repository.AuditLogRepository) *leadWriter {
	return &leadWriter{store: store, historyRepo: historyRepo, auditRepo: auditRepo}
}

type sendFunc func(ctx context.Context, snapshot models.Lead) (*models.Lead, error)

type writeRequest struct {
	actor    Actor
	metadata *ClientMetadata
	current  models.Lead
	patch    LeadPatch
	reason   *string

	action       string
	failedAction string
	description  string

	// send defaults to a whole-record PUT
	send sendFunc
	// afterWrite runs once the write succeeded, before the re-fetch
	afterWrite func(ctx context.Context, written models.Lead)
}

// load fetches the current record of a lead
func (w *leadWriter) load(ctx context.Context, leadID string) (models.Lead, error) {
	if strings.TrimSpace(leadID) == "" {
		return models.Lead{}, NewBusinessError("LEAD_ID_REQUIRED", "Lead id is required", ErrLeadIDRequired)
	}
	lead, err := w.store.GetLead(ctx, leadID)
	if err != nil {
		return models.Lead{}, remoteFailure("Failed to load lead", err)
	}
	if lead == nil {
		return models.Lead{}, NewBusinessErrorf("LEAD_NOT_FOUND", "Lead %s not found", ErrLeadNotFound, leadID)
	}
	if lead.LeadID == "" {
		lead.LeadID = leadID
	}
	return *lead, nil
}

// write sends the merged snapshot; an unchanged record is a cancel and sends nothing
func (w *leadWriter) write(ctx context.Context, req writeRequest) (*dto.LeadMutationResponse, error) {
	snapshot, changed := BuildWriteRequest(req.current, req.patch)
	from, to := req.current.Status, snapshot.Status

	if len(changed) == 0 {
		observeTransition(from, to, req.actor.Role, outcomeCancelled)
		current := req.current
		return &dto.LeadMutationResponse{
			Cancelled: true,
			Lead:      &current,
			ActiveTab: TabForStatus(req.actor.Role, current.Status).Key,
		}, nil
	}

	send := req.send
	if send == nil {
		send = func(ctx context.Context, snapshot models.Lead) (*models.Lead, error) {
			return w.store.UpdateLead(ctx, snapshot.LeadID, snapshot)
		}
	}

	correlationID := uuid.New()
	_, sendErr := send(ctx, snapshot)

	if from != to || req.patch.Status != nil {
		w.recordHistory(ctx, correlationID, req, snapshot, changed, sendErr)
	}

	if sendErr != nil {
		observeTransition(from, to, req.actor.Role, outcomeFailed)
		errMsg := sendErr.Error()
		_ = createAuditLog(ctx, w.auditRepo, req.actor, snapshot.LeadID, req.failedAction,
			fmt.Sprintf("%s failed", req.description), false, &errMsg, req.metadata)
		return nil, remoteFailure("Failed to save lead", sendErr)
	}

	observeTransition(from, to, req.actor.Role, outcomeApplied)
	_ = createAuditLog(ctx, w.auditRepo, req.actor, snapshot.LeadID, req.action,
		fmt.Sprintf("%s (%s)", req.description, strings.Join(fieldNames(changed), ", ")), true, nil, req.metadata)

	if req.afterWrite != nil {
		req.afterWrite(ctx, snapshot)
	}

	resp, err := w.refresh(ctx, req.actor, snapshot.LeadID, to)
	if err != nil {
		return nil, err
	}
	resp.ChangedFields = fieldNames(changed)
	resp.CorrelationID = correlationID.String()
	return resp, nil
}

// refresh re-reads the collection so counts and status come from the server
func (w *leadWriter) refresh(ctx context.Context, actor Actor, leadID string, expected models.LeadStatus) (*dto.LeadMutationResponse, error) {
	leads, err := w.store.ListLeads(ctx)
	if err != nil {
		return nil, remoteFailure("Lead saved but the list could not be refreshed", err)
	}

	status := expected
	fresh := findLead(leads, leadID)
	if fresh != nil {
		status = fresh.Status
	}

	return &dto.LeadMutationResponse{
		Lead:      fresh,
		ActiveTab: TabForStatus(actor.Role, status).Key,
		Tabs:      BuildTabs(actor.Role, leads),
	}, nil
}

func (w *leadWriter) recordHistory(ctx context.Context, correlationID uuid.UUID, req writeRequest, snapshot models.Lead, changed []models.LeadField, sendErr error) {
	row := &models.LeadStatusHistory{
		CorrelationID: correlationID,
		LeadID:        snapshot.LeadID,
		FromStatus:    req.current.Status,
		ToStatus:      snapshot.Status,
		ActorName:     req.actor.Name,
		ActorRole:     req.actor.Role,
		Reason:        req.reason,
		ChangedFields: models.FieldList(fieldNames(changed)),
		Success:       utils.ToPtr(sendErr == nil),
	}
	if sendErr != nil {
		row.ErrorMessage = utils.ToPtr(sendErr.Error())
	}
	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		row.RequestID = &requestID
	}
	if err := w.historyRepo.Save(ctx, row); err != nil {
		log.Printf("status history for lead %s failed: %v", snapshot.LeadID, err)
	}
}

// reject records a transition refused by the rule table
func (w *leadWriter) reject(ctx context.Context, actor Actor, lead models.Lead, to models.LeadStatus, cause error, metadata *ClientMetadata) {
	observeTransition(lead.Status, to, actor.Role, outcomeRejected)
	errMsg := cause.Error()
	_ = createAuditLog(ctx, w.auditRepo, actor, lead.LeadID, models.AuditActionTransitionRejected,
		fmt.Sprintf("Transition %s -> %s rejected", lead.Status, to), false, &errMsg, metadata)
}
