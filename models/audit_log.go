// Package models contains domain entities and persisted records for the lead console
package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ActorName    *string         `gorm:"size:255;index:idx_audit_actor_name" json:"actor_name,omitempty"`
	ActorRole    *string         `gorm:"size:32" json:"actor_role,omitempty"`
	LeadID       *string         `gorm:"size:255;index:idx_audit_lead_id" json:"lead_id,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionLeadCreated          = "lead_created"
	AuditActionLeadCreateFailed     = "lead_create_failed"
	AuditActionLeadUpdated          = "lead_updated"
	AuditActionLeadUpdateFailed     = "lead_update_failed"
	AuditActionLeadAssigned         = "lead_assigned"
	AuditActionLeadAssignFailed     = "lead_assign_failed"
	AuditActionFollowUpRecorded     = "follow_up_recorded"
	AuditActionFollowUpFailed       = "follow_up_failed"
	AuditActionTransitionApplied    = "transition_applied"
	AuditActionTransitionRejected   = "transition_rejected"
	AuditActionTransitionFailed     = "transition_failed"
	AuditActionConversionSubmitted  = "conversion_submitted"
	AuditActionConversionFailed     = "conversion_failed"
	AuditActionStageAdvanceFailed   = "stage_advance_failed"
	AuditActionDocumentOpened       = "document_opened"
	AuditActionDocumentOpenFailed   = "document_open_failed"
	AuditActionReasonDialogOpened   = "reason_dialog_opened"
	AuditActionReasonDialogCanceled = "reason_dialog_canceled"
	AuditActionLeadsExported        = "leads_exported"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	ActorName     *string
	LeadID        *string
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// IsLifecycleEvent reports whether the entry changed or tried to change lead status
func (a *AuditLog) IsLifecycleEvent() bool {
	lifecycleActions := map[string]bool{
		AuditActionLeadAssigned:        true,
		AuditActionTransitionApplied:   true,
		AuditActionTransitionRejected:  true,
		AuditActionTransitionFailed:    true,
		AuditActionConversionSubmitted: true,
		AuditActionConversionFailed:    true,
	}
	return lifecycleActions[a.Action]
}
