package models

import (
	"database/sql/driver"
	"time"

	"github.com/amirphl/leadflow/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FieldList is a list of lead field names stored as a postgres text array
type FieldList []string

// Value implements the driver.Valuer interface for FieldList
func (f FieldList) Value() (driver.Value, error) {
	return pq.StringArray(f).Value()
}

// Scan implements the sql.Scanner interface for FieldList
func (f *FieldList) Scan(value any) error {
	return (*pq.StringArray)(f).Scan(value)
}

// GormDataType is the generic schema type
func (FieldList) GormDataType() string {
	return "text"
}

// GormDBDataType picks the column type per dialect
func (FieldList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// LeadStatusHistory records one attempted lead mutation that touched status or lifecycle payload
type LeadStatusHistory struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CorrelationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_lead_status_history_correlation_id" json:"correlation_id"`
	LeadID        string     `gorm:"size:255;not null;index:idx_lead_status_history_lead_id" json:"lead_id"`
	FromStatus    LeadStatus `gorm:"size:32" json:"from_status"`
	ToStatus      LeadStatus `gorm:"size:32;not null;index:idx_lead_status_history_to_status" json:"to_status"`
	ActorName     string     `gorm:"size:255;not null" json:"actor_name"`
	ActorRole     Role       `gorm:"size:32;not null" json:"actor_role"`
	Reason        *string    `gorm:"type:text" json:"reason,omitempty"`
	ChangedFields FieldList  `json:"changed_fields"`
	RequestID     *string    `gorm:"size:255;index:idx_lead_status_history_request_id" json:"request_id,omitempty"`
	Success       *bool      `gorm:"default:true" json:"success"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_lead_status_history_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (LeadStatusHistory) TableName() string {
	return "lead_status_history"
}

// BeforeCreate is called before creating a new record
func (h *LeadStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.CorrelationID == uuid.Nil {
		h.CorrelationID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsStatusChange reports whether the record moved the lead to another status
func (h *LeadStatusHistory) IsStatusChange() bool {
	return h.FromStatus != h.ToStatus
}

// LeadStatusHistoryFilter represents filter criteria for status history queries
type LeadStatusHistoryFilter struct {
	ID            *uint
	LeadID        *string
	ToStatus      *LeadStatus
	ActorName     *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
