// Package repository persists lead status history and audit records
package repository

import (
	"context"

	"github.com/amirphl/leadflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByLead(ctx context.Context, leadID string, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	ListLifecycleEvents(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}

// LeadStatusHistoryRepository defines operations for lead status history
type LeadStatusHistoryRepository interface {
	Repository[models.LeadStatusHistory, models.LeadStatusHistoryFilter]
	ListByLead(ctx context.Context, leadID string) ([]*models.LeadStatusHistory, error)
	LatestByLead(ctx context.Context, leadID string) (*models.LeadStatusHistory, error)
}
