package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/leadflow/models"
	"gorm.io/gorm"
)

// LeadStatusHistoryRepositoryImpl implements LeadStatusHistoryRepository interface
type LeadStatusHistoryRepositoryImpl struct {
	*BaseRepository[models.LeadStatusHistory, models.LeadStatusHistoryFilter]
}

// NewLeadStatusHistoryRepository creates a new lead status history repository
func NewLeadStatusHistoryRepository(db *gorm.DB) LeadStatusHistoryRepository {
	return &LeadStatusHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LeadStatusHistory, models.LeadStatusHistoryFilter](db),
	}
}

// ListByLead returns the lead's history oldest first
func (r *LeadStatusHistoryRepositoryImpl) ListByLead(ctx context.Context, leadID string) ([]*models.LeadStatusHistory, error) {
	rows, err := r.ByFilter(ctx, models.LeadStatusHistoryFilter{LeadID: &leadID}, "created_at ASC, id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history for lead %s: %w", leadID, err)
	}
	return rows, nil
}

// LatestByLead returns the most recent successful history row for the lead
func (r *LeadStatusHistoryRepositoryImpl) LatestByLead(ctx context.Context, leadID string) (*models.LeadStatusHistory, error) {
	db := r.getDB(ctx)

	var row models.LeadStatusHistory
	err := db.Where("lead_id = ? AND success = ?", leadID, true).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest status history for lead %s: %w", leadID, err)
	}
	return &row, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *LeadStatusHistoryRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadStatusHistoryFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.ToStatus != nil {
		query = query.Where("to_status = ?", string(*filter.ToStatus))
	}
	if filter.ActorName != nil {
		query = query.Where("actor_name = ?", *filter.ActorName)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves history rows based on filter criteria
func (r *LeadStatusHistoryRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadStatusHistoryFilter, orderBy string, limit, offset int) ([]*models.LeadStatusHistory, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LeadStatusHistory{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.LeadStatusHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of history rows matching the filter
func (r *LeadStatusHistoryRepositoryImpl) Count(ctx context.Context, filter models.LeadStatusHistoryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LeadStatusHistory{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any history row matching the filter exists
func (r *LeadStatusHistoryRepositoryImpl) Exists(ctx context.Context, filter models.LeadStatusHistoryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
