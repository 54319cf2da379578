// Package storage provides persistence for streamplan run history.
package storage

import (
	"context"
	"fmt"

	"github.com/streamplan/streamplan/internal/models"
	"gorm.io/gorm"
)

// OutcomeStore records and queries file processing outcomes using GORM.
type OutcomeStore struct {
	db *gorm.DB
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(db *gorm.DB) *OutcomeStore {
	return &OutcomeStore{db: db}
}

// Record persists a new outcome.
func (s *OutcomeStore) Record(ctx context.Context, outcome *models.Outcome) error {
	if err := s.db.WithContext(ctx).Create(outcome).Error; err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

// Recent returns the most recent outcomes, newest first.
func (s *OutcomeStore) Recent(ctx context.Context, limit int) ([]*models.Outcome, error) {
	var outcomes []*models.Outcome
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("getting recent outcomes: %w", err)
	}
	return outcomes, nil
}

// ForPath returns all outcomes recorded for a file, newest first.
func (s *OutcomeStore) ForPath(ctx context.Context, path string) ([]*models.Outcome, error) {
	var outcomes []*models.Outcome
	if err := s.db.WithContext(ctx).Where("path = ?", path).Order("created_at DESC").Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("getting outcomes by path: %w", err)
	}
	return outcomes, nil
}

// Latest returns the most recent outcome for a file, or nil when none exists.
func (s *OutcomeStore) Latest(ctx context.Context, path string) (*models.Outcome, error) {
	var outcome models.Outcome
	err := s.db.WithContext(ctx).Where("path = ?", path).Order("created_at DESC").First(&outcome).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest outcome: %w", err)
	}
	return &outcome, nil
}

// CountByStatus returns how many outcomes carry each status.
func (s *OutcomeStore) CountByStatus(ctx context.Context) (map[models.OutcomeStatus]int64, error) {
	type row struct {
		Status models.OutcomeStatus
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Outcome{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting outcomes by status: %w", err)
	}

	counts := make(map[models.OutcomeStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
