package app

import (
	"context"
	"errors"

	"pantrycam/internal/model"
)

var ErrHistoryDisabled = errors.New("analysis history is disabled")

type AnalysisLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.AnalysisRecord, error)
}

type HistoryService struct {
	repo AnalysisLister
}

// NewHistoryService accepts a nil repo when history is turned off.
func NewHistoryService(repo AnalysisLister) *HistoryService {
	return &HistoryService{repo: repo}
}

func (s *HistoryService) Recent(ctx context.Context, limit int) ([]model.AnalysisRecord, error) {
	if s == nil || s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.ListRecent(ctx, limit)
}
