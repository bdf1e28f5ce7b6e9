package services

import (
	"context"

	"go.uber.org/zap"

	"caidasapi/internal/apperr"
	"caidasapi/internal/database"
	"caidasapi/internal/models"
)

// Status reports whether the store answers and how much it holds.
type Status struct {
	store  database.Store
	logger *zap.Logger
}

// NewStatus returns a Status over store. A nil logger discards output.
func NewStatus(store database.Store, logger *zap.Logger) *Status {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Status{store: store, logger: logger}
}

// Ping checks that the store is reachable.
func (s *Status) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("store ping failed", zap.Error(err))
		return apperr.Upstream("database unavailable", err)
	}
	return nil
}

// Totals counts registered users, image records and fall events.
func (s *Status) Totals(ctx context.Context) (*models.Totals, error) {
	t, err := s.store.Totals(ctx)
	if err != nil {
		return nil, apperr.Upstream("could not count records", err)
	}
	return &t, nil
}
