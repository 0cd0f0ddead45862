package usecase

import (
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/store"
)

// GetStatusUsecase handles read-only record lookups. It never mutates state.
type GetStatusUsecase struct {
	records *store.RecordStore
	logger  *zap.Logger
}

// NewGetStatusUsecase creates a new GetStatusUsecase.
func NewGetStatusUsecase(records *store.RecordStore, logger *zap.Logger) *GetStatusUsecase {
	return &GetStatusUsecase{
		records: records,
		logger:  logger,
	}
}

// Execute retrieves the record for a correlation id verbatim.
func (uc *GetStatusUsecase) Execute(correlationID string) (*domain.Record, error) {
	rec, ok := uc.records.Get(correlationID)
	if !ok {
		uc.logger.Debug("Record not found", zap.String("correlation_id", correlationID))
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}
