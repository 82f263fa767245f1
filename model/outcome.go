package model

import (
	"github.com/Laisky/zap"

	"github.com/buscafornecedor/vllm-gateway/common/logger"
)

// Outcome is one row of the append-only request log: the serialized input
// paired with either the serialized normalized output or an error message.
// Rows are never updated or deleted by this service.
type Outcome struct {
	Id           int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	VllmInput    string `json:"vllm_input" gorm:"column:vllm_input;type:text;not null"`
	VllmOutput   string `json:"vllm_output" gorm:"column:vllm_output;type:text"`
	Error        bool   `json:"error" gorm:"column:error;default:false"`
	ErrorMessage string `json:"error_message" gorm:"column:error_message;type:text"`
	CreatedAt    int64  `json:"created_at" gorm:"bigint;autoCreateTime:milli;index"`
}

// RecordOutcome appends one outcome row. Insert failures are logged and
// swallowed: the background task is the top of its call stack, there is
// nothing above it to propagate to. Returns the generated id, or 0 when the
// insert failed.
func (s *Store) RecordOutcome(outcome *Outcome) int64 {
	err := s.db.Table(s.tableName).Create(outcome).Error
	if err != nil {
		logger.Logger.Error("failed to record outcome - result is lost",
			zap.Error(err),
			zap.Bool("error_outcome", outcome.Error),
			zap.String("error_message", outcome.ErrorMessage),
			zap.String("vllm_input", outcome.VllmInput))
		return 0
	}

	logger.Logger.Info("outcome recorded",
		zap.Int64("id", outcome.Id),
		zap.Bool("error", outcome.Error))
	return outcome.Id
}

// CountOutcomes returns the number of stored rows. Used by tests and
// operational tooling; the HTTP surface never exposes it.
func (s *Store) CountOutcomes() (int64, error) {
	var count int64
	err := s.db.Table(s.tableName).Model(&Outcome{}).Count(&count).Error
	return count, err
}

// ListOutcomes returns rows ordered by insertion, newest first.
func (s *Store) ListOutcomes(limit int) ([]*Outcome, error) {
	var outcomes []*Outcome
	err := s.db.Table(s.tableName).Order("id desc").Limit(limit).Find(&outcomes).Error
	return outcomes, err
}
