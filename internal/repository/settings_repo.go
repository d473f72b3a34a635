package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SettingsRepository 患者阈值配置仓库（patient_threshold_settings 表，每患者一行）
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository 创建阈值配置仓库
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetSettings 获取患者阈值配置
// 不存在时返回 models.ErrNotFound（由 Resolver 负责自动创建）。
func (r *SettingsRepository) GetSettings(ctx context.Context, patientID string) (*models.PatientThresholdSettings, error) {
	query := `
		SELECT patient_id, low_threshold, high_threshold, updated_at
		FROM patient_threshold_settings
		WHERE patient_id = $1
	`

	var s models.PatientThresholdSettings
	err := r.db.QueryRowContext(ctx, query, patientID).Scan(
		&s.PatientID,
		&s.LowThreshold,
		&s.HighThreshold,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, models.WrapStorageError("get settings", err)
	}

	return &s, nil
}

// CreateSettings 插入阈值配置行
// 唯一键冲突（并发首读竞争）返回 models.ErrDuplicate，调用方应重读。
func (r *SettingsRepository) CreateSettings(ctx context.Context, s *models.PatientThresholdSettings) error {
	query := `
		INSERT INTO patient_threshold_settings (patient_id, low_threshold, high_threshold, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, s.PatientID, s.LowThreshold, s.HighThreshold, s.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.ErrDuplicate
		}
		return models.WrapStorageError("create settings", err)
	}

	r.logger.Info("Provisioned default threshold settings",
		zap.String("patient_id", s.PatientID),
		zap.Int("low_threshold", s.LowThreshold),
		zap.Int("high_threshold", s.HighThreshold),
	)

	return nil
}

// UpsertSettings 更新阈值配置并加盖更新时间戳
func (r *SettingsRepository) UpsertSettings(ctx context.Context, patientID string, low, high int) (*models.PatientThresholdSettings, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO patient_threshold_settings (patient_id, low_threshold, high_threshold, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id) DO UPDATE
		SET low_threshold = $2, high_threshold = $3, updated_at = $4
	`

	_, err := r.db.ExecContext(ctx, query, patientID, low, high, now)
	if err != nil {
		return nil, models.WrapStorageError("upsert settings", err)
	}

	return &models.PatientThresholdSettings{
		PatientID:     patientID,
		LowThreshold:  low,
		HighThreshold: high,
		UpdatedAt:     now,
	}, nil
}
