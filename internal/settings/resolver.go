// Package settings 提供患者阈值配置的解析与更新
//
// 首次访问时用系统默认值自动创建配置行（幂等，容忍并发竞争）。
// 更新操作按配置的边界校验，校验消息回显配置值。
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"

	"go.uber.org/zap"
)

// Store 阈值配置存储接口（由 repository.SettingsRepository 实现）
type Store interface {
	GetSettings(ctx context.Context, patientID string) (*models.PatientThresholdSettings, error)
	CreateSettings(ctx context.Context, s *models.PatientThresholdSettings) error
	UpsertSettings(ctx context.Context, patientID string, low, high int) (*models.PatientThresholdSettings, error)
}

// Resolver 患者阈值解析器
type Resolver struct {
	config *config.Config
	store  Store
	logger *zap.Logger
}

// NewResolver 创建阈值解析器
func NewResolver(cfg *config.Config, store Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		config: cfg,
		store:  store,
		logger: logger,
	}
}

// Resolve 解析患者阈值
// 配置行不存在时用系统默认值创建后返回；创建撞唯一键（并发首读
// 竞争）视为"已存在"并重读。存储故障原样向上传播——临床安全
// 依赖正确的阈值，绝不静默猜测。
func (r *Resolver) Resolve(ctx context.Context, patientID string) (*models.PatientThresholdSettings, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	settings, err := r.store.GetSettings(ctx, patientID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// 懒创建：首次访问时写入系统默认值
	defaults := &models.PatientThresholdSettings{
		PatientID:     patientID,
		LowThreshold:  r.config.Monitoring.DefaultLowThreshold,
		HighThreshold: r.config.Monitoring.DefaultHighThreshold,
		UpdatedAt:     time.Now().UTC(),
	}

	err = r.store.CreateSettings(ctx, defaults)
	if err == nil {
		return defaults, nil
	}
	if errors.Is(err, models.ErrDuplicate) {
		// 竞争对手先创建了：重读取其值
		return r.store.GetSettings(ctx, patientID)
	}

	return nil, err
}

// Update 更新患者阈值
// 校验规则（边界来自配置，消息回显配置值）：
//   - low 必须在 [LowThresholdMin, LowThresholdMax] 内
//   - high 必须在 [HighThresholdMin, HighThresholdMax] 内
//   - low 必须小于 high
func (r *Resolver) Update(ctx context.Context, patientID string, low, high int) (*models.PatientThresholdSettings, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	m := &r.config.Monitoring

	if low < m.LowThresholdMin || low > m.LowThresholdMax {
		return nil, models.NewRangeValidationError("low_threshold", low, m.LowThresholdMin, m.LowThresholdMax)
	}
	if high < m.HighThresholdMin || high > m.HighThresholdMax {
		return nil, models.NewRangeValidationError("high_threshold", high, m.HighThresholdMin, m.HighThresholdMax)
	}
	if low >= high {
		return nil, &models.ValidationError{
			Field:   "low_threshold",
			Value:   low,
			Message: fmt.Sprintf("low threshold must be less than high threshold (%d)", high),
		}
	}

	updated, err := r.store.UpsertSettings(ctx, patientID, low, high)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Patient thresholds updated",
		zap.String("patient_id", patientID),
		zap.Int("low_threshold", low),
		zap.Int("high_threshold", high),
	)

	return updated, nil
}
