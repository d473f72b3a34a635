package repository

import (
	"context"
	"database/sql"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"

	"go.uber.org/zap"
)

// DevicesRepository 设备分配仓库（devices 表）
type DevicesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDevicesRepository 创建设备仓库
func NewDevicesRepository(db *sql.DB, logger *zap.Logger) *DevicesRepository {
	return &DevicesRepository{
		db:     db,
		logger: logger,
	}
}

// GetAssignedPatient 获取设备绑定的患者ID
// 设备存在但未分配患者时返回 (nil, nil)（孤儿会话场景）；
// 设备不存在返回 models.ErrNotFound。
func (r *DevicesRepository) GetAssignedPatient(ctx context.Context, deviceID string) (*string, error) {
	query := `
		SELECT patient_id
		FROM devices
		WHERE device_id = $1
	`

	var patientID sql.NullString
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&patientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, models.WrapStorageError("get assigned patient", err)
	}

	if !patientID.Valid {
		return nil, nil
	}
	return &patientID.String, nil
}
