package repository

import (
	"context"
	"database/sql"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"

	"go.uber.org/zap"
)

// CareTeamRepository 患者与临床人员分配关系仓库（care_team 表）
type CareTeamRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCareTeamRepository 创建分配关系仓库
func NewCareTeamRepository(db *sql.DB, logger *zap.Logger) *CareTeamRepository {
	return &CareTeamRepository{
		db:     db,
		logger: logger,
	}
}

// AssignedClinicians 获取分配给患者的临床人员ID列表
func (r *CareTeamRepository) AssignedClinicians(ctx context.Context, patientID string) ([]string, error) {
	query := `
		SELECT clinician_id
		FROM care_team
		WHERE patient_id = $1
		ORDER BY clinician_id
	`

	return r.queryIDs(ctx, query, patientID)
}

// AssignedPatients 获取临床人员负责的患者ID列表
func (r *CareTeamRepository) AssignedPatients(ctx context.Context, clinicianID string) ([]string, error) {
	query := `
		SELECT patient_id
		FROM care_team
		WHERE clinician_id = $1
		ORDER BY patient_id
	`

	return r.queryIDs(ctx, query, clinicianID)
}

// PatientDisplayName 获取患者显示名（users 表）
// 查不到返回 models.ErrNotFound。
func (r *CareTeamRepository) PatientDisplayName(ctx context.Context, patientID string) (string, error) {
	query := `
		SELECT display_name
		FROM users
		WHERE user_id = $1
	`

	var name string
	err := r.db.QueryRowContext(ctx, query, patientID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", models.WrapStorageError("query patient display name", err)
	}

	return name, nil
}

func (r *CareTeamRepository) queryIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, models.WrapStorageError("query care team", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, models.WrapStorageError("scan care team row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapStorageError("iterate care team rows", err)
	}

	return ids, nil
}
