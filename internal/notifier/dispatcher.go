package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
)

// CareTeam 护理团队查询（repository.CareTeamRepository 实现）
type CareTeam interface {
	AssignedClinicians(ctx context.Context, patientID string) ([]string, error)
	PatientDisplayName(ctx context.Context, patientID string) (string, error)
}

// Dispatcher 通知分发器
//
// 按评估结果的受众标志扇出：患者一份、每位在班临床人员各一份。
// 单个受众投递失败只记日志，不重试也不影响其他受众——通知是
// 尽力而为的，报警判定本身已经落库。
type Dispatcher struct {
	builder   *ContentBuilder
	deliverer Deliverer
	careTeam  CareTeam
	logger    *zap.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(builder *ContentBuilder, deliverer Deliverer, careTeam CareTeam, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		builder:   builder,
		deliverer: deliverer,
		careTeam:  careTeam,
		logger:    logger,
	}
}

// Dispatch 根据评估结果分发通知
func (d *Dispatcher) Dispatch(ctx context.Context, eval *models.AlertEvaluation) {
	if eval == nil || (!eval.NotifyPatient && !eval.NotifyClinician) {
		return
	}

	if eval.NotifyPatient {
		content := d.builder.BuildPatientAlert(eval)
		if err := d.deliverer.Deliver(ctx, eval.PatientID, content); err != nil {
			d.logger.Warn("failed to deliver patient notification",
				zap.String("patient_id", eval.PatientID),
				zap.String("alert_key", eval.AlertKey),
				zap.Error(err))
		}
	}

	if eval.NotifyClinician {
		d.dispatchClinicians(ctx, eval)
	}
}

func (d *Dispatcher) dispatchClinicians(ctx context.Context, eval *models.AlertEvaluation) {
	clinicians, err := d.careTeam.AssignedClinicians(ctx, eval.PatientID)
	if err != nil {
		d.logger.Warn("failed to resolve care team",
			zap.String("patient_id", eval.PatientID),
			zap.Error(err))
		return
	}
	if len(clinicians) == 0 {
		return
	}

	// 显示名查不到时退回患者ID，通知照发
	name, err := d.careTeam.PatientDisplayName(ctx, eval.PatientID)
	if err != nil {
		d.logger.Warn("failed to resolve patient display name",
			zap.String("patient_id", eval.PatientID),
			zap.Error(err))
		name = ""
	}

	content := d.builder.BuildClinicianAlert(eval, name)
	for _, clinicianID := range clinicians {
		if err := d.deliverer.Deliver(ctx, clinicianID, content); err != nil {
			d.logger.Warn("failed to deliver clinician notification",
				zap.String("patient_id", eval.PatientID),
				zap.String("clinician_id", clinicianID),
				zap.String("alert_key", eval.AlertKey),
				zap.Error(err))
		}
	}
}
