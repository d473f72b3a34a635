package evaluator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
)

// ============================================
// 依赖接口
// ============================================

// ThresholdResolver 患者阈值解析（settings.Resolver 实现）
type ThresholdResolver interface {
	Resolve(ctx context.Context, patientID string) (*models.PatientThresholdSettings, error)
}

// SessionMarker 会话复查标记（repository.SessionRepository 实现）
// 可选依赖：为 nil 时跳过标记。
type SessionMarker interface {
	MarkSessionForReview(ctx context.Context, sessionID string) error
}

// ============================================
// 评估器
// ============================================

// Evaluator 报警评估器
//
// 对每一帧判定阈值越限、计算严重度、确定报警类别，并通过冷却
// 跟踪器决定两个受众（患者、临床人员）是否应收到通知。评估本身
// 无副作用（除冷却时间戳与会话复查标记），通知投递由上层完成。
type Evaluator struct {
	config   *config.Config
	resolver ThresholdResolver
	tracker  *CooldownTracker
	sessions SessionMarker
	logger   *zap.Logger
}

// NewEvaluator 创建报警评估器
func NewEvaluator(cfg *config.Config, resolver ThresholdResolver, tracker *CooldownTracker, sessions SessionMarker, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		config:   cfg,
		resolver: resolver,
		tracker:  tracker,
		sessions: sessions,
		logger:   logger,
	}
}

// EvaluateFrame 评估一帧压力数据
//
// 阈值解析失败直接返回错误（不得凭空猜测阈值继续评估）。
// 越限判定为闭边界：peak >= high 即越限。
func (e *Evaluator) EvaluateFrame(ctx context.Context, frame *models.PressureFrame) (*models.AlertEvaluation, error) {
	if frame.PatientID == nil || *frame.PatientID == "" {
		return nil, &models.ValidationError{Field: "patient_id", Message: "frame has no assigned patient"}
	}
	patientID := *frame.PatientID

	st, err := e.resolver.Resolve(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve thresholds for patient %s: %w", patientID, err)
	}

	breached := frame.PeakPressure >= st.HighThreshold

	eval := &models.AlertEvaluation{
		PatientID:         patientID,
		Timestamp:         frame.Timestamp,
		PeakPressure:      frame.PeakPressure,
		LowThreshold:      st.LowThreshold,
		HighThreshold:     st.HighThreshold,
		ThresholdBreached: breached,
		Severity:          e.severity(frame.PeakPressure, st.HighThreshold),
		MedicalAlerts:     frame.MedicalAlerts,
		DeviceFaults:      frame.DeviceFaults,
		HasEquipmentFault: !frame.DeviceFaults.None(),
		AlertKey:          e.alertKey(breached, frame.MedicalAlerts),
	}

	window := e.config.Cooldown.Pressure
	if eval.AlertKey == models.AlertKeySustainedPressure {
		window = e.config.Cooldown.Sustained
	}

	// 患者通知：越限或设备端医疗标志任一成立即值得报警
	alertWorthy := breached || !frame.MedicalAlerts.None()
	if alertWorthy {
		eval.NotifyPatient = e.tracker.ShouldSend(patientID, eval.AlertKey, window)
	}

	// 临床人员通知：仅在真正越限时触发，冷却键独立于患者侧
	if breached {
		eval.NotifyClinician = e.tracker.ShouldSend(patientID, models.ClinicianKeyPrefix+eval.AlertKey, window)
	}

	// 越限或故障的帧把所属会话标记为需人工复查。标记失败只记日志，
	// 不能因此丢掉整个评估结果。
	if (breached || eval.HasEquipmentFault) && e.sessions != nil && frame.SessionID != "" {
		if err := e.sessions.MarkSessionForReview(ctx, frame.SessionID); err != nil {
			e.logger.Warn("failed to mark session for review",
				zap.String("session_id", frame.SessionID),
				zap.String("patient_id", patientID),
				zap.Error(err))
		}
	}

	if eval.NotifyPatient || eval.NotifyClinician {
		e.logger.Info("alert raised",
			zap.String("patient_id", patientID),
			zap.String("alert_key", eval.AlertKey),
			zap.Int("peak_pressure", frame.PeakPressure),
			zap.Int("high_threshold", st.HighThreshold),
			zap.Float64("severity", eval.Severity),
			zap.Bool("notify_patient", eval.NotifyPatient),
			zap.Bool("notify_clinician", eval.NotifyClinician))
	}

	return eval, nil
}

// EvaluateEquipmentFault 评估设备故障信号（不依赖存储，无帧上下文）
//
// 冷却键按故障组合区分："equipment-" + 组合串。断开与饱和同时
// 发生和只有断开发生走不同的冷却窗口，新出现的故障不会被旧故障
// 的冷却吞掉。
func (e *Evaluator) EvaluateEquipmentFault(patientID string, faults models.DeviceFaultFlags, at time.Time) *models.AlertEvaluation {
	if faults.None() {
		return nil
	}

	severity := 0.5
	if faults.IsCritical() {
		severity = 1.0
	}

	eval := &models.AlertEvaluation{
		PatientID:         patientID,
		Timestamp:         at,
		DeviceFaults:      faults,
		HasEquipmentFault: true,
		Severity:          severity,
		AlertKey:          models.EquipmentKeyPrefix + faults.String(),
	}

	window := e.config.Cooldown.Equipment
	eval.NotifyPatient = e.tracker.ShouldSend(patientID, eval.AlertKey, window)
	eval.NotifyClinician = e.tracker.ShouldSend(patientID, models.ClinicianKeyPrefix+eval.AlertKey, window)

	if eval.NotifyPatient || eval.NotifyClinician {
		e.logger.Info("equipment fault alert raised",
			zap.String("patient_id", patientID),
			zap.String("faults", faults.String()),
			zap.Float64("severity", severity))
	}

	return eval
}

// AcknowledgeAlert 确认报警：移除对应冷却条目，下次触发立即可通知
func (e *Evaluator) AcknowledgeAlert(patientID, alertKey string) {
	e.tracker.Acknowledge(patientID, alertKey)
	e.logger.Info("alert acknowledged",
		zap.String("patient_id", patientID),
		zap.String("alert_key", alertKey))
}

// ClearCooldowns 清空患者全部冷却（设备重连等场景）
func (e *Evaluator) ClearCooldowns(patientID string) {
	e.tracker.Clear(patientID)
	e.logger.Info("cooldowns cleared", zap.String("patient_id", patientID))
}

// severity 归一化严重度：clamp((peak-high)/(max-high), 0, 1)
// 退化情形（high >= max）下任何越限都视为满档。
func (e *Evaluator) severity(peak, high int) float64 {
	maxPressure := e.config.Monitoring.MaxPressure
	if peak < high {
		return 0
	}
	if high >= maxPressure {
		return 1.0
	}
	s := float64(peak-high) / float64(maxPressure-high)
	if s > 1.0 {
		return 1.0
	}
	return s
}

// alertKey 报警类别，优先级从高到低取首个命中
func (e *Evaluator) alertKey(breached bool, medical models.MedicalAlertFlags) string {
	switch {
	case medical.HasSustainedPressure():
		return models.AlertKeySustainedPressure
	case breached:
		return models.AlertKeyThresholdBreach
	case medical.HasHighPressure():
		return models.AlertKeyHighPressure
	default:
		return models.AlertKeyGeneral
	}
}
