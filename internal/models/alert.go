package models

import "time"

// 冷却键类别（优先级从高到低，一次评估只取首个命中的类别）
const (
	AlertKeySustainedPressure = "sustained-pressure"
	AlertKeyThresholdBreach   = "pressure-threshold"
	AlertKeyHighPressure      = "high-pressure"
	AlertKeyGeneral           = "general"

	// 临床人员冷却键前缀（与患者冷却互不干扰）
	ClinicianKeyPrefix = "clinician-"
	// 设备故障冷却键前缀（后接故障组合串）
	EquipmentKeyPrefix = "equipment-"
)

// AlertEvaluation 一次帧或故障信号的评估结果（瞬态，不持久化）
// 不变式：Severity 始终在 [0,1]；仅当 ThresholdBreached 或
// HasEquipmentFault 为真时才有意义。
type AlertEvaluation struct {
	PatientID         string            `json:"patient_id"`
	Timestamp         time.Time         `json:"timestamp"`
	PeakPressure      int               `json:"peak_pressure"`
	LowThreshold      int               `json:"low_threshold"`
	HighThreshold     int               `json:"high_threshold"`
	ThresholdBreached bool              `json:"threshold_breached"`
	Severity          float64           `json:"severity"`
	MedicalAlerts     MedicalAlertFlags `json:"medical_alerts"`
	DeviceFaults      DeviceFaultFlags  `json:"device_faults"`
	HasEquipmentFault bool              `json:"has_equipment_fault"`
	AlertKey          string            `json:"alert_key"` // 本次评估采用的冷却键类别
	NotifyPatient     bool              `json:"notify_patient"`
	NotifyClinician   bool              `json:"notify_clinician"`
}

// IsCritical 严重度是否达到 critical 档
func (e *AlertEvaluation) IsCritical(criticalSeverity float64) bool {
	return e.Severity >= criticalSeverity
}

// NotificationContent 面向单个受众渲染后的通知内容
// Tag 对 (患者, 报警类型) 稳定，下游投递方可据此去重/原位替换。
type NotificationContent struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`
}
