package models

import (
	"time"
)

// PressureFrame 一次传感器采样（对应 pressure_frames 表）
// 采集后不可变，归属于包含它的 Session。
type PressureFrame struct {
	FrameID       string            `json:"frame_id" db:"frame_id"`
	SessionID     string            `json:"session_id" db:"session_id"`
	PatientID     *string           `json:"patient_id,omitempty" db:"patient_id"` // NULL = 未分配设备的孤儿会话
	DeviceID      string            `json:"device_id" db:"device_id"`
	Timestamp     time.Time         `json:"timestamp" db:"timestamp"`
	Grid          []int             `json:"grid" db:"grid"` // 行优先展开的压力网格，每格 [0,255]
	PeakPressure  int               `json:"peak_pressure" db:"peak_pressure"`
	ContactArea   float64           `json:"contact_area" db:"contact_area"` // 接触面积百分比
	DeviceFaults  DeviceFaultFlags  `json:"device_faults" db:"device_faults"`
	MedicalAlerts MedicalAlertFlags `json:"medical_alerts" db:"medical_alerts"`
}

// Session 一台设备一段连续监测周期内的有序帧序列（对应 monitor_sessions 表）
// 在同一 设备+日期 组合的首帧时创建；只追加，不删除。
type Session struct {
	SessionID   string     `json:"session_id" db:"session_id"`
	DeviceID    string     `json:"device_id" db:"device_id"`
	PatientID   *string    `json:"patient_id,omitempty" db:"patient_id"`
	StartTime   time.Time  `json:"start_time" db:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty" db:"end_time"`
	NeedsReview bool       `json:"needs_review" db:"needs_review"` // 出现报警事件时由评估侧置位
}

// PatientThresholdSettings 患者阈值配置（对应 patient_threshold_settings 表，每患者一行）
// 不变式：low < high，且两者都落在系统配置的边界内。
type PatientThresholdSettings struct {
	PatientID     string    `json:"patient_id" db:"patient_id"`
	LowThreshold  int       `json:"low_threshold" db:"low_threshold"`
	HighThreshold int       `json:"high_threshold" db:"high_threshold"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
