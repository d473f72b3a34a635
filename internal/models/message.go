package models

import "time"

// RawFrameMessage 设备经 MQTT 上报的原始帧消息
// Frame 为设备固件输出的网格文本（行内空格分隔、行间换行分隔）。
type RawFrameMessage struct {
	DeviceID      string            `json:"device_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Frame         string            `json:"frame"`
	DeviceFaults  DeviceFaultFlags  `json:"device_faults"`
	MedicalAlerts MedicalAlertFlags `json:"medical_alerts"`
	// 设备断线重连后的首帧置位，触发冷却重置
	Reconnected bool `json:"reconnected"`
}

// RealtimeSnapshot 患者最新一帧的指标快照（Redis 缓存，短 TTL）
// 前端实时视图直接读该快照，不回源数据库。
type RealtimeSnapshot struct {
	PatientID     string            `json:"patient_id"`
	DeviceID      string            `json:"device_id"`
	SessionID     string            `json:"session_id"`
	Timestamp     time.Time         `json:"timestamp"`
	PeakPressure  int               `json:"peak_pressure"`
	ContactArea   float64           `json:"contact_area"`
	CV            float64           `json:"cv"`
	DeviceFaults  DeviceFaultFlags  `json:"device_faults"`
	MedicalAlerts MedicalAlertFlags `json:"medical_alerts"`
}
