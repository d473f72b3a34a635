package models

import "strings"

// DeviceFaultFlags 设备故障标志（位集合，允许多个故障同时存在）
type DeviceFaultFlags uint8

const (
	FaultNone             DeviceFaultFlags = 0
	FaultDisconnected     DeviceFaultFlags = 1 << 0 // 设备断开
	FaultSaturation       DeviceFaultFlags = 1 << 1 // 传感器饱和
	FaultDeadPixels       DeviceFaultFlags = 1 << 2 // 坏点
	FaultPartialDataLoss  DeviceFaultFlags = 1 << 3 // 部分数据丢失
	FaultCalibrationDrift DeviceFaultFlags = 1 << 4 // 校准漂移
	FaultElectricalNoise  DeviceFaultFlags = 1 << 5 // 电气噪声
)

// None 是否无故障
func (f DeviceFaultFlags) None() bool { return f == FaultNone }

func (f DeviceFaultFlags) HasDisconnected() bool     { return f&FaultDisconnected != 0 }
func (f DeviceFaultFlags) HasSaturation() bool       { return f&FaultSaturation != 0 }
func (f DeviceFaultFlags) HasDeadPixels() bool       { return f&FaultDeadPixels != 0 }
func (f DeviceFaultFlags) HasPartialDataLoss() bool  { return f&FaultPartialDataLoss != 0 }
func (f DeviceFaultFlags) HasCalibrationDrift() bool { return f&FaultCalibrationDrift != 0 }
func (f DeviceFaultFlags) HasElectricalNoise() bool  { return f&FaultElectricalNoise != 0 }

// IsCritical 断开或饱和视为严重故障（强制 requireInteraction）
func (f DeviceFaultFlags) IsCritical() bool {
	return f.HasDisconnected() || f.HasSaturation()
}

// String 返回稳定的故障组合键（用于冷却键和通知 tag）
// 不同的故障组合生成不同的键，互不共享冷却窗口。
func (f DeviceFaultFlags) String() string {
	if f.None() {
		return "none"
	}
	var parts []string
	if f.HasDisconnected() {
		parts = append(parts, "disconnected")
	}
	if f.HasSaturation() {
		parts = append(parts, "saturation")
	}
	if f.HasDeadPixels() {
		parts = append(parts, "dead-pixels")
	}
	if f.HasPartialDataLoss() {
		parts = append(parts, "partial-data-loss")
	}
	if f.HasCalibrationDrift() {
		parts = append(parts, "calibration-drift")
	}
	if f.HasElectricalNoise() {
		parts = append(parts, "electrical-noise")
	}
	return strings.Join(parts, "+")
}

// MedicalAlertFlags 医疗报警标志（位集合）
type MedicalAlertFlags uint8

const (
	MedicalNone              MedicalAlertFlags = 0
	MedicalSustainedPressure MedicalAlertFlags = 1 << 0 // 持续压力
	MedicalHighPressure      MedicalAlertFlags = 1 << 1 // 高压力
)

// None 是否无报警标志
func (f MedicalAlertFlags) None() bool { return f == MedicalNone }

func (f MedicalAlertFlags) HasSustainedPressure() bool { return f&MedicalSustainedPressure != 0 }
func (f MedicalAlertFlags) HasHighPressure() bool      { return f&MedicalHighPressure != 0 }

// String 返回稳定的标志组合键
func (f MedicalAlertFlags) String() string {
	if f.None() {
		return "none"
	}
	var parts []string
	if f.HasSustainedPressure() {
		parts = append(parts, "sustained-pressure")
	}
	if f.HasHighPressure() {
		parts = append(parts, "high-pressure")
	}
	return strings.Join(parts, "+")
}
