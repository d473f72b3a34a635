package notifier

import (
	"fmt"
	"strings"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
)

// 通知图标（前端静态资源路径）
const (
	iconPressure  = "/icons/pressure-alert.png"
	iconEquipment = "/icons/equipment-fault.png"
)

// ContentBuilder 把评估结果渲染为面向单个受众的通知内容
//
// 渲染是纯函数：同一评估结果总是产出同样的标题、正文和 tag。
// tag 对 (患者, 报警类别) 稳定，投递端用它做去重与原位替换。
type ContentBuilder struct {
	criticalSeverity float64
}

// NewContentBuilder 创建通知内容构造器
func NewContentBuilder(cfg *config.Config) *ContentBuilder {
	return &ContentBuilder{criticalSeverity: cfg.Monitoring.CriticalSeverity}
}

// BuildPatientAlert 面向患者的通知
func (b *ContentBuilder) BuildPatientAlert(eval *models.AlertEvaluation) *models.NotificationContent {
	if b.isEquipmentAlert(eval) {
		return b.buildEquipment(eval)
	}

	critical := eval.IsCritical(b.criticalSeverity)

	content := &models.NotificationContent{
		Title:              b.pressureTitle(eval.AlertKey, critical),
		Body:               b.pressureBody(eval),
		Icon:               iconPressure,
		Tag:                buildTag(eval.PatientID, eval.AlertKey),
		RequireInteraction: critical,
	}
	return content
}

// BuildClinicianAlert 面向临床人员的通知（标题前缀患者显示名）
func (b *ContentBuilder) BuildClinicianAlert(eval *models.AlertEvaluation, patientName string) *models.NotificationContent {
	content := b.BuildPatientAlert(eval)
	if patientName == "" {
		patientName = eval.PatientID
	}
	content.Title = fmt.Sprintf("%s: %s", patientName, content.Title)
	content.Tag = buildTag(eval.PatientID, models.ClinicianKeyPrefix+eval.AlertKey)
	return content
}

func (b *ContentBuilder) isEquipmentAlert(eval *models.AlertEvaluation) bool {
	return strings.HasPrefix(eval.AlertKey, models.EquipmentKeyPrefix)
}

func (b *ContentBuilder) pressureTitle(alertKey string, critical bool) string {
	switch alertKey {
	case models.AlertKeySustainedPressure:
		if critical {
			return "Critical Sustained Pressure!"
		}
		return "Sustained Pressure Warning"
	case models.AlertKeyThresholdBreach, models.AlertKeyHighPressure:
		if critical {
			return "Critical Pressure Alert!"
		}
		return "High Pressure Detected"
	default:
		return "Pressure Notice"
	}
}

func (b *ContentBuilder) pressureBody(eval *models.AlertEvaluation) string {
	if eval.ThresholdBreached {
		return fmt.Sprintf("Peak pressure %d exceeds your threshold of %d. Please adjust your position.",
			eval.PeakPressure, eval.HighThreshold)
	}
	if eval.MedicalAlerts.HasSustainedPressure() {
		return "Pressure has been sustained in one area for an extended period. Please adjust your position."
	}
	if eval.MedicalAlerts.HasHighPressure() {
		return "Elevated pressure detected by your device. Please adjust your position."
	}
	return fmt.Sprintf("Peak pressure is %d.", eval.PeakPressure)
}

// buildEquipment 设备故障通知：正文为各故障句子的拼接，
// 关键故障（断开/饱和）强制弹出确认。
func (b *ContentBuilder) buildEquipment(eval *models.AlertEvaluation) *models.NotificationContent {
	faults := eval.DeviceFaults

	title := "Equipment Fault Detected"
	if faults.IsCritical() {
		title = "Urgent: Equipment Problem!"
	}

	return &models.NotificationContent{
		Title:              title,
		Body:               strings.Join(faultSentences(faults), " "),
		Icon:               iconEquipment,
		Tag:                buildTag(eval.PatientID, eval.AlertKey),
		RequireInteraction: faults.IsCritical() || eval.IsCritical(b.criticalSeverity),
	}
}

// faultSentences 按固定顺序输出每个置位故障的描述
func faultSentences(faults models.DeviceFaultFlags) []string {
	var parts []string
	if faults.HasDisconnected() {
		parts = append(parts, "Sensor mat is disconnected.")
	}
	if faults.HasSaturation() {
		parts = append(parts, "Sensor readings are saturated.")
	}
	if faults.HasDeadPixels() {
		parts = append(parts, "Dead pixels detected on the sensor grid.")
	}
	if faults.HasPartialDataLoss() {
		parts = append(parts, "Part of the sensor data was lost.")
	}
	if faults.HasCalibrationDrift() {
		parts = append(parts, "Sensor calibration has drifted.")
	}
	if faults.HasElectricalNoise() {
		parts = append(parts, "Electrical noise is interfering with readings.")
	}
	if len(parts) == 0 {
		parts = append(parts, "An equipment fault was detected.")
	}
	return parts
}

func buildTag(patientID, alertKey string) string {
	return fmt.Sprintf("graphenetrace-%s-%s", patientID, alertKey)
}
