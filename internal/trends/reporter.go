package trends

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/metrics"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
)

// ============================================
// 依赖接口
// ============================================

// FrameSource 历史帧读取（repository.SessionRepository 实现）
type FrameSource interface {
	GetFramesForSession(ctx context.Context, sessionID string) ([]models.PressureFrame, error)
	GetFramesInWindow(ctx context.Context, patientID string, from, to time.Time) ([]models.PressureFrame, error)
}

// ThresholdResolver 患者阈值解析（settings.Resolver 实现）
type ThresholdResolver interface {
	Resolve(ctx context.Context, patientID string) (*models.PatientThresholdSettings, error)
}

// ============================================
// 汇总结果类型
// ============================================

// Summary 一段时间（会话或任意窗口）的聚合统计
// 所有指标由原始网格重算，不信任帧落库时的缓存值。
type Summary struct {
	FrameCount           int           `json:"frame_count"`
	AvgPeakPressure      float64       `json:"avg_peak_pressure"`
	MaxPeakPressure      int           `json:"max_peak_pressure"`
	AvgContactArea       float64       `json:"avg_contact_area"`
	AvgCV                float64       `json:"avg_cv"`
	HighThreshold        int           `json:"high_threshold"`
	FramesAboveThreshold int           `json:"frames_above_threshold"`
	TimeAboveThreshold   time.Duration `json:"time_above_threshold"`
}

// PeakPoint 峰值时间序列中的一个点
type PeakPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	PeakPressure int       `json:"peak_pressure"`
}

// WeeklySummary 按周对比中的一周
type WeeklySummary struct {
	Label   string    `json:"label"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Summary Summary   `json:"summary"`
}

// ============================================
// 报表器
// ============================================

// Reporter 趋势报表器：面向患者与临床人员的历史汇总
type Reporter struct {
	config   *config.Config
	frames   FrameSource
	resolver ThresholdResolver
	calc     *metrics.Calculator
	logger   *zap.Logger
	now      func() time.Time
}

// NewReporter 创建趋势报表器
func NewReporter(cfg *config.Config, frames FrameSource, resolver ThresholdResolver, calc *metrics.Calculator, logger *zap.Logger) *Reporter {
	return &Reporter{
		config:   cfg,
		frames:   frames,
		resolver: resolver,
		calc:     calc,
		logger:   logger,
		now:      time.Now,
	}
}

// SessionSummary 单次会话的聚合统计
func (r *Reporter) SessionSummary(ctx context.Context, sessionID string) (*Summary, error) {
	frames, err := r.frames.GetFramesForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load frames for session %s: %w", sessionID, err)
	}
	return r.summarize(ctx, frames)
}

// WindowSummary 任意时间窗口的聚合统计
func (r *Reporter) WindowSummary(ctx context.Context, patientID string, from, to time.Time) (*Summary, error) {
	frames, err := r.frames.GetFramesInWindow(ctx, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load frames for patient %s: %w", patientID, err)
	}
	return r.summarize(ctx, frames)
}

// PeakSeries 峰值时间序列，均匀步长降采样到最多 maxPoints 个点
//
// 降采样保持时间顺序且首帧总在序列中；maxPoints <= 0 视为不限。
func (r *Reporter) PeakSeries(ctx context.Context, patientID string, from, to time.Time, maxPoints int) ([]PeakPoint, error) {
	frames, err := r.frames.GetFramesInWindow(ctx, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load frames for patient %s: %w", patientID, err)
	}

	stride := 1
	if maxPoints > 0 && len(frames) > maxPoints {
		stride = (len(frames) + maxPoints - 1) / maxPoints
	}

	var series []PeakPoint
	for i := 0; i < len(frames); i += stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series = append(series, PeakPoint{
			Timestamp:    frames[i].Timestamp,
			PeakPressure: r.calc.PeakPressureIndex(frames[i].Grid),
		})
	}

	return series, nil
}

// QuadrantHeat 窗口内四象限平均压力（NW/NE/SW/SE）
func (r *Reporter) QuadrantHeat(ctx context.Context, patientID string, from, to time.Time) ([4]float64, error) {
	var heat [4]float64

	frames, err := r.frames.GetFramesInWindow(ctx, patientID, from, to)
	if err != nil {
		return heat, fmt.Errorf("load frames for patient %s: %w", patientID, err)
	}
	if len(frames) == 0 {
		return heat, nil
	}

	for i := range frames {
		if err := ctx.Err(); err != nil {
			return heat, err
		}
		q := r.calc.QuadrantAverages(frames[i].Grid)
		for j := 0; j < 4; j++ {
			heat[j] += q[j]
		}
	}
	for j := 0; j < 4; j++ {
		heat[j] /= float64(len(frames))
	}

	return heat, nil
}

// WeeklyComparison 最近 weeks 周的逐周对比，最近一周在前
// 周窗口以当前时刻为锚向过去切分，每周恰好 7 天。
func (r *Reporter) WeeklyComparison(ctx context.Context, patientID string, weeks int) ([]WeeklySummary, error) {
	if weeks < 1 {
		return nil, &models.ValidationError{Field: "weeks", Value: weeks, Message: "must be at least 1"}
	}

	end := r.now()
	result := make([]WeeklySummary, 0, weeks)

	for i := 0; i < weeks; i++ {
		to := end.AddDate(0, 0, -7*i)
		from := to.AddDate(0, 0, -7)

		summary, err := r.WindowSummary(ctx, patientID, from, to)
		if err != nil {
			return nil, err
		}

		result = append(result, WeeklySummary{
			Label:   weekLabel(i),
			From:    from,
			To:      to,
			Summary: *summary,
		})
	}

	return result, nil
}

func weekLabel(weeksAgo int) string {
	switch weeksAgo {
	case 0:
		return "This week"
	case 1:
		return "Last week"
	default:
		return fmt.Sprintf("%d weeks ago", weeksAgo)
	}
}

// summarize 对一组帧重算指标并聚合
//
// 阈值统计需要患者归属：无帧或帧未分配患者时阈值相关字段保持
// 零值，其余统计照常。每帧按固定帧间隔折算越限时长。
func (r *Reporter) summarize(ctx context.Context, frames []models.PressureFrame) (*Summary, error) {
	summary := &Summary{FrameCount: len(frames)}
	if len(frames) == 0 {
		return summary, nil
	}

	highThreshold := 0
	if frames[0].PatientID != nil && *frames[0].PatientID != "" {
		st, err := r.resolver.Resolve(ctx, *frames[0].PatientID)
		if err != nil {
			return nil, fmt.Errorf("resolve thresholds: %w", err)
		}
		highThreshold = st.HighThreshold
		summary.HighThreshold = highThreshold
	}

	lowerLimit := r.config.Monitoring.ContactLowerLimit
	var sumPeak, sumContact, sumCV float64

	for i := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		peak := r.calc.PeakPressureIndex(frames[i].Grid)
		sumPeak += float64(peak)
		if peak > summary.MaxPeakPressure {
			summary.MaxPeakPressure = peak
		}
		sumContact += r.calc.ContactAreaPercent(frames[i].Grid, lowerLimit)
		sumCV += r.calc.CoefficientOfVariation(frames[i].Grid)

		if highThreshold > 0 && peak >= highThreshold {
			summary.FramesAboveThreshold++
		}
	}

	n := float64(len(frames))
	summary.AvgPeakPressure = sumPeak / n
	summary.AvgContactArea = sumContact / n
	summary.AvgCV = sumCV / n
	summary.TimeAboveThreshold = time.Duration(summary.FramesAboveThreshold) * r.config.Monitoring.FrameInterval

	return summary, nil
}
