package trends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/metrics"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
)

// ============================================
// 测试替身
// ============================================

type window struct {
	from, to time.Time
}

type fakeFrameSource struct {
	sessionFrames map[string][]models.PressureFrame
	windowFrames  []models.PressureFrame
	queried       []window
	err           error
}

func (f *fakeFrameSource) GetFramesForSession(_ context.Context, sessionID string) ([]models.PressureFrame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sessionFrames[sessionID], nil
}

func (f *fakeFrameSource) GetFramesInWindow(_ context.Context, _ string, from, to time.Time) ([]models.PressureFrame, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queried = append(f.queried, window{from: from, to: to})
	return f.windowFrames, nil
}

type fakeResolver struct {
	high  int
	calls int
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, patientID string) (*models.PatientThresholdSettings, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.PatientThresholdSettings{PatientID: patientID, LowThreshold: 60, HighThreshold: f.high}, nil
}

func newTestReporter(frames FrameSource, resolver ThresholdResolver) *Reporter {
	cfg := &config.Config{}
	cfg.Monitoring.GridRows = 4
	cfg.Monitoring.GridCols = 4
	cfg.Monitoring.MaxPressure = 255
	cfg.Monitoring.NoiseThreshold = 50
	cfg.Monitoring.MinClusterSize = 1
	cfg.Monitoring.ContactLowerLimit = 0
	cfg.Monitoring.FrameInterval = time.Second / 15

	return NewReporter(cfg, frames, resolver, metrics.NewCalculator(cfg), zap.NewNop())
}

// peakFrame 4×4 网格，全 0 背景加一个峰值单元
func peakFrame(patientID string, peak int, at time.Time) models.PressureFrame {
	grid := make([]int, 16)
	grid[5] = peak
	return models.PressureFrame{
		SessionID:    "session-1",
		PatientID:    &patientID,
		DeviceID:     "device-1",
		Timestamp:    at,
		Grid:         grid,
		PeakPressure: peak,
	}
}

// ============================================
// 会话与窗口汇总
// ============================================

func TestSessionSummary(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeFrameSource{sessionFrames: map[string][]models.PressureFrame{
		"session-1": {
			peakFrame("patient-1", 100, base),
			peakFrame("patient-1", 200, base.Add(time.Second)),
			peakFrame("patient-1", 150, base.Add(2*time.Second)),
		},
	}}
	reporter := newTestReporter(source, &fakeResolver{high: 180})

	summary, err := reporter.SessionSummary(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Equal(t, 3, summary.FrameCount)
	assert.InDelta(t, 150.0, summary.AvgPeakPressure, 0.001)
	assert.Equal(t, 200, summary.MaxPeakPressure)
	assert.Equal(t, 180, summary.HighThreshold)
	// 只有 200 那一帧达到阈值（闭边界）
	assert.Equal(t, 1, summary.FramesAboveThreshold)
	assert.Equal(t, time.Second/15, summary.TimeAboveThreshold)
	// 16 格中 1 格受压
	assert.InDelta(t, 6.25, summary.AvgContactArea, 0.001)
}

func TestSessionSummary_Empty(t *testing.T) {
	source := &fakeFrameSource{sessionFrames: map[string][]models.PressureFrame{}}
	resolver := &fakeResolver{high: 180}
	reporter := newTestReporter(source, resolver)

	summary, err := reporter.SessionSummary(context.Background(), "session-x")

	require.NoError(t, err)
	assert.Equal(t, 0, summary.FrameCount)
	assert.Equal(t, time.Duration(0), summary.TimeAboveThreshold)
	// 无帧时不触发阈值解析
	assert.Zero(t, resolver.calls)
}

func TestSessionSummary_OrphanFramesSkipThresholdStats(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	frame := peakFrame("", 200, base)
	frame.PatientID = nil
	source := &fakeFrameSource{sessionFrames: map[string][]models.PressureFrame{
		"session-1": {frame},
	}}
	resolver := &fakeResolver{high: 180}
	reporter := newTestReporter(source, resolver)

	summary, err := reporter.SessionSummary(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Equal(t, 200, summary.MaxPeakPressure)
	assert.Zero(t, summary.HighThreshold)
	assert.Zero(t, summary.FramesAboveThreshold)
	assert.Zero(t, resolver.calls)
}

func TestWindowSummary_ResolverErrorPropagates(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeFrameSource{windowFrames: []models.PressureFrame{peakFrame("patient-1", 200, base)}}
	reporter := newTestReporter(source, &fakeResolver{err: errors.New("db down")})

	_, err := reporter.WindowSummary(context.Background(), "patient-1", base, base.Add(time.Hour))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve thresholds")
}

func TestWindowSummary_ContextCancelled(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeFrameSource{windowFrames: []models.PressureFrame{peakFrame("patient-1", 200, base)}}
	reporter := newTestReporter(source, &fakeResolver{high: 180})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reporter.WindowSummary(ctx, "patient-1", base, base.Add(time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================
// 峰值序列降采样
// ============================================

func TestPeakSeries_Downsample(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	var frames []models.PressureFrame
	for i := 0; i < 10; i++ {
		frames = append(frames, peakFrame("patient-1", 100+i, base.Add(time.Duration(i)*time.Second)))
	}
	source := &fakeFrameSource{windowFrames: frames}
	reporter := newTestReporter(source, &fakeResolver{high: 180})

	series, err := reporter.PeakSeries(context.Background(), "patient-1", base, base.Add(time.Minute), 4)

	require.NoError(t, err)
	// 步长 ceil(10/4)=3：取下标 0,3,6,9
	require.Len(t, series, 4)
	assert.Equal(t, 100, series[0].PeakPressure)
	assert.Equal(t, 103, series[1].PeakPressure)
	assert.Equal(t, 106, series[2].PeakPressure)
	assert.Equal(t, 109, series[3].PeakPressure)
	// 时间保持升序
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].Timestamp.After(series[i-1].Timestamp))
	}
}

func TestPeakSeries_NoLimitKeepsAll(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeFrameSource{windowFrames: []models.PressureFrame{
		peakFrame("patient-1", 100, base),
		peakFrame("patient-1", 110, base.Add(time.Second)),
	}}
	reporter := newTestReporter(source, &fakeResolver{high: 180})

	series, err := reporter.PeakSeries(context.Background(), "patient-1", base, base.Add(time.Minute), 0)

	require.NoError(t, err)
	assert.Len(t, series, 2)
}

// ============================================
// 象限热度
// ============================================

func TestQuadrantHeat(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	patientID := "patient-1"

	// 仅左上象限（行 0-1，列 0-1）受压
	grid := make([]int, 16)
	grid[0], grid[1], grid[4], grid[5] = 100, 100, 100, 100
	frame := models.PressureFrame{PatientID: &patientID, Timestamp: base, Grid: grid}

	source := &fakeFrameSource{windowFrames: []models.PressureFrame{frame, frame}}
	reporter := newTestReporter(source, &fakeResolver{high: 180})

	heat, err := reporter.QuadrantHeat(context.Background(), "patient-1", base, base.Add(time.Minute))

	require.NoError(t, err)
	assert.InDelta(t, 100.0, heat[0], 0.001)
	assert.Zero(t, heat[1])
	assert.Zero(t, heat[2])
	assert.Zero(t, heat[3])
}

func TestQuadrantHeat_NoFrames(t *testing.T) {
	source := &fakeFrameSource{}
	reporter := newTestReporter(source, &fakeResolver{high: 180})

	heat, err := reporter.QuadrantHeat(context.Background(), "patient-1", time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, [4]float64{}, heat)
}

// ============================================
// 按周对比
// ============================================

func TestWeeklyComparison(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	source := &fakeFrameSource{}
	reporter := newTestReporter(source, &fakeResolver{high: 180})
	reporter.now = func() time.Time { return now }

	result, err := reporter.WeeklyComparison(context.Background(), "patient-1", 3)

	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "This week", result[0].Label)
	assert.Equal(t, "Last week", result[1].Label)
	assert.Equal(t, "2 weeks ago", result[2].Label)

	// 每周恰好 7 天，按当前时刻锚定向过去切分
	assert.Equal(t, now, result[0].To)
	assert.Equal(t, now.AddDate(0, 0, -7), result[0].From)
	assert.Equal(t, now.AddDate(0, 0, -7), result[1].To)
	assert.Equal(t, now.AddDate(0, 0, -14), result[1].From)
	assert.Len(t, source.queried, 3)
}

func TestWeeklyComparison_InvalidWeeks(t *testing.T) {
	reporter := newTestReporter(&fakeFrameSource{}, &fakeResolver{high: 180})

	_, err := reporter.WeeklyComparison(context.Background(), "patient-1", 0)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
