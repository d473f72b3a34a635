package metrics

import (
	"math"
	"testing"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(rows, cols int) *Calculator {
	cfg := &config.Config{}
	cfg.Monitoring.GridRows = rows
	cfg.Monitoring.GridCols = cols
	cfg.Monitoring.NoiseThreshold = 50
	cfg.Monitoring.MinClusterSize = 10
	return NewCalculator(cfg)
}

// gridWithBlock 构建 32×32 全 0 网格，并在 (row,col) 处放置 height×width 的 value 块
func gridWithBlock(row, col, height, width, value int) []int {
	grid := make([]int, 32*32)
	for r := row; r < row+height; r++ {
		for c := col; c < col+width; c++ {
			grid[r*32+c] = value
		}
	}
	return grid
}

// ============================================
// PPI 测试
// ============================================

func TestPPI_SinglePixelSpikeIgnored(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 孤立单像素 255：簇尺寸 1 < 10，按噪声丢弃
	grid := gridWithBlock(5, 5, 1, 1, 255)

	assert.Equal(t, 0, calc.PeakPressureIndex(grid))
}

func TestPPI_LargeClusterSurvives(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 2×5 = 10 个单元的连通块，恰好达到最小簇尺寸
	grid := gridWithBlock(10, 10, 2, 5, 255)

	assert.Equal(t, 255, calc.PeakPressureIndex(grid))
}

func TestPPI_ClusterBelowMinSizeIgnored(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 3×3 = 9 个单元，差一个不够
	grid := gridWithBlock(10, 10, 3, 3, 200)

	assert.Equal(t, 0, calc.PeakPressureIndex(grid))
}

func TestPPI_PeakIsMaxWithinSurvivingCluster(t *testing.T) {
	calc := newTestCalculator(32, 32)

	grid := gridWithBlock(0, 0, 4, 4, 120)
	grid[1*32+1] = 230 // 簇内最大值

	// 另一个噪声尖峰值更高，但簇太小，不参与
	grid[20*32+20] = 255

	assert.Equal(t, 230, calc.PeakPressureIndex(grid))
}

func TestPPI_CellsAtNoiseThresholdNotActive(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 恰好等于噪声阈值的单元不算活跃（要求严格大于）
	grid := gridWithBlock(0, 0, 4, 4, 50)

	assert.Equal(t, 0, calc.PeakPressureIndex(grid))
}

func TestPPI_DiagonalCellsNotConnected(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 对角线排布：4-连通下每个单元都是独立的单元簇
	grid := make([]int, 32*32)
	for i := 0; i < 12; i++ {
		grid[i*32+i] = 200
	}

	assert.Equal(t, 0, calc.PeakPressureIndex(grid))
}

func TestPPI_DimensionMismatchFallsBackToPlainMax(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 尺寸不符：退化为普通 max，不做聚类
	grid := []int{0, 255, 10}

	assert.Equal(t, 255, calc.PeakPressureIndex(grid))
}

func TestPPI_EmptyGrid(t *testing.T) {
	calc := newTestCalculator(32, 32)

	assert.Equal(t, 0, calc.PeakPressureIndex(nil))
	assert.Equal(t, 0, calc.PeakPressureIndex(make([]int, 32*32)))
}

// ============================================
// 接触面积测试
// ============================================

func TestContactArea_Basic(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 1024 个单元中 256 个有压力 → 25%
	grid := gridWithBlock(0, 0, 16, 16, 80)

	assert.InDelta(t, 25.0, calc.ContactAreaPercent(grid, 0), 1e-9)
}

func TestContactArea_AlwaysInRange(t *testing.T) {
	calc := newTestCalculator(32, 32)

	empty := make([]int, 1024)
	assert.Equal(t, 0.0, calc.ContactAreaPercent(empty, 0))

	full := gridWithBlock(0, 0, 32, 32, 255)
	assert.Equal(t, 100.0, calc.ContactAreaPercent(full, 0))
}

func TestContactArea_RespectsLowerLimit(t *testing.T) {
	calc := newTestCalculator(32, 32)

	grid := make([]int, 1024)
	grid[0] = 30
	grid[1] = 31

	// limit=30：只有严格大于 30 的单元计入
	assert.InDelta(t, 100.0/1024.0, calc.ContactAreaPercent(grid, 30), 1e-9)
}

func TestContactArea_EmptySlice(t *testing.T) {
	calc := newTestCalculator(32, 32)

	assert.Equal(t, 0.0, calc.ContactAreaPercent(nil, 0))
}

// ============================================
// CV 测试
// ============================================

func TestCV_FewerThanTwoActiveCells(t *testing.T) {
	calc := newTestCalculator(32, 32)

	grid := make([]int, 1024)
	assert.Equal(t, 0.0, calc.CoefficientOfVariation(grid))

	grid[0] = 100
	assert.Equal(t, 0.0, calc.CoefficientOfVariation(grid))
}

func TestCV_UniformDistributionIsZero(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 所有活跃单元同值：标准差为 0 → CV 为 0
	grid := gridWithBlock(0, 0, 4, 4, 100)

	assert.InDelta(t, 0.0, calc.CoefficientOfVariation(grid), 1e-9)
}

func TestCV_KnownValue(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// 活跃单元 {90, 110}：mean=100, 样本标准差=sqrt(200)≈14.142 → CV≈14.14
	grid := make([]int, 1024)
	grid[0] = 90
	grid[1] = 110

	expected := math.Sqrt(200) / 100 * 100
	assert.InDelta(t, expected, calc.CoefficientOfVariation(grid), 1e-9)
}

func TestCV_ConcentratedPressureHigherThanEven(t *testing.T) {
	calc := newTestCalculator(32, 32)

	even := gridWithBlock(0, 0, 8, 8, 100)

	concentrated := gridWithBlock(0, 0, 8, 8, 20)
	concentrated[0] = 250
	concentrated[1] = 250

	assert.Greater(t,
		calc.CoefficientOfVariation(concentrated),
		calc.CoefficientOfVariation(even),
	)
}

// ============================================
// 象限均值测试
// ============================================

func TestQuadrantAverages(t *testing.T) {
	calc := newTestCalculator(32, 32)

	// NW 16×16 填 100，其余为 0
	grid := gridWithBlock(0, 0, 16, 16, 100)

	q := calc.QuadrantAverages(grid)
	require.Len(t, q, 4)
	assert.InDelta(t, 100.0, q[0], 1e-9) // NW
	assert.InDelta(t, 0.0, q[1], 1e-9)   // NE
	assert.InDelta(t, 0.0, q[2], 1e-9)   // SW
	assert.InDelta(t, 0.0, q[3], 1e-9)   // SE
}

func TestQuadrantAverages_SE(t *testing.T) {
	calc := newTestCalculator(32, 32)

	grid := gridWithBlock(16, 16, 16, 16, 60)

	q := calc.QuadrantAverages(grid)
	assert.InDelta(t, 0.0, q[0], 1e-9)
	assert.InDelta(t, 60.0, q[3], 1e-9)
}

func TestQuadrantAverages_DimensionMismatch(t *testing.T) {
	calc := newTestCalculator(32, 32)

	q := calc.QuadrantAverages([]int{1, 2, 3})
	assert.Equal(t, [4]float64{}, q)
}
