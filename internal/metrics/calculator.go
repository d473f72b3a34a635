// Package metrics 提供压力网格的临床指标计算
//
// 全部为纯函数：峰值压力指数（PPI）、接触面积百分比、
// 变异系数（CV）、象限均值。对畸形输入降级处理，不返回错误。
package metrics

import (
	"math"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
)

// Calculator 指标计算器
type Calculator struct {
	rows           int
	cols           int
	noiseThreshold int
	minClusterSize int
}

// NewCalculator 创建指标计算器
func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{
		rows:           cfg.Monitoring.GridRows,
		cols:           cfg.Monitoring.GridCols,
		noiseThreshold: cfg.Monitoring.NoiseThreshold,
		minClusterSize: cfg.Monitoring.MinClusterSize,
	}
}

// PeakPressureIndex 计算峰值压力指数（PPI）
//
// 不是简单的 max(grid)：孤立的单像素尖峰是传感器伪影，不是
// 临床意义上的峰值。算法：
//  1. 值超过噪声阈值的单元视为"活跃"
//  2. 对活跃单元做 4-连通泛洪填充
//  3. 小于最小簇尺寸的连通簇按噪声丢弃
//  4. PPI = 存活簇成员中的最大值（无存活簇则为 0）
//
// 网格长度与预期尺寸不符时退化为普通 max。O(网格大小)，确定性。
func (c *Calculator) PeakPressureIndex(grid []int) int {
	if len(grid) != c.rows*c.cols {
		return plainMax(grid)
	}

	visited := make([]bool, len(grid))
	peak := 0

	for start := range grid {
		if visited[start] || grid[start] <= c.noiseThreshold {
			continue
		}

		// 泛洪填充收集一个连通簇
		cluster := c.floodFill(grid, visited, start)

		if len(cluster) < c.minClusterSize {
			continue // 噪声簇
		}

		for _, idx := range cluster {
			if grid[idx] > peak {
				peak = grid[idx]
			}
		}
	}

	return peak
}

// floodFill 从 start 出发收集 4-连通的活跃单元索引
func (c *Calculator) floodFill(grid []int, visited []bool, start int) []int {
	var cluster []int
	stack := []int{start}
	visited[start] = true

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cluster = append(cluster, idx)

		row := idx / c.cols
		col := idx % c.cols

		// 上下左右四个邻居
		neighbors := [4]int{-1, -1, -1, -1}
		if row > 0 {
			neighbors[0] = idx - c.cols
		}
		if row < c.rows-1 {
			neighbors[1] = idx + c.cols
		}
		if col > 0 {
			neighbors[2] = idx - 1
		}
		if col < c.cols-1 {
			neighbors[3] = idx + 1
		}

		for _, n := range neighbors {
			if n < 0 || visited[n] || grid[n] <= c.noiseThreshold {
				continue
			}
			visited[n] = true
			stack = append(stack, n)
		}
	}

	return cluster
}

// ContactAreaPercent 计算接触面积百分比
// count(cell > lowerLimit) / total * 100，空网格返回 0。
func (c *Calculator) ContactAreaPercent(grid []int, lowerLimit int) float64 {
	if len(grid) == 0 {
		return 0
	}

	count := 0
	for _, v := range grid {
		if v > lowerLimit {
			count++
		}
	}

	return float64(count) / float64(len(grid)) * 100
}

// CoefficientOfVariation 计算变异系数（CV）
//
// 仅对活跃单元（value > 0）计算：CV = 样本标准差 / 均值 × 100。
// 活跃单元少于 2 个或均值为 0 时返回 0（避免除零）。
// CV 低表示压力分布均匀，CV 高表示压力集中（风险指标）。
func (c *Calculator) CoefficientOfVariation(grid []int) float64 {
	var active []int
	for _, v := range grid {
		if v > 0 {
			active = append(active, v)
		}
	}

	if len(active) < 2 {
		return 0
	}

	sum := 0
	for _, v := range active {
		sum += v
	}
	mean := float64(sum) / float64(len(active))
	if mean == 0 {
		return 0
	}

	var sqDiff float64
	for _, v := range active {
		d := float64(v) - mean
		sqDiff += d * d
	}
	// 样本标准差（n-1）
	stdDev := math.Sqrt(sqDiff / float64(len(active)-1))

	return stdDev / mean * 100
}

// QuadrantAverages 计算四象限平均压力（NW, NE, SW, SE）
// 网格尺寸不符时返回全 0。
func (c *Calculator) QuadrantAverages(grid []int) [4]float64 {
	var result [4]float64
	if len(grid) != c.rows*c.cols {
		return result
	}

	var sums [4]float64
	var counts [4]int
	midRow := c.rows / 2
	midCol := c.cols / 2

	for idx, v := range grid {
		row := idx / c.cols
		col := idx % c.cols

		quadrant := 0 // NW
		if row < midRow && col >= midCol {
			quadrant = 1 // NE
		} else if row >= midRow && col < midCol {
			quadrant = 2 // SW
		} else if row >= midRow && col >= midCol {
			quadrant = 3 // SE
		}

		sums[quadrant] += float64(v)
		counts[quadrant]++
	}

	for i := range result {
		if counts[i] > 0 {
			result[i] = sums[i] / float64(counts[i])
		}
	}

	return result
}

// plainMax 普通最大值（尺寸不符时的退化路径）
func plainMax(grid []int) int {
	max := 0
	for _, v := range grid {
		if v > max {
			max = v
		}
	}
	return max
}
