// Package parser 提供原始帧文本解析功能
//
// 将设备上报的文本快照（逗号分隔的整数网格，行以换行符分隔）
// 解析为固定长度的行优先数组。解析策略是宽容的：传感器噪声会
// 产生坏 token，坏 token 置 0 而不是整帧失败（宁可少标记，
// 不可中断监测）。
package parser

import (
	"strconv"
	"strings"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
)

// FrameParser 帧文本解析器
type FrameParser struct {
	rows        int
	cols        int
	maxPressure int
}

// NewFrameParser 创建帧解析器
func NewFrameParser(cfg *config.Config) *FrameParser {
	return &FrameParser{
		rows:        cfg.Monitoring.GridRows,
		cols:        cfg.Monitoring.GridCols,
		maxPressure: cfg.Monitoring.MaxPressure,
	}
}

// GridSize 输出网格长度（rows × cols）
func (p *FrameParser) GridSize() int {
	return p.rows * p.cols
}

// Parse 解析帧文本为固定长度的行优先网格
//
// 规则：
//   - 非数字 token 或负数 → 0
//   - 超过量程的值截断到 maxPressure
//   - 行/列不足补 0，多余截断（输出长度恒等于 rows × cols）
//
// 无副作用，对任意输入都不返回错误。
func (p *FrameParser) Parse(text string) []int {
	grid := make([]int, p.GridSize())

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	row := 0
	for _, line := range lines {
		if row >= p.rows {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := strings.Split(line, ",")
		for col := 0; col < p.cols && col < len(tokens); col++ {
			grid[row*p.cols+col] = p.parseCell(tokens[col])
		}
		row++
	}

	return grid
}

// parseCell 解析单个 token（坏值置 0，超量程截断）
func (p *FrameParser) parseCell(token string) int {
	value, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || value < 0 {
		return 0
	}
	if value > p.maxPressure {
		return p.maxPressure
	}
	return value
}
