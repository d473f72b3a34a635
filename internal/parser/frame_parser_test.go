package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, rows, cols int) *FrameParser {
	cfg := &config.Config{}
	cfg.Monitoring.GridRows = rows
	cfg.Monitoring.GridCols = cols
	cfg.Monitoring.MaxPressure = 255
	return NewFrameParser(cfg)
}

// buildFrameText 构建 rows×cols 的帧文本，所有单元为同一值
func buildFrameText(rows, cols, value int) string {
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		cells := make([]string, cols)
		for c := 0; c < cols; c++ {
			cells[c] = fmt.Sprintf("%d", value)
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestParse_WellFormedFrame(t *testing.T) {
	p := newTestParser(t, 32, 32)

	grid := p.Parse(buildFrameText(32, 32, 100))

	require.Len(t, grid, 1024)
	for _, v := range grid {
		assert.Equal(t, 100, v)
	}
}

func TestParse_MalformedTokensBecomeZero(t *testing.T) {
	p := newTestParser(t, 2, 4)

	// 坏 token（非数字、空、负数）全部置 0，不中断解析
	grid := p.Parse("10,abc,,30\n-5,2.5,40,junk")

	assert.Equal(t, []int{10, 0, 0, 30, 0, 0, 40, 0}, grid)
}

func TestParse_RaggedInputPaddedAndTruncated(t *testing.T) {
	p := newTestParser(t, 3, 3)

	// 第一行超长截断，第二行不足补 0，缺失的第三行整行补 0
	grid := p.Parse("1,2,3,4,5\n6")

	assert.Equal(t, []int{1, 2, 3, 6, 0, 0, 0, 0, 0}, grid)
	assert.Len(t, grid, p.GridSize())
}

func TestParse_ExtraRowsTruncated(t *testing.T) {
	p := newTestParser(t, 2, 2)

	grid := p.Parse("1,2\n3,4\n5,6\n7,8")

	assert.Equal(t, []int{1, 2, 3, 4}, grid)
}

func TestParse_ValuesClampedToRange(t *testing.T) {
	p := newTestParser(t, 1, 3)

	grid := p.Parse("300,255,0")

	assert.Equal(t, []int{255, 255, 0}, grid)
}

func TestParse_EmptyInput(t *testing.T) {
	p := newTestParser(t, 32, 32)

	grid := p.Parse("")

	require.Len(t, grid, 1024)
	for _, v := range grid {
		assert.Equal(t, 0, v)
	}
}

func TestParse_WindowsLineEndings(t *testing.T) {
	p := newTestParser(t, 2, 2)

	grid := p.Parse("1,2\r\n3,4\r\n")

	assert.Equal(t, []int{1, 2, 3, 4}, grid)
}

func TestParse_BlankLinesSkipped(t *testing.T) {
	p := newTestParser(t, 2, 2)

	grid := p.Parse("1,2\n\n3,4")

	assert.Equal(t, []int{1, 2, 3, 4}, grid)
}
