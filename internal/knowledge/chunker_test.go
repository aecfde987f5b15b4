package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/raghub/backend-go/internal/errors"
)

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(0, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfiguration))

	_, err = NewChunker(10, -1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfiguration))

	_, err = NewChunker(10, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfiguration))

	_, err = NewChunker(10, 3)
	require.NoError(t, err)
}

func TestChunkerSplitWithOverlap(t *testing.T) {
	chunker, err := NewChunker(10, 3)
	require.NoError(t, err)

	chunks := chunker.Split("abcdefghijklmno")
	require.Len(t, chunks, 2)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "hijklmno", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunkerSplitShortText(t *testing.T) {
	chunker, err := NewChunker(100, 10)
	require.NoError(t, err)

	chunks := chunker.Split("短文本")
	require.Len(t, chunks, 1)
	assert.Equal(t, "短文本", chunks[0].Text)
}

func TestChunkerSplitEmpty(t *testing.T) {
	chunker, err := NewChunker(10, 2)
	require.NoError(t, err)

	assert.Empty(t, chunker.Split(""))

	// 纯空白文本也按窗口原样输出，空文档由入库层判断
	chunks := chunker.Split("   \n\t  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "   \n\t  ", chunks[0].Text)
}

func TestChunkerSplitFullCoverage(t *testing.T) {
	chunker, err := NewChunker(5, 0)
	require.NoError(t, err)

	// 空白窗口不丢弃：拼回所有chunk应还原原文，序号不跳号
	text := "hello     world"
	chunks := chunker.Split(text)
	require.Len(t, chunks, 3)

	var joined strings.Builder
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		joined.WriteString(chunk.Text)
	}
	assert.Equal(t, text, joined.String())
	assert.Equal(t, "     ", chunks[1].Text)
}

func TestChunkerSplitExactWindow(t *testing.T) {
	chunker, err := NewChunker(5, 2)
	require.NoError(t, err)

	// 文本长度正好等于窗口，只产生一个chunk
	chunks := chunker.Split("abcde")
	require.Len(t, chunks, 1)
	assert.Equal(t, "abcde", chunks[0].Text)
}

func TestChunkerSplitRuneBoundary(t *testing.T) {
	chunker, err := NewChunker(4, 1)
	require.NoError(t, err)

	// 多字节字符按rune计数切分，不会截断字符
	chunks := chunker.Split("一二三四五六七")
	require.Len(t, chunks, 2)
	assert.Equal(t, "一二三四", chunks[0].Text)
	assert.Equal(t, "四五六七", chunks[1].Text)
}

func TestChunkerSplitLongText(t *testing.T) {
	chunker, err := NewChunker(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("a", 1000)
	chunks := chunker.Split(text)
	require.NotEmpty(t, chunks)

	// 相邻chunk应有20个rune的重叠
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		curr := []rune(chunks[i].Text)
		overlap := string(prev[len(prev)-20:])
		assert.Equal(t, overlap, string(curr[:20]))
	}

	// 序号连续递增
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}
