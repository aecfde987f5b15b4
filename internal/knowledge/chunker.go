package knowledge

import (
	"fmt"

	apperrors "github.com/raghub/backend-go/internal/errors"
)

// Chunk 表示切分后的文本片段
type Chunk struct {
	Index int
	Text  string
}

// Chunker 固定窗口文本切分器，窗口按rune计数，相邻窗口带重叠。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建切分器，overlap必须严格小于size
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("chunk size 必须为正数: %d", chunkSize))
	}
	if overlap < 0 {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("chunk overlap 不能为负数: %d", overlap))
	}
	if overlap >= chunkSize {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("chunk overlap(%d) 必须小于 chunk size(%d)", overlap, chunkSize))
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}, nil
}

// Split 将文本切分为多个chunk。
// 每个窗口取[start, start+size)，末尾窗口到达文本末端后终止；
// 下一窗口起点回退overlap个rune。
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		// 每个窗口原样输出，空白窗口也保留，保证字符全覆盖
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
		start = end - c.chunkOverlap
		if start < 0 {
			start = 0
		}
	}

	return chunks
}
