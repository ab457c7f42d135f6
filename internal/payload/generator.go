package payload

import (
	"bytes"
	"context"

	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
)

// ctxCheckEvery Stream 每写入多少个块检查一次取消
const ctxCheckEvery = 64

// Generator 填充块生成器
// 底层缓冲区共享，调用方只能读取
type Generator struct {
	chunk  []byte
	filler byte
	exact  bool
}

// NewGenerator 创建块大小为 chunkSize 的生成器
// exact 为 true 时截断最后一块以精确交付请求字节数，否则向上取整到整块
func NewGenerator(chunkSize int, filler byte, exact bool) *Generator {
	if chunkSize <= 0 {
		chunkSize = constants.DefaultChunkSize
	}
	return &Generator{
		chunk:  bytes.Repeat([]byte{filler}, chunkSize),
		filler: filler,
		exact:  exact,
	}
}

// DefaultGenerator 默认生成器：1024 字节的 'X' 块
func DefaultGenerator() *Generator {
	return NewGenerator(constants.DefaultChunkSize, constants.DefaultFiller, false)
}

// ChunkSize 块大小
func (g *Generator) ChunkSize() int { return len(g.chunk) }

// Filler 填充字节
func (g *Generator) Filler() byte { return g.filler }

// Exact 是否精确截断到目标字节数
func (g *Generator) Exact() bool { return g.exact }

// Buffer 返回 total 字节请求的发送单元，长度为 min(total, 块大小)
// total <= 0 时返回 nil
func (g *Generator) Buffer(total int64) []byte {
	if total <= 0 {
		return nil
	}
	if total < int64(len(g.chunk)) {
		return g.chunk[:total]
	}
	return g.chunk
}

// Plan 返回 Stream 对 total 的写入次数和总字节数
func (g *Generator) Plan(total int64) (writes int64, delivered int64) {
	buf := int64(len(g.Buffer(total)))
	if buf == 0 {
		return 0, 0
	}
	writes = (total + buf - 1) / buf
	if g.exact {
		return writes, total
	}
	return writes, writes * buf
}

// Stream 反复以填充块调用 write，直到交付至少 total 字节（精确模式下恰好 total）
// 返回 write 接受的字节数，首个写入错误即中止
func (g *Generator) Stream(ctx context.Context, total int64, write func([]byte) error) (int64, error) {
	buf := g.Buffer(total)
	if buf == nil {
		return 0, nil
	}

	var sent int64
	for n := 0; sent < total; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return sent, coreerrors.Wrap(err, coreerrors.CodeCancelled, "stream interrupted")
			}
		}

		out := buf
		if g.exact {
			if rest := total - sent; rest < int64(len(out)) {
				out = out[:rest]
			}
		}
		if err := write(out); err != nil {
			return sent, err
		}
		sent += int64(len(out))
	}
	return sent, nil
}

// Reader 无限重复单个字节的 io.Reader
type Reader struct {
	b byte
}

// NewReader 创建 Reader，需配合 io.LimitReader 或 io.CopyN 限定长度
func NewReader(b byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}
