package codec

import "fmt"

// minBufferSize 是来源长度未知时的初始容量
const minBufferSize = 64

// Buffer 是编码输出的可增长缓冲区
//
// 与 bytes.Buffer 的区别：增长次数可观测、可设置内存上限、
// Detach 时收缩到恰好的长度。初始容量只是估计值，写入超出时按倍增扩容，
// 除了超过上限之外不会失败。
type Buffer struct {
	buf   []byte
	limit int64 // <= 0 表示不限制
	grows int
}

// NewBuffer 按估计容量分配缓冲区
func NewBuffer(capacity int, limit int64) *Buffer {
	if capacity < minBufferSize {
		capacity = minBufferSize
	}
	if limit > 0 && int64(capacity) > limit {
		capacity = int(limit)
	}
	return &Buffer{buf: make([]byte, 0, capacity), limit: limit}
}

// EstimateCapacity 返回 ceil(n * 1.1)，n 未知 (<=0) 时返回最小容量
func EstimateCapacity(n int64, limit int64) int {
	if n <= 0 {
		return minBufferSize
	}
	c := (n*11 + 9) / 10
	if limit > 0 && c > limit {
		c = limit
	}
	if c < minBufferSize {
		return minBufferSize
	}
	return int(c)
}

// Write 追加 p，容量不足时倍增扩容
func (b *Buffer) Write(p []byte) (int, error) {
	need := len(b.buf) + len(p)
	if b.limit > 0 && int64(need) > b.limit {
		return 0, fmt.Errorf("%w: output needs %d bytes, limit is %d", ErrOutOfMemory, need, b.limit)
	}
	if need > cap(b.buf) {
		newCap := max(2*cap(b.buf), need)
		if b.limit > 0 && int64(newCap) > b.limit {
			newCap = int(b.limit)
		}
		grown := make([]byte, len(b.buf), newCap)
		copy(grown, b.buf)
		b.buf = grown
		b.grows++
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *Buffer) Len() int { return len(b.buf) }

func (b *Buffer) Cap() int { return cap(b.buf) }

// Grows 返回扩容次数
func (b *Buffer) Grows() int { return b.grows }

// Bytes 返回当前内容 (与缓冲区共享底层数组)
func (b *Buffer) Bytes() []byte { return b.buf }

// Detach 返回长度恰好的副本，并释放内部缓冲区
func (b *Buffer) Detach() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.Release()
	return out
}

// Release 丢弃内部缓冲区
func (b *Buffer) Release() {
	b.buf = nil
}
