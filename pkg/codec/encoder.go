package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"hoover/pkg/core"
)

// DefaultBlockSize 是每次从源读取的块大小 (128 KiB)
const DefaultBlockSize = 128 * 1024

// Options 描述编码管道，直接从配置解码
type Options struct {
	BlockSize     int    `mapstructure:"block_size"`
	Compression   string `mapstructure:"compression"`
	Level         string `mapstructure:"level"`
	Hash          string `mapstructure:"hash"`
	MaxObjectSize int64  `mapstructure:"max_object_size"`
}

// DefaultOptions 与现有消费者兼容：sha1 + gzip
func DefaultOptions() Options {
	return Options{
		BlockSize:   DefaultBlockSize,
		Compression: TagGzip,
		Level:       LevelDefault,
		Hash:        HashSHA1,
	}
}

// Encoder 把字节流变成 DataObject：原始哈希、压缩、压缩后哈希一次完成
// Encoder 本身无状态，可以被重复使用
type Encoder struct {
	blockSize      int
	newHasher      HasherFactory
	newCompressor  CompressorFactory
	maxObjectBytes int64
}

// New 用显式的哈希与压缩能力构造 Encoder
func New(blockSize int, newHasher HasherFactory, newCompressor CompressorFactory) *Encoder {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if newHasher == nil {
		newHasher = SHA1
	}
	if newCompressor == nil {
		newCompressor = NewIdentity
	}
	return &Encoder{
		blockSize:     blockSize,
		newHasher:     newHasher,
		newCompressor: newCompressor,
	}
}

// NewEncoder 从配置构造 Encoder
func NewEncoder(opts Options) (*Encoder, error) {
	newHasher, err := NewHasherFactory(opts.Hash)
	if err != nil {
		return nil, err
	}
	newCompressor, err := NewCompressorFactory(opts.Compression, opts.Level)
	if err != nil {
		return nil, err
	}
	return New(opts.BlockSize, newHasher, newCompressor).WithMemoryLimit(opts.MaxObjectSize), nil
}

// WithMemoryLimit 设置单个对象输出的字节上限，<= 0 表示不限制
func (e *Encoder) WithMemoryLimit(limit int64) *Encoder {
	e.maxObjectBytes = limit
	return e
}

func (e *Encoder) BlockSize() int { return e.blockSize }

// Encode 读取 src 直到 EOF，生成 DataObject
func (e *Encoder) Encode(ctx context.Context, src io.Reader) (*core.DataObject, error) {
	// 1. 估算输出容量
	length, err := sizeHint(src)
	if err != nil {
		return nil, err
	}
	out := NewBuffer(EstimateCapacity(length, e.maxObjectBytes), e.maxObjectBytes)

	// 2. 初始化两个摘要累加器和压缩器
	rawHash := e.newHasher()
	sentHash := e.newHasher()
	comp, err := e.newCompressor()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailure, err)
	}
	defer comp.Close()

	fail := func(err error) (*core.DataObject, error) {
		out.Release()
		return nil, err
	}

	drain := func() error {
		for {
			chunk, err := comp.Drain()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrCompressionFailure, err)
			}
			if chunk == nil {
				return nil
			}
			sentHash.Update(chunk)
			if _, err := out.Write(chunk); err != nil {
				return err
			}
		}
	}

	// 3. 逐块读取
	block := make([]byte, e.blockSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		n, readErr := io.ReadFull(src, block)
		final := false
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			final = true
		default:
			return fail(fmt.Errorf("%w: %w", ErrSourceUnavailable, readErr))
		}

		if n > 0 {
			rawHash.Update(block[:n])
			total += int64(n)
		}
		if n > 0 || final {
			if err := comp.Feed(block[:n], final); err != nil {
				return fail(fmt.Errorf("%w: %w", ErrCompressionFailure, err))
			}
			if err := drain(); err != nil {
				return fail(err)
			}
		}
		if final {
			break
		}
	}

	// 4. 冲刷尾部
	if err := comp.Finish(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrCompressionFailure, err))
	}
	if err := drain(); err != nil {
		return fail(err)
	}

	// 5. 收缩到恰好的长度
	payload := out.Detach()
	return &core.DataObject{
		Payload:      payload,
		Size:         int64(len(payload)),
		SizeOriginal: total,
		Hash:         sentHash.Finalize(),
		HashOriginal: rawHash.Finalize(),
		Compression:  comp.Tag(),
	}, nil
}

// Encode 用默认算法 (sha1 + gzip) 编码 r
func Encode(ctx context.Context, r io.Reader, blockSize int) (*core.DataObject, error) {
	newCompressor, err := NewCompressorFactory(TagGzip, LevelDefault)
	if err != nil {
		return nil, err
	}
	return New(blockSize, SHA1, newCompressor).Encode(ctx, r)
}

// sizeHint 尽量得到源数据长度，未知时返回 0
func sizeHint(src io.Reader) (int64, error) {
	switch s := src.(type) {
	case interface{ Len() int }:
		return int64(s.Len()), nil
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := s.Stat()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		if !info.Mode().IsRegular() {
			return 0, nil
		}
		return info.Size(), nil
	}
	return 0, nil
}
