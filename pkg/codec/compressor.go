package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// 压缩标签会出现在文件名后缀和传输元数据里，属于协议常量
const (
	TagNone = ""
	TagGzip = "gz"
	TagZstd = "zst"
	TagLZ4  = "lz4"
)

// 压缩等级 (与具体算法无关的抽象)
const (
	LevelFastest = "fastest"
	LevelDefault = "default"
	LevelBetter  = "better"
	LevelBest    = "best"
)

// drainChunkSize 是单次 Drain 返回的最大字节数
const drainChunkSize = 64 * 1024

var errFeedAfterFinish = errors.New("feed after finish")

// Compressor 是一个流式的块压缩器
//
// 一个输入块可能产生 0 个、1 个或多个输出片段 (压缩器内部会缓冲)，
// 所以每次 Feed 之后调用方都要循环 Drain，直到返回 nil。
type Compressor interface {
	// Tag 返回压缩标签，未压缩时为空
	Tag() string
	// Feed 提交一个输入块；final 为 true 表示输入已经结束
	Feed(block []byte, final bool) error
	// Drain 返回下一段待取的输出；没有更多输出时返回 nil
	// 返回的切片只在下一次 Feed/Finish 之前有效
	Drain() ([]byte, error)
	// Finish 冲刷压缩器内部缓冲的数据 (尾部、结束标记)，可重复调用
	Finish() error
	// Close 释放压缩器持有的资源
	Close() error
}

// CompressorFactory 每次调用返回一个全新的压缩器
type CompressorFactory func() (Compressor, error)

// pendingOutput 收集压缩器写出的数据，等待 Drain
type pendingOutput struct {
	buf []byte
	off int
}

func (p *pendingOutput) Write(b []byte) (int, error) {
	if p.off == len(p.buf) {
		p.buf = p.buf[:0]
		p.off = 0
	}
	p.buf = append(p.buf, b...)
	return len(b), nil
}

func (p *pendingOutput) next(max int) []byte {
	if p.off >= len(p.buf) {
		return nil
	}
	n := min(max, len(p.buf)-p.off)
	out := p.buf[p.off : p.off+n]
	p.off += n
	return out
}

func (p *pendingOutput) reset() {
	p.buf = nil
	p.off = 0
}

// streamCompressor 把任意 io.WriteCloser 形式的编码器适配为 Compressor
type streamCompressor struct {
	tag      string
	w        io.WriteCloser
	out      *pendingOutput
	finished bool
}

func newStreamCompressor(tag string, wrap func(io.Writer) (io.WriteCloser, error)) (Compressor, error) {
	out := &pendingOutput{}
	w, err := wrap(out)
	if err != nil {
		return nil, err
	}
	return &streamCompressor{tag: tag, w: w, out: out}, nil
}

func (c *streamCompressor) Tag() string { return c.tag }

func (c *streamCompressor) Feed(block []byte, final bool) error {
	if c.finished {
		if len(block) == 0 {
			return nil
		}
		return errFeedAfterFinish
	}
	if len(block) > 0 {
		if _, err := c.w.Write(block); err != nil {
			return err
		}
	}
	if final {
		return c.Finish()
	}
	return nil
}

func (c *streamCompressor) Drain() ([]byte, error) {
	return c.out.next(drainChunkSize), nil
}

func (c *streamCompressor) Finish() error {
	if c.finished {
		return nil
	}
	c.finished = true
	return c.w.Close()
}

func (c *streamCompressor) Close() error {
	var err error
	if !c.finished {
		c.finished = true
		err = c.w.Close()
	}
	c.out.reset()
	return err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewIdentity 返回不做任何变换的“压缩器”，标签为空
func NewIdentity() (Compressor, error) {
	return newStreamCompressor(TagNone, func(w io.Writer) (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	})
}

// NewCompressorFactory 根据配置名和等级选择压缩算法
func NewCompressorFactory(name, level string) (CompressorFactory, error) {
	switch strings.ToLower(name) {
	case "none", "identity", TagNone:
		return NewIdentity, nil

	case TagGzip, "gzip":
		lvl, err := gzipLevel(level)
		if err != nil {
			return nil, err
		}
		return func() (Compressor, error) {
			return newStreamCompressor(TagGzip, func(w io.Writer) (io.WriteCloser, error) {
				return gzip.NewWriterLevel(w, lvl)
			})
		}, nil

	case TagZstd, "zstd":
		lvl, err := zstdLevel(level)
		if err != nil {
			return nil, err
		}
		return func() (Compressor, error) {
			return newStreamCompressor(TagZstd, func(w io.Writer) (io.WriteCloser, error) {
				// 单线程编码：整个管道是同步的
				return zstd.NewWriter(w,
					zstd.WithEncoderLevel(lvl),
					zstd.WithEncoderConcurrency(1),
				)
			})
		}, nil

	case TagLZ4:
		lvl, err := lz4Level(level)
		if err != nil {
			return nil, err
		}
		return func() (Compressor, error) {
			return newStreamCompressor(TagLZ4, func(w io.Writer) (io.WriteCloser, error) {
				zw := lz4.NewWriter(w)
				if err := zw.Apply(lz4.CompressionLevelOption(lvl), lz4.ConcurrencyOption(1)); err != nil {
					return nil, err
				}
				return zw, nil
			})
		}, nil

	default:
		return nil, fmt.Errorf("%w: compression %q", ErrUnknownAlgorithm, name)
	}
}

func gzipLevel(level string) (int, error) {
	switch level {
	case LevelFastest:
		return gzip.BestSpeed, nil
	case "", LevelDefault:
		return gzip.DefaultCompression, nil
	case LevelBetter:
		return 7, nil
	case LevelBest:
		return gzip.BestCompression, nil
	}
	return 0, fmt.Errorf("%w: gzip level %q", ErrUnknownAlgorithm, level)
}

func zstdLevel(level string) (zstd.EncoderLevel, error) {
	switch level {
	case LevelFastest:
		return zstd.SpeedFastest, nil
	case "", LevelDefault:
		return zstd.SpeedDefault, nil
	case LevelBetter:
		return zstd.SpeedBetterCompression, nil
	case LevelBest:
		return zstd.SpeedBestCompression, nil
	}
	return 0, fmt.Errorf("%w: zstd level %q", ErrUnknownAlgorithm, level)
}

func lz4Level(level string) (lz4.CompressionLevel, error) {
	switch level {
	case LevelFastest, "", LevelDefault:
		return lz4.Fast, nil
	case LevelBetter:
		return lz4.Level5, nil
	case LevelBest:
		return lz4.Level9, nil
	}
	return 0, fmt.Errorf("%w: lz4 level %q", ErrUnknownAlgorithm, level)
}
