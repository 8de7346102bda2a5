package codec

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// NewDecompressor 反转 tag 对应的变换
// 消费端用它把 Payload 还原成源字节，再与 HashOriginal 比对
func NewDecompressor(tag string, r io.Reader) (io.ReadCloser, error) {
	switch tag {
	case TagNone:
		return io.NopCloser(r), nil
	case TagGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompressionFailure, err)
		}
		return zr, nil
	case TagZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompressionFailure, err)
		}
		return zr.IOReadCloser(), nil
	case TagLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: compression tag %q", ErrUnknownAlgorithm, tag)
	}
}

// SplitTag 从文件名后缀推断压缩标签
// "a.txt.gz" -> ("a.txt", "gz")；无法识别的后缀返回原名和空标签
func SplitTag(filename string) (base, tag string) {
	for _, t := range []string{TagGzip, TagZstd, TagLZ4} {
		if suffix := "." + t; strings.HasSuffix(filename, suffix) && len(filename) > len(suffix) {
			return strings.TrimSuffix(filename, suffix), t
		}
	}
	return filename, TagNone
}
