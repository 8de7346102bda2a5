// Package exporter 把已发送的对象还原为原始内容，并打印运行历史
package exporter

import (
	"context"
	"fmt"
	"io"
	"os"

	"hoover/pkg/codec"
	"hoover/pkg/types"
)

// Decode 根据文件名后缀解压 path，把原始内容写入 w，
// 返回原始内容的 sha1 摘要与长度 (可与 HashOriginal 比对)
func Decode(ctx context.Context, path string, w io.Writer) (types.Hash, int64, error) {
	return DecodeWith(ctx, path, w, codec.SHA1)
}

// DecodeWith 同 Decode，但使用指定摘要算法
func DecodeWith(ctx context.Context, path string, w io.Writer, newHasher codec.HasherFactory) (types.Hash, int64, error) {
	// 1. 打开文件并推断压缩格式
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", codec.ErrSourceUnavailable, err)
	}
	defer f.Close()

	_, tag := codec.SplitTag(path)
	dec, err := codec.NewDecompressor(tag, f)
	if err != nil {
		return "", 0, err
	}
	defer dec.Close()

	// 2. 一边写出一边计算摘要
	src := io.TeeReader(&ctxReader{ctx: ctx, r: dec}, w)
	hash, n, err := codec.DigestReader(newHasher, src)
	if err != nil {
		return "", n, fmt.Errorf("decode %s: %w", path, err)
	}
	return hash, n, nil
}

// ctxReader 在每次读之前检查 ctx
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
