package codec

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"hoover/pkg/core"

	"github.com/stretchr/testify/require"
)

// randomBytes 生成不可压缩的随机数据
func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// decodeAll 反转压缩，返回源字节
func decodeAll(t *testing.T, obj *core.DataObject) []byte {
	t.Helper()
	r, err := NewDecompressor(obj.Compression, bytes.NewReader(obj.Payload))
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func mustEncoder(t *testing.T, compression string) *Encoder {
	t.Helper()
	opts := DefaultOptions()
	opts.Compression = compression
	enc, err := NewEncoder(opts)
	require.NoError(t, err)
	return enc
}

func encodeBytes(t *testing.T, enc *Encoder, data []byte) *core.DataObject {
	t.Helper()
	obj, err := enc.Encode(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	return obj
}

// opaqueReader 隐藏长度信息，模拟管道或 socket
type opaqueReader struct{ r io.Reader }

func (o opaqueReader) Read(p []byte) (int, error) { return o.r.Read(p) }

var errBoom = errors.New("boom")

// failingCompressor 在第 failAt 次 Feed 时报错
type failingCompressor struct {
	feeds  int
	failAt int
}

func (f *failingCompressor) Tag() string { return "fail" }

func (f *failingCompressor) Feed(block []byte, final bool) error {
	f.feeds++
	if f.feeds >= f.failAt {
		return errBoom
	}
	return nil
}

func (f *failingCompressor) Drain() ([]byte, error) { return nil, nil }
func (f *failingCompressor) Finish() error          { return nil }
func (f *failingCompressor) Close() error           { return nil }
