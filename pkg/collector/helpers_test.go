package collector

import (
	"bytes"
	"context"
	"testing"

	"hoover/pkg/codec"
	"hoover/pkg/core"
	"hoover/pkg/tube"

	"github.com/stretchr/testify/require"
)

var testID = core.Identity{NodeID: "nid00042", TaskID: "42-7"}

// encoded 模拟发送端：编码、构造 Header 和元数据
func encoded(t *testing.T, name, typ string, data []byte) (Delivery, core.Header) {
	t.Helper()
	obj, err := codec.Encode(context.Background(), bytes.NewReader(data), 0)
	require.NoError(t, err)
	h, err := core.BuildHeader(name, obj, typ, testID)
	require.NoError(t, err)
	return Delivery{
		Metadata: tube.StringMetadata(h, "", true),
		Body:     obj.Payload,
	}, h
}

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink(Config{OutputDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

// sliceSource 依次投递预先准备好的消息
type sliceSource struct {
	name       string
	deliveries []Delivery
	errs       []error
}

func (s *sliceSource) Name() string { return s.name }

func (s *sliceSource) Run(ctx context.Context, handle Handler) error {
	for _, d := range s.deliveries {
		s.errs = append(s.errs, handle(ctx, d))
	}
	return nil
}
