// Package manifest 把一次运行发送的所有 Header 汇总为一个清单对象
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hoover/pkg/codec"
	"hoover/pkg/core"
	"hoover/pkg/types"
)

// Build 拼接 Header 的序列化结果: "[" + h1 + "," + h2 + ... + "]"
// 没有 Header 时返回 "[]"
func Build(headers []core.Header) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, h := range headers {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(h.Serialize())
	}
	b.WriteByte(']')
	return b.String()
}

// ToDataObject 通过与普通文件相同的编码管道编码清单
func ToDataObject(ctx context.Context, enc *codec.Encoder, manifest string) (*core.DataObject, error) {
	// 不暴露长度：清单和普通流走完全一样的路径
	return enc.Encode(ctx, anonymousReader{strings.NewReader(manifest)})
}

type anonymousReader struct{ r *strings.Reader }

func (a anonymousReader) Read(p []byte) (int, error) { return a.r.Read(p) }

// Name 返回清单对象的文件名 manifest_{hash}_{host}.json
// hash 是清单编码后 (传输字节) 的摘要；压缩后缀由 BuildHeader 追加
func Name(obj *core.DataObject, host string) string {
	if host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("manifest_%s_%s.json", obj.Hash, host)
}

// Entry 是清单中一项的解析结果，供消费端校验使用
type Entry struct {
	Filename    string     `json:"filename"`
	NodeID      string     `json:"node_id"`
	TaskID      string     `json:"task_id"`
	Compression string     `json:"compression"`
	Hash        types.Hash `json:"sha1sum"`
	Size        int64      `json:"size"`
	Type        string     `json:"type"`
}

// Parse 解析 Build 产出的清单
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return entries, nil
}

// Header 把解析结果还原为 core.Header
func (e Entry) Header() core.Header {
	return core.Header{
		Filename:    e.Filename,
		NodeID:      e.NodeID,
		TaskID:      e.TaskID,
		Compression: e.Compression,
		Type:        e.Type,
		Hash:        e.Hash,
		Size:        e.Size,
	}
}
