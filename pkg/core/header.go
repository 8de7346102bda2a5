package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"hoover/pkg/types"
)

var ErrInvalidHeader = errors.New("invalid header")

// 字段长度上限，对应下游消费者 (以及旧的 C 实现) 的固定宽度字段
const (
	MaxFilenameLen    = 4096
	MaxNodeIDLen      = 255
	MaxTaskIDLen      = 128
	MaxCompressionLen = 16
	MaxTypeLen        = 64
)

// TypeManifest 是清单对象的类型标签
const TypeManifest = "manifest"

// Header 描述一个 DataObject，用于传输与清单
// 它不持有任何资源，可以在 DataObject 被释放之后继续保留
type Header struct {
	Filename    string
	NodeID      string
	TaskID      string
	Compression string
	Type        string
	Hash        types.Hash
	Size        int64
}

// BuildHeader 为 obj 生成 Header
// 如果 obj 经过压缩，文件名会追加 ".{compression}" 后缀，
// 这样消费者只看文件名就能知道如何解码
func BuildHeader(filename string, obj *DataObject, typeTag string, id Identity) (Header, error) {
	if obj == nil {
		return Header{}, fmt.Errorf("%w: nil data object", ErrInvalidHeader)
	}

	h := Header{
		Filename:    filename,
		NodeID:      id.NodeID,
		TaskID:      id.TaskID,
		Compression: obj.Compression,
		Type:        typeTag,
		Hash:        obj.Hash,
		Size:        obj.Size,
	}
	if h.Compression != "" {
		h.Filename = h.Filename + "." + h.Compression
	}

	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate 在构造时校验字段，而不是依赖截断
func (h Header) Validate() error {
	if h.Filename == "" {
		return fmt.Errorf("%w: empty filename", ErrInvalidHeader)
	}
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"filename", h.Filename, MaxFilenameLen},
		{"node_id", h.NodeID, MaxNodeIDLen},
		{"task_id", h.TaskID, MaxTaskIDLen},
		{"compression", h.Compression, MaxCompressionLen},
		{"type", h.Type, MaxTypeLen},
		{"hash", string(h.Hash), 128},
	}
	for _, f := range fields {
		if len(f.value) > f.max {
			return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidHeader, f.name, f.max)
		}
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidHeader, f.name)
		}
		if i := strings.IndexFunc(f.value, unsafeRune); i >= 0 {
			return fmt.Errorf("%w: %s contains unsupported character at offset %d", ErrInvalidHeader, f.name, i)
		}
	}
	if h.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidHeader)
	}
	return nil
}

// unsafeRune 标记不能原样写进 JSON 字符串的字符
func unsafeRune(r rune) bool {
	return r == '"' || r == '\\' || unicode.IsControl(r)
}

// Serialize 以固定字段顺序渲染 Header:
//
//	{"filename":"…","node_id":"…","task_id":"…","compression":"…","sha1sum":"…","size":N,"type":"…"}
//
// 注意：字符串字段原样输出，不做转义。这不是通用 JSON 编码器，
// 能产出合法 JSON 只是因为 Validate 拒绝了引号、反斜杠和控制字符。
func (h Header) Serialize() string {
	var b strings.Builder
	b.Grow(128 + len(h.Filename))
	b.WriteString(`{"filename":"`)
	b.WriteString(h.Filename)
	b.WriteString(`","node_id":"`)
	b.WriteString(h.NodeID)
	b.WriteString(`","task_id":"`)
	b.WriteString(h.TaskID)
	b.WriteString(`","compression":"`)
	b.WriteString(h.Compression)
	b.WriteString(`","sha1sum":"`)
	b.WriteString(string(h.Hash))
	b.WriteString(`","size":`)
	b.WriteString(strconv.FormatInt(h.Size, 10))
	b.WriteString(`,"type":"`)
	b.WriteString(h.Type)
	b.WriteString(`"}`)
	return b.String()
}
