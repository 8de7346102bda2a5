package tube

import (
	"fmt"
	"strconv"

	"hoover/pkg/core"
	"hoover/pkg/types"
)

// 传输元数据的字段名，与现有消费者保持一致
const (
	FieldFilename    = "filename"
	FieldNodeID      = "node_id"
	FieldTaskID      = "task_id"
	FieldCompression = "compression"
	FieldSize        = "size"
	FieldType        = "type"

	DefaultHashField = "sha_hash"
)

// Metadata 生成随消息一起发送的元数据表，size 是 int64
func Metadata(h core.Header, hashField string, includeType bool) map[string]any {
	if hashField == "" {
		hashField = DefaultHashField
	}
	m := map[string]any{
		FieldFilename:    h.Filename,
		FieldNodeID:      h.NodeID,
		FieldTaskID:      h.TaskID,
		FieldCompression: h.Compression,
		hashField:        string(h.Hash),
		FieldSize:        h.Size,
	}
	if includeType && h.Type != "" {
		m[FieldType] = h.Type
	}
	return m
}

// StringMetadata 与 Metadata 相同，但所有值都是字符串
// 用于只接受字符串的载体 (S3 对象元数据、gRPC metadata)
func StringMetadata(h core.Header, hashField string, includeType bool) map[string]string {
	out := make(map[string]string, 7)
	for k, v := range Metadata(h, hashField, includeType) {
		switch v := v.(type) {
		case int64:
			out[k] = strconv.FormatInt(v, 10)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// ParseMetadata 是 StringMetadata 的逆过程，供消费端使用
// 缺失的字段保持零值；size 无法解析时报错
func ParseMetadata(m map[string]string, hashField string) (core.Header, error) {
	if hashField == "" {
		hashField = DefaultHashField
	}
	h := core.Header{
		Filename:    m[FieldFilename],
		NodeID:      m[FieldNodeID],
		TaskID:      m[FieldTaskID],
		Compression: m[FieldCompression],
		Type:        m[FieldType],
		Hash:        types.Hash(m[hashField]),
	}
	if s, ok := m[FieldSize]; ok && s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return core.Header{}, fmt.Errorf("invalid size %q: %w", s, err)
		}
		h.Size = n
	}
	return h, nil
}
