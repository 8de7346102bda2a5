// pkg/types/common.go
package types

import "encoding/hex"

// Hash 代表一段字节流的摘要 (Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid 检查是否为合法的 Hex 摘要
// 支持 SHA-1 (40) 与 SHA-256 / BLAKE3 (64)
func (h Hash) IsValid() bool {
	if len(h) != 40 && len(h) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short 返回用于日志展示的短哈希
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}
