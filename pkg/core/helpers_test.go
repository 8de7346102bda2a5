package core

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"hoover/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockHash 生成一个合法的 SHA-1 Hex 字符串 (40 字符)
func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// mockObject 构造一个只有元数据的 DataObject
func mockObject(compression string, size int64) *DataObject {
	return &DataObject{
		Payload:     make([]byte, size),
		Size:        size,
		Hash:        mockHash("payload"),
		Compression: compression,
	}
}

// envMap 把 map 包装成 EnvLookup
func envMap(vars map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

var testIdentity = Identity{NodeID: "nid00042", TaskID: "42-7"}

func mustBuildHeader(t *testing.T, filename string, obj *DataObject, typeTag string) Header {
	t.Helper()
	h, err := BuildHeader(filename, obj, typeTag, testIdentity)
	require.NoError(t, err, "BuildHeader(%q)", filename)
	return h
}
