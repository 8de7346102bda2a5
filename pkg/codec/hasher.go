package codec

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"hoover/pkg/types"

	"github.com/zeebo/blake3"
)

// 支持的摘要算法
const (
	HashSHA1   = "sha1"
	HashSHA256 = "sha256"
	HashBLAKE3 = "blake3"
)

// Hasher 是一个分块累加的摘要计算器
type Hasher interface {
	// Update 追加一段数据
	Update(p []byte)
	// Finalize 返回定长的 Hex 摘要
	Finalize() types.Hash
}

// HasherFactory 每次调用返回一个全新的累加器
type HasherFactory func() Hasher

// digestHasher 把标准 hash.Hash 适配为 Hasher
type digestHasher struct {
	h hash.Hash
}

func (d *digestHasher) Update(p []byte) { d.h.Write(p) }

func (d *digestHasher) Finalize() types.Hash {
	return types.Hash(hex.EncodeToString(d.h.Sum(nil)))
}

// SHA1 是默认算法：现有消费者以 sha1sum 校验
func SHA1() Hasher { return &digestHasher{h: sha1.New()} }

func SHA256() Hasher { return &digestHasher{h: sha256.New()} }

func BLAKE3() Hasher { return &digestHasher{h: blake3.New()} }

// NewHasherFactory 根据配置名选择摘要算法，空字符串表示默认 (sha1)
func NewHasherFactory(name string) (HasherFactory, error) {
	switch name {
	case "", HashSHA1:
		return SHA1, nil
	case HashSHA256:
		return SHA256, nil
	case HashBLAKE3:
		return BLAKE3, nil
	default:
		return nil, fmt.Errorf("%w: hash %q", ErrUnknownAlgorithm, name)
	}
}

// Digest 计算一段内存数据的摘要
func Digest(newHasher HasherFactory, p []byte) types.Hash {
	h := newHasher()
	h.Update(p)
	return h.Finalize()
}

// DigestReader 流式计算摘要，返回读取的字节数
func DigestReader(newHasher HasherFactory, r io.Reader) (types.Hash, int64, error) {
	h := newHasher()
	buf := make([]byte, DefaultBlockSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Update(buf[:n])
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", total, err
		}
	}
	return h.Finalize(), total, nil
}
