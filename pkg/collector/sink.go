package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"hoover/pkg/codec"
	"hoover/pkg/core"
	"hoover/pkg/tube"
	"hoover/pkg/types"
)

var (
	// ErrMissingChecksum 消息没有摘要字段，无法校验，直接丢弃
	ErrMissingChecksum = errors.New("delivery has no checksum")
	// ErrChecksumMismatch 落盘内容与摘要字段不一致 (文件仍然保留)
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// DefaultTypeKey 匹配所有未列出的类型
const DefaultTypeKey = "_default"

// DefaultTypeDirs 与现有消费者的目录布局一致
func DefaultTypeDirs() map[string]string {
	return map[string]string{
		"darshan":         "darshanlogs",
		core.TypeManifest: "manifests",
		DefaultTypeKey:    "misc",
	}
}

// Config 描述收集端的落盘行为
type Config struct {
	OutputDir string            `mapstructure:"output_dir"`
	Listen    string            `mapstructure:"listen"`
	TypeDirs  map[string]string `mapstructure:"type_dirs"`
	HashField string            `mapstructure:"hash_field"`
	Hash      string            `mapstructure:"hash"`
}

// Sink 把消息写成文件
type Sink struct {
	root      string
	typeDirs  map[string]string
	hashField string
	newHasher codec.HasherFactory

	// 多个来源并发写入时，同名文件的 Rename 需要串行
	mu sync.Mutex
}

func NewSink(cfg Config) (*Sink, error) {
	root := cfg.OutputDir
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	newHasher, err := codec.NewHasherFactory(cfg.Hash)
	if err != nil {
		return nil, err
	}
	dirs := cfg.TypeDirs
	if len(dirs) == 0 {
		dirs = DefaultTypeDirs()
	}
	hashField := cfg.HashField
	if hashField == "" {
		hashField = tube.DefaultHashField
	}
	return &Sink{root: root, typeDirs: dirs, hashField: hashField, newHasher: newHasher}, nil
}

func (s *Sink) Root() string { return s.root }

// HashField 是元数据里校验和的键名
func (s *Sink) HashField() string { return s.hashField }

// OutsideDirs 是根目录之外的类型目录，校验清单时需要一并查找
func (s *Sink) OutsideDirs() []string { return OutsideDirs(s.typeDirs) }

// Store 写入一条消息，返回落盘路径
//
// 文件名取 filename 字段的 basename；没有 filename 的消息视为清单，
// 命名为 manifest_{hash}.json，重发的清单不会产生重复文件。
// 摘要不一致时文件仍然保留，同时返回 ErrChecksumMismatch。
func (s *Sink) Store(ctx context.Context, d Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	want := types.Hash(d.Metadata[s.hashField])
	if want == "" {
		slog.Warn("delivery discarded: no checksum", slog.Any("metadata", d.Metadata))
		return "", ErrMissingChecksum
	}

	// 1. 文件名
	var name string
	if fn, ok := d.Metadata[tube.FieldFilename]; ok && fn != "" {
		name = filepath.Base(fn)
	} else {
		name = fmt.Sprintf("manifest_%s.json", want)
	}
	if name == "." || name == string(filepath.Separator) || name == ".." {
		return "", fmt.Errorf("delivery has unusable filename %q", d.Metadata[tube.FieldFilename])
	}

	// 2. 目录
	dir := s.dirFor(d.Metadata)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	target := filepath.Join(dir, name)

	// 3. 原子写入
	if err := s.writeAtomic(dir, target, d.Body); err != nil {
		return "", err
	}

	// 4. 校验
	got := codec.Digest(s.newHasher, d.Body)
	if got != want {
		slog.Warn("checksum mismatch",
			slog.String("path", target),
			slog.String("expected", string(want)),
			slog.String("actual", string(got)),
		)
		return target, fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, target, want.Short(), got.Short())
	}

	slog.Info("stored",
		slog.String("path", target),
		slog.Int("size", len(d.Body)),
		slog.String("hash", got.Short()),
	)
	return target, nil
}

// dirFor 按 type 字段路由：没有 type 写到根目录，未知 type 写到 _default
// 配置为绝对路径的目录不拼接根目录
func (s *Sink) dirFor(meta map[string]string) string {
	typ, ok := meta[tube.FieldType]
	if !ok || typ == "" {
		return s.root
	}
	sub, ok := s.typeDirs[typ]
	if !ok {
		sub = s.typeDirs[DefaultTypeKey]
	}
	if filepath.IsAbs(sub) {
		return sub
	}
	return filepath.Join(s.root, sub)
}

func (s *Sink) writeAtomic(dir, target string, body []byte) error {
	tmp, err := os.CreateTemp(dir, ".incoming-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return os.Rename(tmp.Name(), target)
}
