package tube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hoover/pkg/core"
)

// FileTube 把每个对象写成目录下的一个文件
type FileTube struct {
	dir       string // 绝对路径，打开时解析一次
	blockSize int
	closed    bool
}

// OpenFile 解析并创建目标目录
func OpenFile(cfg FileConfig) (*FileTube, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrDestinationUnwritable, dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}

	blockSize := cfg.WriteBlockSize
	if blockSize <= 0 {
		blockSize = DefaultWriteBlockSize
	}
	return &FileTube{dir: abs, blockSize: blockSize}, nil
}

func (t *FileTube) Destination() string { return "file://" + t.dir }

// Dir 返回解析后的目标目录
func (t *FileTube) Dir() string { return t.dir }

// Send 写入 {dir}/{basename(filename)}，已存在的文件会被覆盖
func (t *FileTube) Send(ctx context.Context, obj *core.DataObject, h core.Header) error {
	if t == nil || t.closed {
		return ErrTubeClosed
	}
	name := filepath.Base(h.Filename)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("%w: no file name in %q", ErrDestinationUnwritable, h.Filename)
	}
	target := filepath.Join(t.dir, name)

	// 原子写入：先写临时文件，再 Rename
	// 读者要么看不到文件，要么看到完整的文件
	tmp, err := os.CreateTemp(t.dir, ".hoover-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}
	defer os.Remove(tmp.Name())

	data := obj.Bytes()
	for off := 0; off < len(data); off += t.blockSize {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		end := min(off+t.blockSize, len(data))
		if _, err := tmp.Write(data[off:end]); err != nil {
			tmp.Close()
			return fmt.Errorf("%w: write %s: %w", ErrDestinationUnwritable, target, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}
	return nil
}

func (t *FileTube) Close() error {
	if t == nil {
		return nil
	}
	t.closed = true
	return nil
}
