// Package shipper 驱动一次完整的发送：展开输入、逐个编码发送、最后发送清单
package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hoover/pkg/codec"
	"hoover/pkg/core"
	"hoover/pkg/ledger"
	"hoover/pkg/manifest"
	"hoover/pkg/tube"

	"github.com/google/uuid"
)

// Recorder 记录运行历史；ledger.Repository 实现了它
type Recorder interface {
	StartRun(ctx context.Context, run *ledger.Run) error
	RecordShipment(ctx context.Context, runID, source string, h core.Header, obj *core.DataObject) error
	FinishRun(ctx context.Context, runID string, out ledger.Outcome) error
}

// Options 来自配置的 ship 段
type Options struct {
	Types       []TypeRule `mapstructure:"types"`
	DefaultType string     `mapstructure:"default_type"`
	IgnoreFile  string     `mapstructure:"ignore_file"`
}

// Result 汇总一次运行
type Result struct {
	RunID    string
	Headers  []core.Header
	Skipped  []string
	Bytes    int64
	Manifest core.Header
	Elapsed  time.Duration
}

type Shipper struct {
	enc      *codec.Encoder
	tube     tube.Tube
	id       core.Identity
	classify *Classifier
	opts     Options
	recorder Recorder

	// Progress 在每个对象发送成功后被调用 (可为 nil)
	Progress func(h core.Header)
}

func New(enc *codec.Encoder, t tube.Tube, id core.Identity, opts Options, recorder Recorder) (*Shipper, error) {
	if enc == nil || t == nil {
		return nil, errors.New("shipper needs an encoder and a tube")
	}
	cls, err := NewClassifier(opts.Types, opts.DefaultType)
	if err != nil {
		return nil, err
	}
	return &Shipper{enc: enc, tube: t, id: id, classify: cls, opts: opts, recorder: recorder}, nil
}

// Ship 发送 paths (文件或目录)，最后发送清单
//
// 打不开或读不了的文件跳过并记录警告；Send 失败立即终止本次运行，
// 因为发布失败之后 tube 已经不可用。
func (s *Shipper) Ship(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}

	// 1. 展开输入
	files, skipped, err := Expand(paths, s.opts.IgnoreFile)
	if err != nil {
		return nil, err
	}
	res.Skipped = append(res.Skipped, skipped...)

	s.startRun(ctx, res.RunID)

	// 2. 逐个文件
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, res, err)
		}
		h, ok, err := s.shipFile(ctx, res.RunID, path)
		if err != nil {
			return s.fail(ctx, res, err)
		}
		if !ok {
			res.Skipped = append(res.Skipped, path)
			continue
		}
		res.Headers = append(res.Headers, h)
		res.Bytes += h.Size
	}

	// 3. 清单
	mh, err := s.shipManifest(ctx, res)
	if err != nil {
		return s.fail(ctx, res, err)
	}
	res.Manifest = mh
	res.Elapsed = time.Since(start)

	s.finishRun(ctx, res, nil)
	slog.Info("run finished",
		slog.String("run_id", res.RunID),
		slog.Int("files", len(res.Headers)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int64("bytes", res.Bytes),
		slog.String("manifest", mh.Filename),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// shipFile 返回 ok=false 表示文件被跳过
func (s *Shipper) shipFile(ctx context.Context, runID, path string) (core.Header, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("could not open file, skipping", slog.String("path", path), slog.Any("error", err))
		return core.Header{}, false, nil
	}
	obj, err := s.enc.Encode(ctx, f)
	f.Close()
	if err != nil {
		if ctx.Err() != nil {
			return core.Header{}, false, err
		}
		slog.Warn("could not encode file, skipping", slog.String("path", path), slog.Any("error", err))
		return core.Header{}, false, nil
	}
	defer obj.Release()

	h, err := core.BuildHeader(path, obj, s.classify.Type(path), s.id)
	if err != nil {
		slog.Warn("invalid header, skipping", slog.String("path", path), slog.Any("error", err))
		return core.Header{}, false, nil
	}

	if err := s.tube.Send(ctx, obj, h); err != nil {
		if errors.Is(err, tube.ErrPayloadTooLarge) {
			slog.Warn("object too large for tube, skipping", slog.String("path", path), slog.Int64("size", obj.Size))
			return core.Header{}, false, nil
		}
		return core.Header{}, false, fmt.Errorf("send %s: %w", path, err)
	}

	s.record(ctx, runID, path, h, obj)
	if s.Progress != nil {
		s.Progress(h)
	}
	return h, true, nil
}

func (s *Shipper) shipManifest(ctx context.Context, res *Result) (core.Header, error) {
	obj, err := manifest.ToDataObject(ctx, s.enc, manifest.Build(res.Headers))
	if err != nil {
		return core.Header{}, fmt.Errorf("encode manifest: %w", err)
	}
	defer obj.Release()

	h, err := core.BuildHeader(manifest.Name(obj, s.id.NodeID), obj, core.TypeManifest, s.id)
	if err != nil {
		return core.Header{}, fmt.Errorf("manifest header: %w", err)
	}
	if err := s.tube.Send(ctx, obj, h); err != nil {
		return core.Header{}, fmt.Errorf("send manifest: %w", err)
	}
	s.record(ctx, res.RunID, "", h, obj)
	if s.Progress != nil {
		s.Progress(h)
	}
	return h, nil
}

func (s *Shipper) fail(ctx context.Context, res *Result, err error) (*Result, error) {
	s.finishRun(context.WithoutCancel(ctx), res, err)
	return res, err
}

// 历史记录失败不影响发送，只记录警告并停用本次运行的记录

func (s *Shipper) startRun(ctx context.Context, runID string) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.StartRun(ctx, &ledger.Run{
		ID:          runID,
		NodeID:      s.id.NodeID,
		TaskID:      s.id.TaskID,
		Destination: s.tube.Destination(),
	})
	if err != nil {
		slog.Warn("ledger unavailable, run will not be recorded", slog.Any("error", err))
		s.recorder = nil
	}
}

func (s *Shipper) record(ctx context.Context, runID, source string, h core.Header, obj *core.DataObject) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordShipment(ctx, runID, source, h, obj); err != nil {
		slog.Warn("ledger write failed", slog.String("filename", h.Filename), slog.Any("error", err))
	}
}

func (s *Shipper) finishRun(ctx context.Context, res *Result, runErr error) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.FinishRun(ctx, res.RunID, ledger.Outcome{
		Files:        len(res.Headers),
		Bytes:        res.Bytes,
		ManifestName: res.Manifest.Filename,
		ManifestHash: res.Manifest.Hash,
		Headers:      res.Headers,
		Err:          runErr,
	})
	if err != nil {
		slog.Warn("ledger write failed", slog.String("run_id", res.RunID), slog.Any("error", err))
	}
}
