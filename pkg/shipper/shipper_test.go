package shipper

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"hoover/pkg/codec"
	"hoover/pkg/collector"
	"hoover/pkg/core"
	"hoover/pkg/ledger"
	"hoover/pkg/tube"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testID = core.Identity{NodeID: "nid00042", TaskID: "42-0"}

// fakeRecorder 在内存中记录 ledger 调用
type fakeRecorder struct {
	mu        sync.Mutex
	started   []*ledger.Run
	shipments []string
	outcome   *ledger.Outcome
	startErr  error
}

func (r *fakeRecorder) StartRun(ctx context.Context, run *ledger.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started = append(r.started, run)
	return nil
}

func (r *fakeRecorder) RecordShipment(ctx context.Context, runID, source string, h core.Header, obj *core.DataObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments = append(r.shipments, h.Filename)
	return nil
}

func (r *fakeRecorder) FinishRun(ctx context.Context, runID string, out ledger.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = &out
	return nil
}

// flakyTube 在第 failAt 次 Send 时返回 err
type flakyTube struct {
	sent   []core.Header
	failAt int
	err    error
}

func (f *flakyTube) Send(ctx context.Context, obj *core.DataObject, h core.Header) error {
	if len(f.sent)+1 == f.failAt {
		return f.err
	}
	f.sent = append(f.sent, h)
	return nil
}

func (f *flakyTube) Close() error        { return nil }
func (f *flakyTube) Destination() string { return "flaky://" }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newEncoder(t *testing.T) *codec.Encoder {
	t.Helper()
	enc, err := codec.NewEncoder(codec.DefaultOptions())
	require.NoError(t, err)
	return enc
}

func TestShip_DirectoryToFileTube(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.darshan"), "darshan log")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "plain text")
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref: main")
	writeFile(t, filepath.Join(src, "skip.tmp"), "tmp")
	writeFile(t, filepath.Join(src, ".hooverignore"), "*.tmp\n")

	out := t.TempDir()
	ft, err := tube.OpenFile(tube.FileConfig{Dir: out})
	require.NoError(t, err)

	rec := &fakeRecorder{}
	s, err := New(newEncoder(t), ft, testID, Options{Types: DefaultTypes()}, rec)
	require.NoError(t, err)

	res, err := s.Ship(context.Background(), []string{src})
	require.NoError(t, err)

	require.Len(t, res.Headers, 2)
	assert.Equal(t, "darshan", res.Headers[0].Type)
	assert.Equal(t, "", res.Headers[1].Type)
	assert.Equal(t, core.TypeManifest, res.Manifest.Type)
	assert.NotEmpty(t, res.RunID)

	// 输出目录里应有两个数据文件和一个清单
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.FileExists(t, filepath.Join(out, "a.darshan.gz"))
	assert.FileExists(t, filepath.Join(out, res.Manifest.Filename))

	// 清单可以被校验
	data, err := readManifest(filepath.Join(out, res.Manifest.Filename))
	require.NoError(t, err)
	report, err := collector.VerifyManifest(out, data, codec.SHA1)
	require.NoError(t, err)
	assert.Zero(t, report.Failed())
	assert.Len(t, report.Files, 2)

	// ledger
	require.Len(t, rec.started, 1)
	assert.Equal(t, res.RunID, rec.started[0].ID)
	assert.Equal(t, "nid00042", rec.started[0].NodeID)
	assert.Len(t, rec.shipments, 3)
	require.NotNil(t, rec.outcome)
	assert.NoError(t, rec.outcome.Err)
	assert.Equal(t, 2, rec.outcome.Files)
	assert.Equal(t, res.Manifest.Hash, rec.outcome.ManifestHash)
}

func TestShip_MissingInputsAreSkipped(t *testing.T) {
	src := t.TempDir()
	good := filepath.Join(src, "good.log")
	writeFile(t, good, "ok")

	ft := &flakyTube{}
	s, err := New(newEncoder(t), ft, testID, Options{}, nil)
	require.NoError(t, err)

	res, err := s.Ship(context.Background(), []string{good, filepath.Join(src, "missing.log")})
	require.NoError(t, err)
	assert.Len(t, res.Headers, 1)
	assert.Equal(t, []string{filepath.Join(src, "missing.log")}, res.Skipped)
	// 一个数据对象加一个清单
	assert.Len(t, ft.sent, 2)
	assert.Equal(t, good+".gz", ft.sent[0].Filename)
}

func TestShip_EmptyRunStillSendsManifest(t *testing.T) {
	ft := &flakyTube{}
	s, err := New(newEncoder(t), ft, testID, Options{}, nil)
	require.NoError(t, err)

	res, err := s.Ship(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Headers)
	require.Len(t, ft.sent, 1)
	assert.Equal(t, core.TypeManifest, ft.sent[0].Type)
}

func TestShip_SendFailureAborts(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")
	writeFile(t, filepath.Join(src, "b"), "b")

	boom := errors.New("broker went away")
	ft := &flakyTube{failAt: 2, err: boom}
	rec := &fakeRecorder{}
	s, err := New(newEncoder(t), ft, testID, Options{}, rec)
	require.NoError(t, err)

	res, err := s.Ship(context.Background(), []string{src})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Len(t, res.Headers, 1)
	require.NotNil(t, rec.outcome)
	assert.ErrorIs(t, rec.outcome.Err, boom)
}

func TestShip_PayloadTooLargeIsSkipped(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")
	writeFile(t, filepath.Join(src, "b"), "b")

	ft := &flakyTube{failAt: 1, err: tube.ErrPayloadTooLarge}
	s, err := New(newEncoder(t), ft, testID, Options{}, nil)
	require.NoError(t, err)

	res, err := s.Ship(context.Background(), []string{src})
	require.NoError(t, err)
	assert.Len(t, res.Headers, 1)
	assert.Len(t, res.Skipped, 1)
}

func TestShip_LedgerFailureDoesNotStopRun(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")

	rec := &fakeRecorder{startErr: errors.New("database is locked")}
	ft := &flakyTube{}
	s, err := New(newEncoder(t), ft, testID, Options{}, rec)
	require.NoError(t, err)

	_, err = s.Ship(context.Background(), []string{src})
	require.NoError(t, err)
	assert.Len(t, ft.sent, 2)
	assert.Empty(t, rec.shipments)
}

func TestShip_CancelledContext(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(newEncoder(t), &flakyTube{}, testID, Options{}, nil)
	require.NoError(t, err)
	_, err = s.Ship(ctx, []string{src})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &flakyTube{}, testID, Options{}, nil)
	assert.Error(t, err)

	_, err = New(newEncoder(t), &flakyTube{}, testID, Options{Types: []TypeRule{{Pattern: "[", Type: "x"}}}, nil)
	assert.Error(t, err)
}

func readManifest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	_, tag := codec.SplitTag(path)
	r, err := codec.NewDecompressor(tag, f)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
