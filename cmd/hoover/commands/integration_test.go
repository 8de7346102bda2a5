package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIntegrationEnv 搭建一个使用 真实文件系统 + SQLite 文件 的集成环境
// 返回配置文件路径、待发送的源目录和 file tube 的输出目录
func setupIntegrationEnv(t *testing.T) (cfgPath, src, out string) {
	tmpDir := t.TempDir()
	src = filepath.Join(tmpDir, "job")
	out = filepath.Join(tmpDir, "out")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "logs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "run.darshan"), bytes.Repeat([]byte("darshan "), 4096), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "logs", "stdout.txt"), []byte("hello world\n"), 0644))

	cfgPath = filepath.Join(tmpDir, "config.yaml")
	cfg := fmt.Sprintf(`
tube:
  kind: file
  file:
    dir: %s
codec:
  compression: zst
ledger:
  enabled: true
  driver: sqlite
  path: %s
`, out, filepath.Join(tmpDir, "ledger.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0600))
	return cfgPath, src, out
}

// run 执行一次命令行，返回标准输出
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// cobra 不会重置上一次执行留下的参数值
	cfgFile, logLevel = "", "info"
	shipType, decodeOutput, decodeExpect, verifyDir = "", "", "", ""
	historyLimit = 20

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestIntegration_ShipVerifyHistory(t *testing.T) {
	cfgPath, src, out := setupIntegrationEnv(t)

	// 1. hoover ship
	stdout, err := run(t, "--config", cfgPath, "--log-level", "error", "ship", src)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "2 shipped")
	assert.FileExists(t, filepath.Join(out, "run.darshan.zst"))
	assert.FileExists(t, filepath.Join(out, "stdout.txt.zst"))

	manifests, err := filepath.Glob(filepath.Join(out, "manifest_*.json.zst"))
	require.NoError(t, err)
	require.Len(t, manifests, 1)

	// 2. hoover verify
	stdout, err = run(t, "--config", cfgPath, "verify", manifests[0])
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "All 2 files verified.")

	// 3. hoover decode
	decoded := filepath.Join(t.TempDir(), "stdout.txt")
	_, err = run(t, "--config", cfgPath, "decode", "-o", decoded, filepath.Join(out, "stdout.txt.zst"))
	require.NoError(t, err)
	data, err := os.ReadFile(decoded)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(data))

	// 4. hoover history
	stdout, err = run(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "finished")
	assert.Contains(t, stdout, "file://"+out)
}

func TestIntegration_VerifyDetectsCorruption(t *testing.T) {
	cfgPath, src, out := setupIntegrationEnv(t)

	_, err := run(t, "--config", cfgPath, "--log-level", "error", "ship", src)
	require.NoError(t, err)

	// 篡改一个已发送的文件
	require.NoError(t, os.WriteFile(filepath.Join(out, "stdout.txt.zst"), []byte("garbage"), 0644))

	manifests, err := filepath.Glob(filepath.Join(out, "manifest_*.json.zst"))
	require.NoError(t, err)
	require.Len(t, manifests, 1)

	stdout, err := run(t, "--config", cfgPath, "verify", manifests[0])
	assert.ErrorContains(t, err, "1 of 2 files failed verification")
	assert.Contains(t, stdout, "FAIL")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	stdout, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)

	stdout, err = run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "kind: file")
}

func TestIntegration_VerifyAbsoluteTypeDir(t *testing.T) {
	cfgPath, src, out := setupIntegrationEnv(t)

	_, err := run(t, "--config", cfgPath, "--log-level", "error", "ship", src)
	require.NoError(t, err)

	// 收集端把 darshan 路由到根目录之外
	outside := t.TempDir()
	require.NoError(t, os.Rename(filepath.Join(out, "run.darshan.zst"), filepath.Join(outside, "run.darshan.zst")))

	manifests, err := filepath.Glob(filepath.Join(out, "manifest_*.json.zst"))
	require.NoError(t, err)
	require.Len(t, manifests, 1)

	stdout, err := run(t, "--config", cfgPath, "verify", manifests[0])
	assert.ErrorContains(t, err, "1 of 2 files failed verification", stdout)

	cfg, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	cfg = append(cfg, fmt.Sprintf("collect:\n  type_dirs:\n    darshan: %s\n", outside)...)
	require.NoError(t, os.WriteFile(cfgPath, cfg, 0600))

	stdout, err = run(t, "--config", cfgPath, "verify", manifests[0])
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "All 2 files verified.")
}
