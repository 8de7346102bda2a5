package collector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"hoover/pkg/codec"
	"hoover/pkg/manifest"
)

// FileStatus 是清单中一项的校验结果
type FileStatus struct {
	Filename string
	Path     string
	OK       bool
	Problem  string
}

// Report 汇总一次清单校验
type Report struct {
	Files []FileStatus
}

func (r Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if !f.OK {
			n++
		}
	}
	return n
}

// VerifyManifest 检查清单列出的每个文件：存在、摘要一致、能按压缩标签解码
// 文件在 dir 下按 basename 查找 (包括按类型划分的子目录)，找不到时再查 extraDirs；
// 配置为绝对路径的类型目录不在 dir 之下，需要通过 extraDirs 传入 (见 OutsideDirs)
func VerifyManifest(dir string, manifestBytes []byte, newHasher codec.HasherFactory, extraDirs ...string) (Report, error) {
	entries, err := manifest.Parse(manifestBytes)
	if err != nil {
		return Report{}, err
	}
	if newHasher == nil {
		newHasher = codec.SHA1
	}

	var report Report
	for _, e := range entries {
		st := FileStatus{Filename: e.Filename}
		path, err := locate(dir, filepath.Base(e.Filename), extraDirs)
		if err != nil {
			st.Problem = err.Error()
			report.Files = append(report.Files, st)
			continue
		}
		st.Path = path
		st.Problem = checkFile(path, e, newHasher)
		st.OK = st.Problem == ""
		report.Files = append(report.Files, st)
	}
	return report, nil
}

func checkFile(path string, e manifest.Entry, newHasher codec.HasherFactory) string {
	f, err := os.Open(path)
	if err != nil {
		return err.Error()
	}
	defer f.Close()

	sum, n, err := codec.DigestReader(newHasher, f)
	if err != nil {
		return err.Error()
	}
	if n != e.Size {
		return fmt.Sprintf("size %d, manifest says %d", n, e.Size)
	}
	if sum != e.Hash {
		return fmt.Sprintf("hash %s, manifest says %s", sum.Short(), e.Hash.Short())
	}

	// 能否解码
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err.Error()
	}
	r, err := codec.NewDecompressor(e.Compression, f)
	if err != nil {
		return err.Error()
	}
	defer r.Close()
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Sprintf("decode %s: %v", e.Compression, err)
	}
	return ""
}

// OutsideDirs 返回 typeDirs 中的绝对路径，按字典序排列
func OutsideDirs(typeDirs map[string]string) []string {
	var dirs []string
	for _, d := range typeDirs {
		if filepath.IsAbs(d) && !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	slices.Sort(dirs)
	return dirs
}

// locate 先找 dir/name，再找 dir 的直接子目录，最后找 extra 中的目录
func locate(dir, name string, extra []string) (string, error) {
	direct := filepath.Join(dir, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}
	subs, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if !sub.IsDir() {
			continue
		}
		p := filepath.Join(dir, sub.Name(), name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	for _, d := range extra {
		p := filepath.Join(d, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found under %s", name, dir)
}
