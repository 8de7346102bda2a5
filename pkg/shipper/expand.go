package shipper

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"hoover/pkg/ignore"
)

// Expand 把目录展开为其中的普通文件 (按忽略规则过滤)，文件原样保留
// 不存在的路径放进 skipped；返回的文件去重且保持输入顺序
func Expand(paths []string, ignoreFile string) (files, skipped []string, err error) {
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil {
			slog.Warn("input not found, skipping", slog.String("path", p), slog.Any("error", statErr))
			skipped = append(skipped, p)
			continue
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}

		matcher, err := ignore.NewMatcher(p, ignoreFile)
		if err != nil {
			return nil, nil, err
		}
		var found []string
		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("walk error", slog.String("path", path), slog.Any("error", err))
				return nil
			}
			rel, relErr := filepath.Rel(p, path)
			if relErr != nil || rel == "." {
				return nil
			}
			if matcher.Matches(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, nil, walkErr
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, skipped, nil
}
