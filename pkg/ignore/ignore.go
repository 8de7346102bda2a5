package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是目录内的忽略规则文件
const FileName = ".hooverignore"

// DefaultRules 总是生效
var DefaultRules = []string{
	// 本工具自己的目录与临时文件
	".hoover",
	".hoover-*",
	".incoming-*",
	FileName,

	".git",
	".env",

	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断展开目录时哪些文件不应该被发送
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 合并默认规则、root 下的 .hooverignore 和 extraFile (可为空)
func NewMatcher(root, extraFile string) (*Matcher, error) {
	lines := append([]string(nil), DefaultRules...)

	for _, f := range []string{filepath.Join(root, FileName), extraFile} {
		if f == "" {
			continue
		}
		data, err := os.ReadFile(f)
		if os.IsNotExist(err) && f != extraFile {
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, splitLines(string(data))...)
	}

	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}, nil
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Matches 检查相对于展开根目录的路径
// 返回 true 表示跳过
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
