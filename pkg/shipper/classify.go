package shipper

import (
	"fmt"
	"path/filepath"
)

// TypeRule 把文件名 glob 映射到类型标签
type TypeRule struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Type    string `mapstructure:"type" yaml:"type"`
}

// DefaultTypes 识别常见的作业产物
func DefaultTypes() []TypeRule {
	return []TypeRule{
		{Pattern: "*.darshan", Type: "darshan"},
		{Pattern: "*.darshan.gz", Type: "darshan"},
	}
}

// Classifier 按文件名 glob 判断类型，第一条匹配的规则生效
type Classifier struct {
	rules       []TypeRule
	defaultType string
}

func NewClassifier(rules []TypeRule, defaultType string) (*Classifier, error) {
	for _, r := range rules {
		if _, err := filepath.Match(r.Pattern, ""); err != nil {
			return nil, fmt.Errorf("bad type pattern %q: %w", r.Pattern, err)
		}
	}
	return &Classifier{rules: rules, defaultType: defaultType}, nil
}

// Type 返回 path 的类型标签
func (c *Classifier) Type(path string) string {
	base := filepath.Base(path)
	for _, r := range c.rules {
		if ok, _ := filepath.Match(r.Pattern, base); ok {
			return r.Type
		}
	}
	return c.defaultType
}
