// Package config 把 viper 中的设置解码为各个包自己的配置结构
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hoover/pkg/codec"
	"hoover/pkg/collector"
	"hoover/pkg/core"
	"hoover/pkg/ledger"
	"hoover/pkg/shipper"
	"hoover/pkg/tube"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 是完整的有效配置
type Config struct {
	Tube     tube.Config         `mapstructure:"tube"`
	Codec    codec.Options       `mapstructure:"codec"`
	Identity core.IdentityConfig `mapstructure:"identity"`
	Ledger   ledger.Config       `mapstructure:"ledger"`
	Ship     shipper.Options     `mapstructure:"ship"`
	Collect  collector.Config    `mapstructure:"collect"`
}

// Decode 读取当前 viper 状态
func Decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

const mask = "********"

// secretKeys 以这些名字结尾的键在输出时被遮蔽
var secretKeys = []string{"password", "secret_access_key"}

// Redacted 以 YAML 输出所有设置，口令类字段被遮蔽
func Redacted(w io.Writer) error {
	settings := redact(viper.AllSettings())
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return err
	}
	return enc.Close()
}

func redact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = redact(val)
		default:
			if isSecret(k) && fmt.Sprint(val) != "" {
				out[k] = mask
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// WriteDefault 把默认配置写入 path；文件已存在时返回错误
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v)
	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
