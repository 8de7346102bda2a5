package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 HOOVER_TUBE_KIND
const EnvPrefix = "HOOVER"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults(viper.GetViper())

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：当前目录 > ./.hoover > ~/.hoover > /etc/hoover
		viper.AddConfigPath(".")
		viper.AddConfigPath(".hoover")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".hoover"))
		}
		viper.AddConfigPath("/etc/hoover")

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. 读取环境变量 (HOOVER_TUBE_BROKER_PASSWORD 等)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Debug("no config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	slog.Debug("using config file", slog.String("path", viper.ConfigFileUsed()))
	return nil
}

func setDefaults(v *viper.Viper) {
	// tube
	v.SetDefault("tube.kind", "file")
	v.SetDefault("tube.file.dir", ".")
	v.SetDefault("tube.file.write_block_size", 512*1024)
	v.SetDefault("tube.broker.driver", "amqp")
	v.SetDefault("tube.broker.port", 5672)
	v.SetDefault("tube.broker.vhost", "/")
	v.SetDefault("tube.broker.exchange_type", "direct")
	v.SetDefault("tube.broker.hash_field", "sha_hash")
	v.SetDefault("tube.broker.connect_timeout", "10s")
	v.SetDefault("tube.broker.publish_timeout", "30s")
	v.SetDefault("tube.s3.region", "us-east-1")
	v.SetDefault("tube.collector.timeout", "30s")
	v.SetDefault("tube.collector.hash_field", "sha_hash")
	v.SetDefault("tube.s3.hash_field", "sha_hash")

	// codec
	v.SetDefault("codec.block_size", 128*1024)
	v.SetDefault("codec.compression", "gz")
	v.SetDefault("codec.level", "default")
	v.SetDefault("codec.hash", "sha1")

	// 作业身份
	v.SetDefault("identity.job_id_var", "SLURM_JOB_ID")
	v.SetDefault("identity.task_id_var", "SLURM_STEP_ID")

	// ledger 默认放在用户主目录下
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.driver", "sqlite")
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("ledger.path", filepath.Join(home, ".hoover", "ledger.db"))
	} else {
		v.SetDefault("ledger.path", filepath.Join(".hoover", "ledger.db"))
	}
	v.SetDefault("ledger.host", "localhost")
	v.SetDefault("ledger.port", 5432)
	v.SetDefault("ledger.sslmode", "disable")

	// ship
	v.SetDefault("ship.types", []map[string]string{
		{"pattern": "*.darshan", "type": "darshan"},
		{"pattern": "*.darshan.gz", "type": "darshan"},
	})

	// collect
	v.SetDefault("collect.output_dir", ".")
	v.SetDefault("collect.listen", ":8080")
	v.SetDefault("collect.hash_field", "sha_hash")
	v.SetDefault("collect.hash", "sha1")
	v.SetDefault("collect.type_dirs", map[string]string{
		"darshan":  "darshanlogs",
		"manifest": "manifests",
		"_default": "misc",
	})
}
