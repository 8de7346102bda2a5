package tube

import (
	"net"
	"strconv"
	"time"
)

// Tube 类型
const (
	KindFile      = "file"
	KindBroker    = "broker"
	KindS3        = "s3"
	KindCollector = "collector"
)

// Broker 驱动
const (
	DriverAMQP  = "amqp"
	DriverRedis = "redis"
)

const (
	DefaultWriteBlockSize = 512 * 1024
	DefaultAMQPPort       = 5672
	DefaultExchangeType   = "direct"
	DefaultConnectTimeout = 10 * time.Second
	DefaultPublishTimeout = 30 * time.Second
)

// Config 选择并描述一种 Tube
// 由配置文件解码得到，Tube 打开时会复制需要的字段
type Config struct {
	Kind      string          `mapstructure:"kind"`
	File      FileConfig      `mapstructure:"file"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	S3        S3Config        `mapstructure:"s3"`
	Collector CollectorConfig `mapstructure:"collector"`
}

type FileConfig struct {
	// Dir 为空时使用当前工作目录
	Dir            string `mapstructure:"dir"`
	WriteBlockSize int    `mapstructure:"write_block_size"`
}

type BrokerConfig struct {
	Driver       string   `mapstructure:"driver"`
	Servers      []string `mapstructure:"servers"`
	Port         int      `mapstructure:"port"`
	VHost        string   `mapstructure:"vhost"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	Exchange     string   `mapstructure:"exchange"`
	ExchangeType string   `mapstructure:"exchange_type"`
	RoutingKey   string   `mapstructure:"routing_key"`
	// Queue 非空时在打开时声明并绑定队列
	Queue           string `mapstructure:"queue"`
	MaxTransmitSize int64  `mapstructure:"max_transmit_size"`
	UseTLS          bool   `mapstructure:"use_ssl"`
	TLSSkipVerify   bool   `mapstructure:"tls_skip_verify"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`

	// HashField 是元数据中摘要字段的名字，现有消费者读取 "sha_hash"
	HashField   string `mapstructure:"hash_field"`
	IncludeType bool   `mapstructure:"include_type"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
	// HashField 对象用户元数据里校验和的键名，为空时取 DefaultHashField
	HashField       string `mapstructure:"hash_field"`
}

type CollectorConfig struct {
	Address   string        `mapstructure:"address"`
	UseTLS    bool          `mapstructure:"use_tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// HashField 必须与收集端 collect.hash_field 一致，为空时取 DefaultHashField
	HashField string        `mapstructure:"hash_field"`
}

// withDefaults 填充零值字段
func (c BrokerConfig) withDefaults() BrokerConfig {
	if c.Port == 0 {
		c.Port = DefaultAMQPPort
	}
	if c.VHost == "" {
		c.VHost = "/"
	}
	if c.ExchangeType == "" {
		c.ExchangeType = DefaultExchangeType
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.HashField == "" {
		c.HashField = DefaultHashField
	}
	c.Servers = append([]string(nil), c.Servers...)
	return c
}

// Endpoint 是一次连接尝试的目标
type Endpoint struct {
	Host          string
	Port          int
	UseTLS        bool
	TLSSkipVerify bool
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Credentials 用于登录 broker
type Credentials struct {
	VHost    string
	Username string
	Password string
}

