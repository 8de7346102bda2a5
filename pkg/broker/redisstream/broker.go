// Package redisstream 用 Redis Streams 实现 tube.MessageBroker
//
// 映射关系：exchange + routing key 命名一个 stream ("{exchange}:{routing_key}")，
// vhost "/N" 选择第 N 号数据库，发布是 XADD，返回的条目 ID 就是确认。
package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hoover/pkg/tube"

	"github.com/redis/go-redis/v9"
)

// ExchangeRegistry 记录已声明的 exchange 及其类型
const ExchangeRegistry = "hoover:exchanges"

// PayloadField 是 stream 条目中存放消息体的字段
const PayloadField = "payload"

type Broker struct {
	ep     tube.Endpoint
	client *redis.Client
	kinds  map[string]string
}

// New 满足 tube.BrokerFactory
func New() tube.MessageBroker { return &Broker{kinds: map[string]string{}} }

func (b *Broker) options(cred tube.Credentials, db int) *redis.Options {
	opts := &redis.Options{
		Addr:     b.ep.Address(),
		Username: cred.Username,
		Password: cred.Password,
		DB:       db,
	}
	if b.ep.UseTLS {
		opts.TLSConfig = &tls.Config{
			ServerName:         b.ep.Host,
			InsecureSkipVerify: b.ep.TLSSkipVerify,
		}
	}
	return opts
}

// Connect 探测服务器是否可达
// 需要认证的服务器会回复 NOAUTH，这也说明服务器可达
func (b *Broker) Connect(ctx context.Context, ep tube.Endpoint) error {
	b.ep = ep
	probe := redis.NewClient(b.options(tube.Credentials{}, 0))
	defer probe.Close()

	err := probe.Ping(ctx).Err()
	if err == nil || isAuthError(err) {
		return nil
	}
	return classify(err)
}

// Authenticate 使用凭据和 vhost 对应的数据库建立真正的客户端
func (b *Broker) Authenticate(ctx context.Context, cred tube.Credentials) error {
	db, err := DatabaseFromVHost(cred.VHost)
	if err != nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: err.Error(), Err: err}
	}
	client := redis.NewClient(b.options(cred, db))
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return classify(err)
	}
	b.client = client
	return nil
}

// OpenChannel 在 Redis 上没有对应物，只检查已登录
func (b *Broker) OpenChannel(ctx context.Context) error {
	if b.client == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "not authenticated"}
	}
	return nil
}

// DeclareExchange 在注册表中登记 exchange
// 同名 exchange 以不同类型再次声明会失败，与 AMQP 的 PRECONDITION_FAILED 一致
func (b *Broker) DeclareExchange(ctx context.Context, name, kind string) error {
	if b.client == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "not authenticated"}
	}
	if _, err := b.client.HSetNX(ctx, ExchangeRegistry, name, kind).Result(); err != nil {
		return classify(err)
	}
	existing, err := b.client.HGet(ctx, ExchangeRegistry, name).Result()
	if err != nil {
		return classify(err)
	}
	if existing != kind {
		return &tube.BrokerError{
			Scope: tube.ScopeChannel,
			Code:  406,
			Text:  fmt.Sprintf("PRECONDITION_FAILED - exchange %q declared as %q, not %q", name, existing, kind),
		}
	}
	b.kinds[name] = kind
	return nil
}

// BindQueue 为 stream 创建消费组
func (b *Broker) BindQueue(ctx context.Context, queue, exchange, routingKey string) error {
	if b.client == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "not authenticated"}
	}
	err := b.client.XGroupCreateMkStream(ctx, StreamName(exchange, routingKey), queue, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return classify(err)
	}
	return nil
}

// Publish 执行 XADD；元数据与消息体写在同一个条目里
func (b *Broker) Publish(ctx context.Context, msg tube.Message) error {
	if b.client == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "not authenticated"}
	}
	if _, ok := b.kinds[msg.Exchange]; !ok {
		return &tube.BrokerError{Scope: tube.ScopeChannel, Code: 404, Text: "NOT_FOUND - no exchange " + msg.Exchange}
	}

	values := make(map[string]any, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		values[k] = v
	}
	values[PayloadField] = msg.Body

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName(msg.Exchange, msg.RoutingKey),
		Values: values,
	}).Result()
	if err != nil {
		return classify(err)
	}
	if id == "" {
		return &tube.BrokerError{Scope: tube.ScopeChannel, Text: "XADD returned no entry id"}
	}
	return nil
}

func (b *Broker) Close() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// StreamName 返回 exchange 与 routing key 对应的 stream
func StreamName(exchange, routingKey string) string {
	if routingKey == "" {
		return exchange
	}
	return exchange + ":" + routingKey
}

// DatabaseFromVHost 把 "/", "" 映射到 0，"/N" 映射到 N
func DatabaseFromVHost(vhost string) (int, error) {
	s := strings.TrimPrefix(vhost, "/")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("vhost %q does not name a redis database", vhost)
	}
	return n, nil
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS")
}

// classify 区分服务端的回复错误与客户端本地错误
func classify(err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		scope := tube.ScopeChannel
		if isAuthError(err) {
			scope = tube.ScopeConnection
		}
		return &tube.BrokerError{Scope: scope, Text: rerr.Error(), Err: err}
	}
	return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: err.Error(), Err: err}
}
