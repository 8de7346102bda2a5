package tube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"hoover/pkg/core"
)

// Message 是一次发布的内容
type Message struct {
	Exchange   string
	RoutingKey string
	Headers    map[string]any
	Body       []byte
	// Persistent 要求 broker 把消息落盘 (delivery mode 2)
	Persistent  bool
	ContentType string
}

// MessageBroker 是一个客户端库上的最小能力集合
// 每个实例只服务一次连接尝试；Close 先关通道再关连接，可以重复调用
type MessageBroker interface {
	Connect(ctx context.Context, ep Endpoint) error
	Authenticate(ctx context.Context, cred Credentials) error
	OpenChannel(ctx context.Context) error
	DeclareExchange(ctx context.Context, name, kind string) error
	// Publish 在 broker 确认之后才返回
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// QueueBinder 由支持队列的驱动实现
type QueueBinder interface {
	BindQueue(ctx context.Context, queue, exchange, routingKey string) error
}

// BrokerFactory 为每次连接尝试创建一个新的客户端
type BrokerFactory func() MessageBroker

// Option 调整 BrokerTube 的打开行为
type Option func(*options)

type options struct {
	rng *rand.Rand
}

// WithRand 注入服务器选择使用的随机源 (测试时用固定种子)
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// BrokerTube 把对象发布到消息 broker 的 exchange
type BrokerTube struct {
	broker MessageBroker
	cfg    BrokerConfig
	host   string

	closed bool
	// poisoned 记录第一次发布失败，之后的 Send 都会失败
	poisoned error
}

// OpenBroker 按随机顺序尝试服务器池，直到连接成功，然后登录、打开通道并声明 exchange
func OpenBroker(ctx context.Context, cfg BrokerConfig, factory BrokerFactory, opts ...Option) (*BrokerTube, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if factory == nil {
		return nil, errors.New("broker factory is nil")
	}
	cfg = cfg.withDefaults()
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServersConfigured
	}

	// 1. 选择服务器
	broker, host, err := connectAny(ctx, cfg, factory, o.rng)
	if err != nil {
		return nil, err
	}
	t := &BrokerTube{broker: broker, cfg: cfg, host: host}

	fail := func(sentinel error, step string, err error) (*BrokerTube, error) {
		if cerr := broker.Close(); cerr != nil {
			slog.Debug("broker close after failed open", slog.Any("error", cerr))
		}
		return nil, fmt.Errorf("%w: %s on %s: %w", sentinel, step, host, err)
	}

	// 2. 登录
	actx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	err = broker.Authenticate(actx, Credentials{
		VHost:    cfg.VHost,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	cancel()
	if err != nil {
		return fail(ErrAuthFailure, "login", err)
	}

	// 3. 通道与 exchange
	if err := broker.OpenChannel(ctx); err != nil {
		return fail(ErrChannelError, "open channel", err)
	}
	if err := broker.DeclareExchange(ctx, cfg.Exchange, cfg.ExchangeType); err != nil {
		return fail(ErrExchangeDeclareFailure, "declare exchange "+cfg.Exchange, err)
	}
	if cfg.Queue != "" {
		binder, ok := broker.(QueueBinder)
		if !ok {
			return fail(ErrExchangeDeclareFailure, "bind queue", errors.New("driver does not support queues"))
		}
		if err := binder.BindQueue(ctx, cfg.Queue, cfg.Exchange, cfg.RoutingKey); err != nil {
			return fail(ErrExchangeDeclareFailure, "bind queue "+cfg.Queue, err)
		}
	}

	slog.Info("broker tube opened",
		slog.String("host", host),
		slog.Int("port", cfg.Port),
		slog.String("exchange", cfg.Exchange),
		slog.String("routing_key", cfg.RoutingKey),
	)
	return t, nil
}

func connectAny(ctx context.Context, cfg BrokerConfig, factory BrokerFactory, rng *rand.Rand) (MessageBroker, string, error) {
	sel := NewSelector(cfg.Servers, rng)
	var lastErr error
	for {
		host, ok := sel.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		broker := factory()
		start := time.Now()
		cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err := broker.Connect(cctx, Endpoint{
			Host:          host,
			Port:          cfg.Port,
			UseTLS:        cfg.UseTLS,
			TLSSkipVerify: cfg.TLSSkipVerify,
		})
		cancel()
		if err == nil {
			return broker, host, nil
		}

		slog.Warn("broker unreachable, trying next",
			slog.String("host", host),
			slog.Duration("elapsed", time.Since(start)),
			slog.Int("remaining", sel.Remaining()),
			slog.Any("error", err),
		)
		_ = broker.Close()
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w: tried %d servers: %w", ErrNoReachableBroker, len(cfg.Servers), lastErr)
}

func (t *BrokerTube) Destination() string {
	return fmt.Sprintf("broker://%s:%d/%s", t.host, t.cfg.Port, t.cfg.Exchange)
}

// Host 返回实际连接的服务器
func (t *BrokerTube) Host() string { return t.host }

// Broker 返回底层客户端，消费端复用已经建立好的连接
func (t *BrokerTube) Broker() MessageBroker { return t.broker }

// Send 发布一个对象并等待 broker 确认
// 发布失败之后 tube 不再可用：一次运行中不重试
func (t *BrokerTube) Send(ctx context.Context, obj *core.DataObject, h core.Header) error {
	if t == nil || t.closed {
		return ErrTubeClosed
	}
	if t.poisoned != nil {
		return fmt.Errorf("%w: tube unusable after earlier failure: %w", ErrPublishError, t.poisoned)
	}
	if t.cfg.MaxTransmitSize > 0 && obj.Size > t.cfg.MaxTransmitSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrPayloadTooLarge, h.Filename, obj.Size, t.cfg.MaxTransmitSize)
	}

	msg := Message{
		Exchange:    t.cfg.Exchange,
		RoutingKey:  t.cfg.RoutingKey,
		Headers:     Metadata(h, t.cfg.HashField, t.cfg.IncludeType),
		Body:        obj.Bytes(),
		Persistent:  true,
		ContentType: "application/octet-stream",
	}

	pctx, cancel := context.WithTimeout(ctx, t.cfg.PublishTimeout)
	defer cancel()
	if err := t.broker.Publish(pctx, msg); err != nil {
		t.poisoned = err
		return fmt.Errorf("%w: %s: %w", ErrPublishError, h.Filename, err)
	}

	slog.Debug("published",
		slog.String("filename", h.Filename),
		slog.Int64("size", obj.Size),
		slog.String("hash", h.Hash.Short()),
	)
	return nil
}

// Close 先关闭通道再关闭连接；nil 和重复调用都是安全的
func (t *BrokerTube) Close() error {
	if t == nil || t.closed {
		return nil
	}
	t.closed = true
	return t.broker.Close()
}
