// Package amqp 基于 amqp091-go 实现 tube.MessageBroker
package amqp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"hoover/pkg/tube"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FrameSize 与旧版生产者一致
const FrameSize = 131072

const defaultHeartbeat = 10 * time.Second

// Broker 是一次连接尝试：socket -> AMQP 连接 -> 通道
type Broker struct {
	ep   tube.Endpoint
	sock net.Conn
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New 满足 tube.BrokerFactory
func New() tube.MessageBroker { return &Broker{} }

// Connect 只建立 TCP (或 TLS) 连接，AMQP 握手在 Authenticate 中完成
func (b *Broker) Connect(ctx context.Context, ep tube.Endpoint) error {
	b.ep = ep
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	var (
		sock net.Conn
		err  error
	)
	if ep.UseTLS {
		td := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         ep.Host,
				InsecureSkipVerify: ep.TLSSkipVerify,
			},
		}
		sock, err = td.DialContext(ctx, "tcp", ep.Address())
	} else {
		sock, err = dialer.DialContext(ctx, "tcp", ep.Address())
	}
	if err != nil {
		return classify(err)
	}
	b.sock = sock
	return nil
}

// Authenticate 完成 AMQP 握手 (PLAIN 认证 + vhost)
func (b *Broker) Authenticate(ctx context.Context, cred tube.Credentials) error {
	if b.sock == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "not connected"}
	}
	// 握手期间的截止时间；握手完成后库会清除它
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.sock.SetDeadline(deadline)
	}
	conn, err := amqp.Open(b.sock, amqp.Config{
		SASL:      []amqp.Authentication{&amqp.PlainAuth{Username: cred.Username, Password: cred.Password}},
		Vhost:     cred.VHost,
		FrameSize: FrameSize,
		Heartbeat: defaultHeartbeat,
		Properties: amqp.Table{
			"product": "hoover",
		},
	})
	if err != nil {
		return classify(err)
	}
	b.conn = conn
	return nil
}

// OpenChannel 打开通道并启用发布确认
func (b *Broker) OpenChannel(ctx context.Context) error {
	if b.conn == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "not authenticated"}
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return classify(err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return classify(err)
	}
	b.ch = ch
	return nil
}

// DeclareExchange 声明非持久、不自动删除的 exchange
func (b *Broker) DeclareExchange(ctx context.Context, name, kind string) error {
	if b.ch == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "no channel"}
	}
	if err := b.ch.ExchangeDeclare(name, kind, false, false, false, false, nil); err != nil {
		return classify(err)
	}
	return nil
}

// BindQueue 声明队列并绑定到 exchange
func (b *Broker) BindQueue(ctx context.Context, queue, exchange, routingKey string) error {
	if b.ch == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "no channel"}
	}
	if _, err := b.ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return classify(err)
	}
	if err := b.ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return classify(err)
	}
	return nil
}

// Publish 发布并等待 broker 的确认
func (b *Broker) Publish(ctx context.Context, msg tube.Message) error {
	if b.ch == nil {
		return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: "no channel"}
	}
	pub := amqp.Publishing{
		Headers:     amqp.Table(msg.Headers),
		ContentType: msg.ContentType,
		Body:        msg.Body,
		Timestamp:   time.Now(),
	}
	if msg.Persistent {
		pub.DeliveryMode = amqp.Persistent
	}

	dc, err := b.ch.PublishWithDeferredConfirmWithContext(ctx, msg.Exchange, msg.RoutingKey, false, false, pub)
	if err != nil {
		return classify(err)
	}
	if dc == nil {
		// 通道不在确认模式
		return nil
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return classify(err)
	}
	if !acked {
		return &tube.BrokerError{Scope: tube.ScopeChannel, Text: "message nacked by broker"}
	}
	return nil
}

// Close 先关通道再关连接
func (b *Broker) Close() error {
	var errs []error
	if b.ch != nil {
		if err := b.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		b.ch = nil
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		b.conn = nil
		b.sock = nil
	}
	if b.sock != nil {
		if err := b.sock.Close(); err != nil {
			errs = append(errs, err)
		}
		b.sock = nil
	}
	return errors.Join(errs...)
}

// classify 把 amqp091 的错误转换为带层级的 tube.BrokerError
// 服务端的 soft exception (Recover) 只关闭通道，其余关闭整个连接
func classify(err error) error {
	var ae *amqp.Error
	if errors.As(err, &ae) {
		scope := tube.ScopeConnection
		if ae.Recover {
			scope = tube.ScopeChannel
		}
		if !ae.Server && ae.Code == 0 {
			scope = tube.ScopeLibrary
		}
		return &tube.BrokerError{Scope: scope, Code: ae.Code, Text: ae.Reason, Err: err}
	}
	return &tube.BrokerError{Scope: tube.ScopeLibrary, Text: err.Error(), Err: err}
}

func (b *Broker) String() string {
	return fmt.Sprintf("amqp://%s", b.ep.Address())
}
