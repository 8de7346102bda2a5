package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"hoover/pkg/collector"
	"hoover/pkg/tube"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue 是收集端默认消费的队列
const DefaultQueue = "logs"

// Consumer 从绑定到 exchange 的队列中读取消息
type Consumer struct {
	cfg tube.BrokerConfig
}

func NewConsumer(cfg tube.BrokerConfig) *Consumer {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	return &Consumer{cfg: cfg}
}

func (c *Consumer) Name() string { return "amqp:" + c.cfg.Exchange + "/" + c.cfg.Queue }

// Run 复用发送端的连接与故障转移流程，然后手动确认地消费
// 处理成功才 Ack；处理失败的消息 Nack 且不重新入队
func (c *Consumer) Run(ctx context.Context, handle collector.Handler) error {
	t, err := tube.OpenBroker(ctx, c.cfg, New)
	if err != nil {
		return err
	}
	defer tube.Close(t)

	b, ok := t.Broker().(*Broker)
	if !ok {
		return fmt.Errorf("unexpected broker type %T", t.Broker())
	}
	deliveries, err := b.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return classify(err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", tube.ErrChannelError)
			}
			err := handle(ctx, collector.Delivery{
				Metadata: TableStrings(d.Headers),
				Body:     d.Body,
			})
			if err != nil {
				slog.Warn("delivery rejected", slog.String("queue", c.cfg.Queue), slog.Any("error", err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// TableStrings 把 AMQP 头表转换为字符串表
func TableStrings(t amqp.Table) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		switch v := v.(type) {
		case string:
			out[k] = v
		case int64:
			out[k] = strconv.FormatInt(v, 10)
		case int32:
			out[k] = strconv.FormatInt(int64(v), 10)
		case []byte:
			out[k] = string(v)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
