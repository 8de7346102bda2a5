package redisstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hoover/pkg/collector"
	"hoover/pkg/tube"

	"github.com/redis/go-redis/v9"
)

// DefaultGroup 是收集端默认使用的消费组
const DefaultGroup = "hoover-collector"

// Reader 以消费组方式读取 stream
type Reader struct {
	cfg      tube.BrokerConfig
	group    string
	consumer string
	block    time.Duration
}

func NewReader(cfg tube.BrokerConfig) *Reader {
	group := cfg.Queue
	if group == "" {
		group = DefaultGroup
	}
	cfg.Queue = group
	host, _ := os.Hostname()
	return &Reader{
		cfg:      cfg,
		group:    group,
		consumer: fmt.Sprintf("%s-%d", host, os.Getpid()),
		block:    5 * time.Second,
	}
}

func (r *Reader) Name() string {
	return "redis:" + StreamName(r.cfg.Exchange, r.cfg.RoutingKey) + "/" + r.group
}

// Run 处理成功后 XACK；失败的条目留在 pending 列表中
func (r *Reader) Run(ctx context.Context, handle collector.Handler) error {
	t, err := tube.OpenBroker(ctx, r.cfg, New)
	if err != nil {
		return err
	}
	defer tube.Close(t)

	b, ok := t.Broker().(*Broker)
	if !ok {
		return fmt.Errorf("unexpected broker type %T", t.Broker())
	}
	stream := StreamName(r.cfg.Exchange, r.cfg.RoutingKey)

	for ctx.Err() == nil {
		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  []string{stream, ">"},
			Count:    16,
			Block:    r.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return classify(err)
		}

		for _, s := range res {
			for _, m := range s.Messages {
				d := EntryDelivery(m)
				if err := handle(ctx, d); err != nil {
					slog.Warn("stream entry rejected",
						slog.String("stream", stream),
						slog.String("id", m.ID),
						slog.Any("error", err),
					)
					continue
				}
				if err := b.client.XAck(ctx, stream, r.group, m.ID).Err(); err != nil {
					return classify(err)
				}
			}
		}
	}
	return nil
}

// EntryDelivery 把 stream 条目拆成元数据和消息体
func EntryDelivery(m redis.XMessage) collector.Delivery {
	d := collector.Delivery{Metadata: make(map[string]string, len(m.Values))}
	for k, v := range m.Values {
		s := fmt.Sprint(v)
		if k == PayloadField {
			d.Body = []byte(s)
			continue
		}
		d.Metadata[k] = s
	}
	return d
}
