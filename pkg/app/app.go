// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hoover/pkg/broker/amqp"
	"hoover/pkg/broker/redisstream"
	"hoover/pkg/client"
	"hoover/pkg/codec"
	"hoover/pkg/config"
	"hoover/pkg/core"
	"hoover/pkg/ledger"
	"hoover/pkg/shipper"
	"hoover/pkg/tube"
	s3tube "hoover/pkg/tube/s3"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Config   *config.Config
	Encoder  *codec.Encoder
	Identity core.Identity
	Tube     tube.Tube

	// Ledger 在 ledger.enabled=false 时为 nil
	Ledger *ledger.Repository
	db     *ledger.DB
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 读取有效配置
	cfg, err := config.Decode()
	if err != nil {
		return nil, err
	}

	// 2. 编码器
	enc, err := codec.NewEncoder(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("failed to init encoder: %w", err)
	}

	// 3. 出口 (Tube)
	t, err := initTube(ctx, cfg.Tube)
	if err != nil {
		return nil, fmt.Errorf("failed to open tube: %w", err)
	}

	a := &App{
		Config:   cfg,
		Encoder:  enc,
		Identity: core.DetectIdentity(cfg.Identity),
		Tube:     t,
	}

	// 4. 历史记录是可选的；打不开只降级
	if cfg.Ledger.Enabled {
		db, err := ledger.Open(ctx, cfg.Ledger)
		if err != nil {
			slog.Warn("ledger unavailable, history will not be recorded", slog.Any("error", err))
		} else {
			a.db = db
			a.Ledger = ledger.NewRepository(db)
		}
	}
	return a, nil
}

// NewShipper 用容器中的服务组装 Shipper
func (a *App) NewShipper() (*shipper.Shipper, error) {
	var rec shipper.Recorder
	if a.Ledger != nil {
		rec = a.Ledger
	}
	return shipper.New(a.Encoder, a.Tube, a.Identity, a.Config.Ship, rec)
}

// Close 关闭 tube 和数据库
func (a *App) Close() error {
	var errs []error
	if a.Tube != nil {
		errs = append(errs, a.Tube.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// OpenLedger 只打开历史数据库 (history 命令不需要 tube)
func OpenLedger(ctx context.Context) (*ledger.Repository, func() error, error) {
	cfg, err := config.Decode()
	if err != nil {
		return nil, nil, err
	}
	db, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewRepository(db), db.Close, nil
}

// initTube 按 tube.kind 创建出口
func initTube(ctx context.Context, cfg tube.Config) (tube.Tube, error) {
	switch cfg.Kind {
	case tube.KindFile, "":
		t, err := tube.OpenFile(cfg.File)
		if err != nil {
			return nil, err
		}
		return t, nil

	case tube.KindBroker:
		factory, err := brokerFactory(cfg.Broker.Driver)
		if err != nil {
			return nil, err
		}
		t, err := tube.OpenBroker(ctx, cfg.Broker, factory)
		if err != nil {
			return nil, err
		}
		return t, nil

	case tube.KindS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		t, err := s3tube.Open(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return t, nil

	case tube.KindCollector:
		t, err := client.NewCollectorTube(cfg.Collector)
		if err != nil {
			return nil, err
		}
		return t, nil

	default:
		return nil, fmt.Errorf("unsupported tube kind: %s", cfg.Kind)
	}
}

func brokerFactory(driver string) (tube.BrokerFactory, error) {
	switch driver {
	case tube.DriverAMQP, "":
		return amqp.New, nil
	case tube.DriverRedis:
		return redisstream.New, nil
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", driver)
	}
}
