package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hoover/pkg/broker/amqp"
	"hoover/pkg/broker/redisstream"
	"hoover/pkg/collector"
	"hoover/pkg/config"
	"hoover/pkg/server"
	"hoover/pkg/tube"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.hoover/config.yaml)")
	listen := flag.String("listen", "", "gRPC listen address (overrides collect.listen, \"off\" disables)")
	consume := flag.Bool("consume", false, "also consume from the broker configured under tube.broker")
	outDir := flag.String("out", "", "output directory (overrides collect.output_dir)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	cfg, err := config.Decode()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if *outDir != "" {
		cfg.Collect.OutputDir = *outDir
	}
	if *listen != "" {
		cfg.Collect.Listen = *listen
	}

	// 2. Init Sink
	sink, err := collector.NewSink(cfg.Collect)
	if err != nil {
		log.Fatalf("❌ Failed to initialize sink: %v", err)
	}
	slog.Info("collector sink ready", slog.String("dir", sink.Root()))

	// 3. Sources
	var sources []collector.Source
	if cfg.Collect.Listen != "" && cfg.Collect.Listen != "off" {
		sources = append(sources, server.NewSource(cfg.Collect.Listen).WithHashField(sink.HashField()))
	}
	if *consume {
		switch cfg.Tube.Broker.Driver {
		case tube.DriverRedis:
			sources = append(sources, redisstream.NewReader(cfg.Tube.Broker))
		case tube.DriverAMQP, "":
			sources = append(sources, amqp.NewConsumer(cfg.Tube.Broker))
		default:
			log.Fatalf("❌ Unsupported broker driver: %s", cfg.Tube.Broker.Driver)
		}
	}

	// 4. Run until SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := collector.Run(ctx, sink, sources...); err != nil {
		stop()
		log.Fatalf("❌ Collector failed: %v", err)
	}
	slog.Info("collector stopped")
}
