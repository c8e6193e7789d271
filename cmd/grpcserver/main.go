package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/milad/thermo/internal/config"
	"github.com/milad/thermo/internal/ingest"
	"github.com/milad/thermo/internal/logging"
	"github.com/milad/thermo/internal/service"
	grpcserver "github.com/milad/thermo/internal/transport/grpc"
	"github.com/milad/thermo/internal/window"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flag.StringVar(&cfg.GRPCAddr, "addr", cfg.GRPCAddr, "listen address")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "reading store: memory, sqlite or influx")
	flag.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "CSV file to seed the memory store from")
	flag.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "SQLite database path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, closer, err := logging.New(cfg.LogLevel, os.Stdout, cfg.LogFile)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, loc, logger)
	if err != nil {
		logger.Error("open store", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	svc := service.NewTemperatureService(store, window.NewResolver(nil, loc))
	api := grpcserver.New(svc)

	var wg sync.WaitGroup
	if err := startIngest(ctx, &wg, cfg, svc, logger); err != nil {
		logger.Error("start ingest", "err", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}
	logger.Info("gRPC listening", "addr", cfg.GRPCAddr, "store", cfg.Store, "timezone", loc.String())

	g := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(logger)))
	grpcserver.RegisterTemperatureServiceServer(g, api)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down gRPC")
		hs.Shutdown()
		ch := make(chan struct{})
		go func() {
			g.GracefulStop()
			close(ch)
		}()
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			g.Stop()
		}
	}()

	if err := g.Serve(lis); err != nil {
		logger.Error("serve", "err", err)
	}
	wg.Wait()
}

func startIngest(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, rec ingest.Recorder, logger *slog.Logger) error {
	if len(cfg.KafkaBrokers) > 0 {
		c, err := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, rec, logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Run(ctx)
		}()
	}
	if cfg.MQTTBroker != "" {
		s, err := ingest.NewMQTTSubscriber(ingest.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			QoS:      1,
		}, rec, logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				logger.Error("mqtt subscriber", "err", err)
			}
		}()
	}
	return nil
}
