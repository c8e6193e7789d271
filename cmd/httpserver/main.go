package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/milad/thermo/internal/config"
	"github.com/milad/thermo/internal/logging"
	grpcserver "github.com/milad/thermo/internal/transport/grpc"
	httpserver "github.com/milad/thermo/internal/transport/http"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	flag.StringVar(&cfg.GRPCTarget, "grpc", cfg.GRPCTarget, "gRPC target host:port")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	logger, closer, err := logging.New(cfg.LogLevel, os.Stdout, cfg.LogFile)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(cfg.GRPCTarget, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error("dial gRPC", "target", cfg.GRPCTarget, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Reduce docker-compose race: wait a bit for gRPC to be ready.
	waitForGRPC(ctx, logger, conn, cfg.GRPCWait)

	srv := httpserver.New(grpcserver.NewClient(conn), httpserver.Options{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		RecordRate:  rate.Limit(cfg.RecordRatePerSec),
		RecordBurst: cfg.RecordBurst,
	})

	h := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.LoggingHandler(os.Stdout, srv),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.HTTPAddr, "err", err)
		os.Exit(1)
	}
	logger.Info("HTTP listening", "addr", cfg.HTTPAddr, "grpc_target", cfg.GRPCTarget)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down HTTP")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(shutdownCtx)
	}()

	if err := h.Serve(ln); err != nil && err != http.ErrServerClosed {
		logger.Error("serve", "err", err)
	}
}

func waitForGRPC(ctx context.Context, logger *slog.Logger, conn *grpc.ClientConn, maxWait time.Duration) {
	if maxWait <= 0 {
		return
	}

	hc := healthpb.NewHealthClient(conn)
	deadline := time.Now().Add(maxWait)

	backoff := 100 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		_, err := hc.Check(reqCtx, &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
		cancel()
		if err == nil {
			logger.Info("gRPC is ready")
			return
		}

		if time.Now().After(deadline) {
			logger.Warn("gRPC not ready; continuing anyway", "waited", maxWait, "err", err)
			return
		}

		time.Sleep(backoff)
		if backoff < 1*time.Second {
			backoff *= 2
			if backoff > 1*time.Second {
				backoff = 1 * time.Second
			}
		}
	}
}
