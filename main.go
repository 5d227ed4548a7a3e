package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/hideseek/config"
	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/monitor"
	"github.com/wfunc/hideseek/persistence"
	"github.com/wfunc/hideseek/rpc"
	"github.com/wfunc/hideseek/server"
	"github.com/wfunc/hideseek/services"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init("info")
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Infow("Storage ready.", "driver", cfg.Database.Driver)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mon := monitor.NewMonitor("hideseek", registry)
	metricsServer := mon.StartServer(cfg.Server.MetricsAddress)

	svc := services.New(store, mon)

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, svc.Healthy, 10*time.Second)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	gameServer := server.NewGameServer(server.Options{
		HTTPAddress:       cfg.Server.HTTPAddress,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
		TrustedProxies:    cfg.Server.TrustedProxies,
	}, svc, mon)

	errs := make(chan error, 1)
	go func() { errs <- gameServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down.")
	case err := <-errs:
		if err != nil {
			logger.Log.Errorf("Game server stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("HTTP shutdown: %v", err)
	}
	rpcServer.Stop()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (persistence.Store, error) {
	if cfg.Driver == "memory" {
		return persistence.NewMemoryStore(), nil
	}
	pg := cfg.Postgres
	dsn := persistence.PostgresDSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)
	return persistence.NewGormPostgreSQL(ctx, dsn, persistence.PoolOptions{
		MaxOpenConns: pg.MaxOpenConns,
		MaxIdleConns: pg.MaxIdleConns,
		LogLevel:     gormlogger.Warn,
	})
}
