package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/adapter/out/mysql"
	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
	"github.com/JoeShih716/go-treasury-mediator/internal/config"
	pkggrpc "github.com/JoeShih716/go-treasury-mediator/pkg/grpc"
	"github.com/JoeShih716/go-treasury-mediator/pkg/logger"
	"github.com/JoeShih716/go-treasury-mediator/pkg/money"
	"github.com/JoeShih716/go-treasury-mediator/pkg/mysql"
	"github.com/JoeShih716/go-treasury-mediator/pkg/wal"
)

func main() {
	configPath := flag.String("config", config.Path(), "設定檔路徑")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// 2. 建立帳本 backend
	formatter := money.NewFormatter(cfg.LedgerService.CurrencySymbol)
	var ledger usecase.Ledger
	switch cfg.LedgerService.Backend {
	case config.BackendMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL, zl)
		if err != nil {
			zl.Fatal("connect mysql failed", zap.Error(err))
		}
		defer dbClient.Close()

		mysqlLedger := mysql_adapter.NewLedger(dbClient, formatter)
		if err := mysqlLedger.Migrate(context.Background()); err != nil {
			zl.Fatal("migrate mysql failed", zap.Error(err))
		}
		ledger = mysqlLedger
	default:
		walFile, err := wal.NewWAL(cfg.LedgerService.WALPath)
		if err != nil {
			zl.Fatal("open wal failed", zap.String("path", cfg.LedgerService.WALPath), zap.Error(err))
		}
		defer walFile.Close()

		memoryLedger, err := memory_adapter.NewLedger(walFile, formatter)
		if err != nil {
			zl.Fatal("recover memory ledger failed", zap.Error(err))
		}
		ledger = memoryLedger
	}
	zl.Info("ledger backend ready", zap.String("backend", cfg.LedgerService.Backend))

	// 3. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.LedgerService.Listen)
	if err != nil {
		zl.Fatal("listen failed", zap.String("addr", cfg.LedgerService.Listen), zap.Error(err))
	}
	s := grpc.NewServer(
		grpc.ForceServerCodec(pkggrpc.ProtoCodec{}),
		grpc.ChainUnaryInterceptor(grpc_adapter.LoggingInterceptor(zl)),
	)
	grpc_adapter.Register(s, ledger)
	reflection.Register(s) // 方便 grpcurl 列出 treasury.v1.Ledger

	go func() {
		zl.Info("starting ledger service", zap.String("addr", cfg.LedgerService.Listen))
		if err := s.Serve(lis); err != nil {
			zl.Fatal("serve failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down ledger service")
	s.GracefulStop()
	zl.Info("ledger service exited")
}
