package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rmarchant/rebal-backend/internal/api"
	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/db"
	"github.com/rmarchant/rebal-backend/internal/engine"
	"github.com/rmarchant/rebal-backend/internal/ethereum"
	"github.com/rmarchant/rebal-backend/internal/filestore"
	"github.com/rmarchant/rebal-backend/internal/notifications"
	"github.com/rmarchant/rebal-backend/internal/repository"
	"github.com/rmarchant/rebal-backend/internal/scheduler"
	"github.com/rmarchant/rebal-backend/internal/zerox"
)

const banner = `
╔══════════════════════════════════════╗
║   Portfolio Rebalancing Agent v0.1   ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Runtime config file (trading parameters, editable over the API)
	cfgs := config.NewRuntimeStore(cfg.RuntimePath, cfg.AdminToken)
	rt, err := cfgs.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime config error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[CONFIG] Loaded %s: chain %d, %d targets, poll every %dm\n",
		cfg.RuntimePath, rt.ChainID, len(rt.Targets), rt.PollMinutes)

	// Persistence backend
	var (
		pool    *pgxpool.Pool
		store   engine.StateStore
		trades  engine.TradeLog
		history api.TradeHistory
	)
	if cfg.StateBackend == config.BackendPostgres {
		fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err = db.Connect(cfg.DSN())
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			pool.Close()
			fmt.Println("[DB] Connection pool closed")
		}()

		if err := db.TestConnection(pool); err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
			os.Exit(1)
		}
		if err := db.Migrate(context.Background(), pool); err != nil {
			fmt.Fprintf(os.Stderr, "[DB] Migration failed: %v\n", err)
			os.Exit(1)
		}

		tradeRepo := repository.NewTradeLogRepo(pool)
		store = repository.NewStateRepo(pool)
		trades = tradeRepo
		history = tradeRepo
	} else {
		fmt.Printf("\n[STATE] File backend: %s / %s\n", cfg.StatePath, cfg.TradesCSVPath)
		store = filestore.NewStateStore(cfg.StatePath)
		trades = filestore.NewTradeLog(cfg.TradesCSVPath)
	}

	// Chain access
	client, err := ethereum.NewClient(cfg.RPCURL, cfg.PrivateKey, int64(rt.ChainID), cfg.GasLimit, cfg.GasMultiplier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ETH] Client init failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	tokens, err := ethereum.NewTokens(client, time.Duration(cfg.ReceiptTimeoutSeconds)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ETH] Token binding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[ETH] Wallet: %s\n", tokens.Wallet().Hex())

	// Quotes + notifications
	quotes := zerox.NewClient(cfg.ZeroXAPIKey)
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	eng := engine.New(tokens.Wallet(), tokens, tokens, quotes, store, trades, notify)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	adminToken := cfg.AdminToken
	if adminToken == "" {
		adminToken = rt.AdminToken
	}
	srv := api.NewServer(pool, eng, cfgs, history, cfg.APIPort, adminToken, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Tick scheduler
	ticker := scheduler.NewTicker(eng, cfgs, time.Duration(rt.PollMinutes)*time.Minute)
	ticker.Start()

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	ticker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
