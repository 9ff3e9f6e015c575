package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"martingale-core/internal/api"
	"martingale-core/internal/engine"
	"martingale-core/internal/events"
	"martingale-core/internal/fees"
	"martingale-core/internal/gateway"
	"martingale-core/internal/history"
	"martingale-core/internal/monitor"
	"martingale-core/internal/oracle"
	"martingale-core/internal/store"
	"martingale-core/internal/strategy"
	"martingale-core/pkg/config"
	"martingale-core/pkg/db"
)

const buildVersion = "1.2.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config load failed: %v", err)
	}

	log.Println("🚀 Starting martingale-core...")
	log.Printf("📋 Config loaded. Port=%s store=%s db=%s", cfg.Port, cfg.StorePath, cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ Database init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("❌ Database migrations failed: %v", err)
	}
	log.Println("✅ Database ready")

	// Price oracle
	var prices oracle.Oracle
	if cfg.UseMockOracle {
		prices = oracle.NewMockOracle(0, 0, 0.005, time.Now().UnixNano())
		log.Println("🧪 Using mock price oracle (random walk)")
	} else {
		prices = oracle.NewClient(cfg.OracleBaseURL, cfg.QuoteSymbol, cfg.OracleRateLimit)
		log.Printf("📡 Price oracle: %s (quote=%s)", cfg.OracleBaseURL, cfg.QuoteSymbol)
	}

	// Fee schedule: file wins, env defaults otherwise
	schedule := fees.Schedule{Percent: cfg.FeePercent, Min: cfg.FeeMin, Max: cfg.FeeMax}
	if cfg.FeeSchedulePath != "" {
		loaded, err := fees.LoadSchedule(cfg.FeeSchedulePath)
		if err != nil {
			log.Printf("⚠️ Fee schedule %s unreadable (%v), using env defaults", cfg.FeeSchedulePath, err)
		} else {
			schedule = loaded
			log.Printf("💰 Fee schedule loaded: %.2f%% (min=%.4f max=%.4f)", schedule.Percent, schedule.Min, schedule.Max)
		}
	}
	ledger := fees.NewLedger(schedule, database)

	// Execution gateways. Live routing needs an exchange executor wired in;
	// until one is configured every strategy fills through the simulator.
	simGw := gateway.NewSimulated(ledger, prices, cfg.SimSlippageBps)
	var liveGw gateway.Gateway
	if cfg.LiveExecution {
		log.Println("⚠️ LIVE_EXECUTION set but no exchange executor configured; falling back to simulated fills")
	}
	selector := func(c strategy.Config) gateway.Gateway {
		if cfg.LiveExecution && c.LiveExecution && liveGw != nil {
			return liveGw
		}
		return simGw
	}

	// Engine + monitoring
	scheduler := monitor.NewScheduler(cfg.TickInterval)
	eng := engine.New(ctx, engine.Options{
		Gateways:   selector,
		Oracle:     prices,
		Scheduler:  scheduler,
		Bus:        bus,
		MinExitAge: cfg.MinExitAge,
	})

	// Rehydrate strategies and restart monitors for active ones
	strategyStore := store.New(cfg.StorePath)
	col, err := strategyStore.Load()
	if err != nil {
		log.Fatalf("❌ Strategy store load failed: %v", err)
	}
	eng.Restore(col)
	log.Printf("📦 Restored %d strategies, monitoring %d", eng.Stats(ctx).Total, scheduler.Count())

	writer := store.NewWriter(strategyStore, eng.Snapshot, cfg.SaveDebounce)
	eng.SetWriter(writer)

	// Trade/lifecycle history into sqlite, fire-and-forget off the bus
	recorder := history.NewRecorder(database, cfg.HistoryBuffer, cfg.HistoryFlush)
	unbridge := history.Bridge(bus, recorder)

	// API
	server := api.NewServer(bus, database, eng, api.SystemMeta{
		LiveExecution: cfg.LiveExecution,
		UseMockOracle: cfg.UseMockOracle,
		QuoteSymbol:   cfg.QuoteSymbol,
		Version:       buildVersion,
	}, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("❌ API server error: %v", err)
		}
	}()
	log.Printf("🌐 API listening on :%s", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("🛑 Shutting down...")

	eng.Shutdown()
	cancel()
	writer.Close()
	unbridge()
	recorder.Close()
	log.Println("👋 Shutdown complete")
}
