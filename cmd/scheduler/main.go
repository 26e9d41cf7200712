package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"AShareSync/pkg/config"
	"AShareSync/pkg/database"
	"AShareSync/pkg/engine"
	"AShareSync/pkg/planner"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
	"AShareSync/pkg/scheduler"
	"AShareSync/pkg/source"
)

func main() {
	log.Println("启动定时同步服务...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	defer db.Close()

	policy := retry.DefaultPolicy()

	klines := source.NewChainKlineSource(
		source.NewEastmoneyKlineAdapter(cfg.DataSources.Eastmoney.KlineBaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy),
		source.NewTencentKlineAdapter(cfg.DataSources.Tencent.BaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Tencent.Interval), policy),
	)
	syncEngine := engine.NewSyncEngine(db, klines, planner.New())

	fetcher := source.NewUniverseFetcher(cfg.DataSources.Eastmoney.BaseURL,
		ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy)
	universe := engine.NewUniverseService(db, fetcher)

	sched := scheduler.NewScheduler(syncEngine, universe,
		cfg.Scheduler.SyncSpec, cfg.Scheduler.UniverseRefresh)
	if err := sched.Start(); err != nil {
		log.Fatalf("启动调度器失败: %v", err)
	}
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("定时同步服务退出")
}
