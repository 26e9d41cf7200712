package main

import (
	"log"
	"os"

	"AShareSync/pkg/api"
	"AShareSync/pkg/cache"
	"AShareSync/pkg/config"
	"AShareSync/pkg/database"
	"AShareSync/pkg/engine"
	"AShareSync/pkg/messaging"
	"AShareSync/pkg/planner"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/reconcile"
	"AShareSync/pkg/retry"
	"AShareSync/pkg/source"
)

func main() {
	log.Println("启动API服务...")

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

	// 两级缓存: 内存 + 文件，文件缓存建不起来就只用内存
	var infoCache cache.Cache = cache.NewMemory()
	if fc, err := cache.NewFile(cfg.Sync.CacheDir); err == nil {
		infoCache = cache.NewTiered(cache.NewMemory(), fc)
	} else {
		log.Printf("文件缓存不可用, 仅用内存缓存: %v", err)
	}

	// 信息源: 东方财富为主, 雪球为次
	em := source.NewEastmoneyAdapter(cfg.DataSources.Eastmoney.BaseURL,
		ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy)
	xq := source.NewXueqiuAdapter(cfg.DataSources.Xueqiu.BaseURL,
		ratelimit.NewAdaptive(cfg.DataSources.Xueqiu.BaseInterval), policy)

	reconciler, err := reconcile.New(
		[]string{em.ID(), xq.ID()},
		reconcile.DefaultRules(em.ID(), xq.ID()),
	)
	if err != nil {
		log.Fatalf("构造合并器失败: %v", err)
	}

	// NATS可选, 未配置时信息更新事件不发布
	var publisher engine.InfoPublisher
	if cfg.NATS.URL != "" {
		client, err := messaging.NewNATSClient(cfg.NATS.URL, cfg.NATS.ClientID+"-api")
		if err != nil {
			log.Printf("连接NATS失败, 事件发布关闭: %v", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	infoService := engine.NewInfoService(infoCache, cfg.Sync.InfoTTL,
		[]source.InfoAdapter{em, xq}, reconciler, db, publisher)

	klines := source.NewChainKlineSource(
		source.NewEastmoneyKlineAdapter(cfg.DataSources.Eastmoney.KlineBaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy),
		source.NewTencentKlineAdapter(cfg.DataSources.Tencent.BaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Tencent.Interval), policy),
	)
	syncEngine := engine.NewSyncEngine(db, klines, planner.New())

	handlers := api.NewHandlers(infoService, db, syncEngine)
	server := api.NewServer(cfg.API.Port, cfg.API.ReadTimeout, cfg.API.WriteTimeout)
	server.SetupRoutes(handlers)
	server.Start()
}
