package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"AShareSync/pkg/config"
	"AShareSync/pkg/database"
	"AShareSync/pkg/engine"
	"AShareSync/pkg/planner"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/reconcile"
	"AShareSync/pkg/retry"
	"AShareSync/pkg/source"
)

// 系统验证脚本: 用一只真实股票走通 信息抓取->合并->日线同步->落库->查询 全链路
// 需要外网访问行情接口
func main() {
	log.Println("开始系统验证...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/dev/app.yaml"
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 验证用临时数据库, 不碰正式数据
	dbPath := filepath.Join(os.TempDir(), "asharesync_verify.db")
	defer os.Remove(dbPath)
	db, err := database.Open(database.DriverSQLite, dbPath)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	defer db.Close()
	log.Println("✓ 数据库连接与迁移")

	const code = "600000"
	policy := retry.DefaultPolicy()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	// 信息抓取与合并
	em := source.NewEastmoneyAdapter(cfg.DataSources.Eastmoney.BaseURL,
		ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy)
	xq := source.NewXueqiuAdapter(cfg.DataSources.Xueqiu.BaseURL,
		ratelimit.NewAdaptive(cfg.DataSources.Xueqiu.BaseInterval), policy)
	reconciler, err := reconcile.New([]string{em.ID(), xq.ID()}, reconcile.DefaultRules(em.ID(), xq.ID()))
	if err != nil {
		log.Fatalf("构造合并器失败: %v", err)
	}

	infoService := engine.NewInfoService(nil, 0, []source.InfoAdapter{em, xq}, reconciler, db, nil)
	info, err := infoService.GetInfo(ctx, code)
	if err != nil {
		log.Fatalf("信息抓取失败: %v", err)
	}
	if !info.HasData() {
		log.Fatalf("信息合并无有效数据: %s", info.Error)
	}
	log.Printf("✓ 信息抓取与合并 (%d 个字段, 源状态 %v)", len(info.Data), info.SourceStatus)

	// 日线同步全流程
	klines := source.NewChainKlineSource(
		source.NewEastmoneyKlineAdapter(cfg.DataSources.Eastmoney.KlineBaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy),
		source.NewTencentKlineAdapter(cfg.DataSources.Tencent.BaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Tencent.Interval), policy),
	)
	syncEngine := engine.NewSyncEngine(db, klines, planner.New())

	summary, err := syncEngine.Run(ctx, []string{code}, engine.Options{Concurrency: 1, BatchSize: 10})
	if err != nil {
		log.Fatalf("同步运行失败: %v", err)
	}
	if summary.Failed > 0 {
		log.Fatalf("同步存在失败股票: %v", summary.FailedCodes)
	}
	log.Printf("✓ 日线同步 (写入 %d 行)", summary.RowsStored)

	// 落库后应能按新鲜度跳过
	again, err := syncEngine.Run(ctx, []string{code}, engine.Options{Concurrency: 1, BatchSize: 10})
	if err != nil {
		log.Fatalf("二次同步失败: %v", err)
	}
	if again.UpToDate != 1 {
		log.Fatalf("二次同步应判定为已是最新: %+v", again)
	}
	log.Println("✓ 新鲜度规划 (重跑跳过)")

	bars, err := db.HistoryRange(code, time.Time{}, time.Time{}, 5)
	if err != nil || len(bars) == 0 {
		log.Fatalf("查询落库数据失败: %v", err)
	}
	log.Printf("✓ 历史数据查询 (%s 最早 %s)", code, bars[0].Date.Format("2006-01-02"))

	log.Println("系统验证通过")
}
