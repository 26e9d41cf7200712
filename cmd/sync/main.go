package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"AShareSync/pkg/config"
	"AShareSync/pkg/database"
	"AShareSync/pkg/engine"
	"AShareSync/pkg/messaging"
	"AShareSync/pkg/model"
	"AShareSync/pkg/planner"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
	"AShareSync/pkg/source"
)

func main() {
	var (
		allStocks       = flag.Bool("all-stocks", false, "同步代码表中的全部股票")
		stockCodes      = flag.String("stock-codes", "", "逗号分隔的股票代码列表")
		forceFullSync   = flag.Bool("force-full-sync", false, "跳过新鲜度判断, 全部按全量回填处理")
		maxThreads      = flag.Int("max-threads", 10, "抓取并发数")
		batchSize       = flag.Int("batch-size", 100, "每批落库的股票数")
		limit           = flag.Int("limit", 0, "只处理队列前N只股票, 0为不限")
		configPath      = flag.String("config", "", "配置文件路径")
		refreshUniverse = flag.Bool("refresh-universe", false, "先从列表接口刷新代码表")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	policy := retry.DefaultPolicy()

	if *refreshUniverse {
		fetcher := source.NewUniverseFetcher(cfg.DataSources.Eastmoney.BaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy)
		svc := engine.NewUniverseService(db, fetcher)
		if err := svc.Refresh(ctx); err != nil {
			log.Fatalf("刷新代码表失败: %v", err)
		}
	}

	universe, err := resolveUniverse(db, *allStocks, *stockCodes)
	if err != nil {
		log.Fatal(err)
	}

	klines := source.NewChainKlineSource(
		source.NewEastmoneyKlineAdapter(cfg.DataSources.Eastmoney.KlineBaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Eastmoney.Interval), policy),
		source.NewTencentKlineAdapter(cfg.DataSources.Tencent.BaseURL,
			ratelimit.NewFixedInterval(cfg.DataSources.Tencent.Interval), policy),
	)
	syncEngine := engine.NewSyncEngine(db, klines, planner.New())

	summary, runErr := syncEngine.Run(ctx, universe, engine.Options{
		Concurrency:   *maxThreads,
		BatchSize:     *batchSize,
		ForceFullSync: *forceFullSync,
		Limit:         *limit,
	})
	if runErr != nil && summary == nil {
		log.Fatalf("同步运行失败: %v", runErr)
	}

	publishSummary(cfg, summary)
	printSummary(summary)

	if runErr != nil {
		log.Printf("同步带错结束: %v", runErr)
		os.Exit(1)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// loadConfig 按 --config > CONFIG_PATH > 默认路径 的顺序定位配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return config.LoadOrDefault(path)
}

// resolveUniverse 确定本次同步的股票范围
func resolveUniverse(db *database.DB, allStocks bool, codesCSV string) ([]string, error) {
	if allStocks && codesCSV != "" {
		return nil, fmt.Errorf("--all-stocks 与 --stock-codes 只能二选一")
	}

	if codesCSV != "" {
		codes := strings.Split(codesCSV, ",")
		for i, c := range codes {
			codes[i] = strings.TrimSpace(c)
			if err := model.ValidateStockCode(codes[i]); err != nil {
				return nil, fmt.Errorf("股票代码 %q 非法: %w", c, err)
			}
		}
		return codes, nil
	}

	if !allStocks {
		return nil, fmt.Errorf("请指定 --all-stocks 或 --stock-codes")
	}

	stocks, err := db.Universe()
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("代码表为空, 请先带 --refresh-universe 运行")
	}
	codes := make([]string, 0, len(stocks))
	for _, s := range stocks {
		codes = append(codes, s.Code)
	}
	return codes, nil
}

// publishSummary 发布同步结果事件，NATS未配置时跳过
func publishSummary(cfg *config.Config, summary *model.SyncSummary) {
	if cfg.NATS.URL == "" || summary == nil {
		return
	}
	client, err := messaging.NewNATSClient(cfg.NATS.URL, cfg.NATS.ClientID+"-sync")
	if err != nil {
		log.Printf("连接NATS失败, 跳过事件发布: %v", err)
		return
	}
	defer client.Close()
	if err := client.PublishSummary(summary); err != nil {
		log.Printf("发布同步结果失败: %v", err)
	}
}

// printSummary 打印汇总表格
func printSummary(s *model.SyncSummary) {
	fmt.Println("==================== 同步汇总 ====================")
	fmt.Printf("运行ID:     %s\n", s.RunID)
	fmt.Printf("计划股票:   %d\n", s.Planned)
	fmt.Printf("全量回填:   %d\n", s.FullSynced)
	fmt.Printf("增量补齐:   %d\n", s.LatestOnly)
	fmt.Printf("已是最新:   %d\n", s.UpToDate)
	fmt.Printf("失败:       %d\n", s.Failed)
	fmt.Printf("写入行数:   %d\n", s.RowsStored)
	fmt.Printf("落库批次:   %d\n", s.FlushCount)
	fmt.Printf("耗时:       %s\n", s.Duration().Round(time.Millisecond))
	if len(s.FailedCodes) > 0 {
		fmt.Println("失败明细:")
		for code, reason := range s.FailedCodes {
			fmt.Printf("  %s: %s\n", code, reason)
		}
	}
	fmt.Println("==================================================")
}
