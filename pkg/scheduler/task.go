package scheduler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"AShareSync/pkg/engine"
)

// UniverseProvider 代码表查询与刷新能力
type UniverseProvider interface {
	Codes() ([]string, error)
	Refresh(ctx context.Context) error
}

// Scheduler 定时同步调度器
// 工作日收盘后整库增量同步，可选周期性刷新代码表
type Scheduler struct {
	cron     *cron.Cron
	engine   *engine.SyncEngine
	universe UniverseProvider

	// syncSpec 同步任务的cron表达式（带秒字段）
	syncSpec string
	// refreshSpec 代码表刷新周期，空串关闭
	refreshSpec string
}

// NewScheduler 创建任务调度器
func NewScheduler(e *engine.SyncEngine, universe UniverseProvider, syncSpec, refreshSpec string) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		engine:      e,
		universe:    universe,
		syncSpec:    syncSpec,
		refreshSpec: refreshSpec,
	}
}

// Start 注册任务并启动调度器
func (s *Scheduler) Start() error {
	// 工作日收盘后增量同步
	if _, err := s.cron.AddFunc(s.syncSpec, s.runSync); err != nil {
		return err
	}

	if s.refreshSpec != "" {
		if _, err := s.cron.AddFunc(s.refreshSpec, s.refreshUniverse); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Printf("调度器已启动 同步=%q 代码表刷新=%q", s.syncSpec, s.refreshSpec)
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// runSync 执行一次定时同步
func (s *Scheduler) runSync() {
	codes, err := s.universe.Codes()
	if err != nil {
		log.Printf("定时同步取消, 查询代码表失败: %v", err)
		return
	}
	if len(codes) == 0 {
		log.Println("定时同步取消, 代码表为空, 请先刷新代码表")
		return
	}

	summary, err := s.engine.Run(context.Background(), codes, engine.Options{})
	if err != nil {
		log.Printf("定时同步带错结束: %v", err)
		return
	}
	log.Printf("定时同步完成 run_id=%s 失败=%d", summary.RunID, summary.Failed)
}

// refreshUniverse 刷新股票代码表
func (s *Scheduler) refreshUniverse() {
	if err := s.universe.Refresh(context.Background()); err != nil {
		log.Printf("刷新代码表失败: %v", err)
	}
}
