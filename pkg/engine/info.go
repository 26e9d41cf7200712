package engine

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"AShareSync/pkg/cache"
	"AShareSync/pkg/model"
	"AShareSync/pkg/reconcile"
	"AShareSync/pkg/source"
)

// InfoStorage 个股信息快照的持久化能力
type InfoStorage interface {
	SaveStockInfo(info model.MergedStockInfo) error
}

// InfoPublisher 个股信息更新事件的发布能力
// 发布失败不影响主流程
type InfoPublisher interface {
	PublishStockInfo(info model.MergedStockInfo) error
}

// defaultInfoTTL 个股信息缓存时长
const defaultInfoTTL = time.Hour

// InfoService 个股信息聚合服务
// 缓存未命中时并发抓取各数据源，按优先级规则合并后回填缓存
type InfoService struct {
	cache      cache.Cache
	ttl        time.Duration
	adapters   []source.InfoAdapter
	reconciler *reconcile.Reconciler
	storage    InfoStorage
	publisher  InfoPublisher
}

// NewInfoService 创建个股信息服务
// storage与publisher可为nil，对应能力关闭
func NewInfoService(c cache.Cache, ttl time.Duration, adapters []source.InfoAdapter,
	r *reconcile.Reconciler, storage InfoStorage, publisher InfoPublisher) *InfoService {
	if ttl <= 0 {
		ttl = defaultInfoTTL
	}
	return &InfoService{
		cache:      c,
		ttl:        ttl,
		adapters:   adapters,
		reconciler: r,
		storage:    storage,
		publisher:  publisher,
	}
}

// GetInfo 返回一只股票的合并信息
//
// 命中缓存直接返回；未命中时各源并发抓取一次，合并结果无论好坏都返回，
// 只有含有效数据的结果才写缓存和库，避免把失败固化一小时。
func (s *InfoService) GetInfo(ctx context.Context, code string) (model.MergedStockInfo, error) {
	if err := model.ValidateStockCode(code); err != nil {
		return model.MergedStockInfo{}, err
	}

	key := cache.Key("stock_info", map[string]string{"code": code})
	if s.cache != nil {
		if raw, ok := s.cache.Get(key, s.ttl); ok {
			var info model.MergedStockInfo
			if err := json.Unmarshal(raw, &info); err == nil {
				return info, nil
			}
			// 缓存内容损坏按未命中处理，重新抓取后覆盖
		}
	}

	results := s.fetchAll(ctx, code)
	info := s.reconciler.Merge(code, results)

	if info.HasData() {
		if raw, err := json.Marshal(info); err == nil && s.cache != nil {
			s.cache.Set(key, raw)
		}
		if s.storage != nil {
			if err := s.storage.SaveStockInfo(info); err != nil {
				log.Printf("保存 %s 信息快照失败: %v", code, err)
			}
		}
		if s.publisher != nil {
			if err := s.publisher.PublishStockInfo(info); err != nil {
				log.Printf("发布 %s 信息更新事件失败: %v", code, err)
			}
		}
	}
	return info, nil
}

// fetchAll 并发抓取全部数据源
// 单源失败只记录日志，合并阶段决定整体结果
func (s *InfoService) fetchAll(ctx context.Context, code string) map[string]model.FetchOutcome {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]model.FetchOutcome, len(s.adapters))
	)
	for _, a := range s.adapters {
		wg.Add(1)
		go func(a source.InfoAdapter) {
			defer wg.Done()
			out := a.FetchInfo(ctx, code)
			if out.Status == model.OutcomeFailure {
				log.Printf("数据源 %s 抓取 %s 失败: %v", a.ID(), code, out.Err)
			}
			mu.Lock()
			results[a.ID()] = out
			mu.Unlock()
		}(a)
	}
	wg.Wait()
	return results
}
