package engine

import (
	"context"
	"fmt"
	"log"

	"AShareSync/pkg/model"
	"AShareSync/pkg/source"
)

// UniverseStore 代码表的持久化能力
type UniverseStore interface {
	SaveUniverse(stocks []model.StockIdentity) error
	Universe() ([]model.StockIdentity, error)
}

// UniverseService 股票代码表服务
// 代码表来自列表接口的全量拉取，刷新是覆盖式的
type UniverseService struct {
	store   UniverseStore
	fetcher *source.UniverseFetcher
}

// NewUniverseService 创建代码表服务
func NewUniverseService(store UniverseStore, fetcher *source.UniverseFetcher) *UniverseService {
	return &UniverseService{store: store, fetcher: fetcher}
}

// Codes 返回库内代码表的全部股票代码
func (s *UniverseService) Codes() ([]string, error) {
	stocks, err := s.store.Universe()
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(stocks))
	for _, st := range stocks {
		codes = append(codes, st.Code)
	}
	return codes, nil
}

// Refresh 从列表接口全量拉取并覆盖写入代码表
func (s *UniverseService) Refresh(ctx context.Context) error {
	stocks, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("刷新代码表失败: %w", err)
	}
	if len(stocks) == 0 {
		return fmt.Errorf("列表接口返回空代码表, 不覆盖库内数据")
	}
	if err := s.store.SaveUniverse(stocks); err != nil {
		return err
	}
	log.Printf("代码表已刷新, 共 %d 只股票", len(stocks))
	return nil
}
