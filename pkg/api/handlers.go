package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"AShareSync/pkg/engine"
	"AShareSync/pkg/model"
)

// InfoProvider 个股信息查询能力
type InfoProvider interface {
	GetInfo(ctx context.Context, code string) (model.MergedStockInfo, error)
}

// HistoryStore 历史数据与代码表查询能力
type HistoryStore interface {
	Universe() ([]model.StockIdentity, error)
	HistoryRange(code string, start, end time.Time, limit int) ([]model.HistoricalBar, error)
}

// SyncRunner 同步触发能力
type SyncRunner interface {
	Run(ctx context.Context, universe []string, opts engine.Options) (*model.SyncSummary, error)
}

// Handlers API处理程序
type Handlers struct {
	info   InfoProvider
	store  HistoryStore
	syncer SyncRunner
}

// NewHandlers 创建新的API处理程序
func NewHandlers(info InfoProvider, store HistoryStore, syncer SyncRunner) *Handlers {
	return &Handlers{
		info:   info,
		store:  store,
		syncer: syncer,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查处理程序
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	if _, err := h.store.Universe(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// ListStocks 返回股票代码表
func (h *Handlers) ListStocks(c *gin.Context) {
	stocks, err := h.store.Universe()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "查询股票代码表失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  stocks,
		"count": len(stocks),
	})
}

// GetStockInfo 返回一只股票的合并信息
func (h *Handlers) GetStockInfo(c *gin.Context) {
	code := c.Param("code")
	if err := model.ValidateStockCode(code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	info, err := h.info.GetInfo(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "获取个股信息失败: " + err.Error(),
		})
		return
	}
	if !info.HasData() {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "没有该股票的有效数据",
			"code":  code,
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetStockHistory 返回一只股票的日线历史
// start/end 格式 2006-01-02，limit为0不限条数
func (h *Handlers) GetStockHistory(c *gin.Context) {
	code := c.Param("code")
	if err := model.ValidateStockCode(code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	var start, end time.Time
	if s := c.Query("start"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start日期格式错误"})
			return
		}
		start = t
	}
	if s := c.Query("end"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end日期格式错误"})
			return
		}
		end = t
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit参数错误"})
			return
		}
		limit = n
	}

	bars, err := h.store.HistoryRange(code, start, end, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "查询日线历史失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":  code,
		"data":  bars,
		"count": len(bars),
	})
}

// SyncRequest 触发同步请求
type SyncRequest struct {
	// Codes 指定股票，为空时同步代码表全部股票
	Codes []string `json:"codes"`
	// ForceFullSync 跳过新鲜度判断全量回填
	ForceFullSync bool `json:"force_full_sync"`
	// Limit 只处理前N只
	Limit int `json:"limit"`
}

// TriggerSync 触发一次同步并返回汇总
func (h *Handlers) TriggerSync(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "无效的请求参数: " + err.Error(),
			})
			return
		}
	}

	universe := req.Codes
	for _, code := range universe {
		if err := model.ValidateStockCode(code); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if len(universe) == 0 {
		stocks, err := h.store.Universe()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "查询股票代码表失败: " + err.Error(),
			})
			return
		}
		for _, s := range stocks {
			universe = append(universe, s.Code)
		}
	}

	summary, err := h.syncer.Run(c.Request.Context(), universe, engine.Options{
		ForceFullSync: req.ForceFullSync,
		Limit:         req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "同步运行失败: " + err.Error(),
			"summary": summary,
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
