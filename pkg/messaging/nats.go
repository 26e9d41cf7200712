// Package messaging 同步事件发布
//
// 同步结果和信息快照更新通过NATS JetStream对外广播，下游（通知、报表）
// 自行消费。发布失败只记日志，数据正确性由幂等落库保证，不依赖消息送达。
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"AShareSync/pkg/model"
)

// 发布主题
const (
	SubjectSyncSummary = "sync.summary"
	subjectStockInfo   = "stocks.info.%s"
)

// NATSClient NATS JetStream发布客户端
type NATSClient struct {
	conn      *nats.Conn
	jetStream jetstream.JetStream
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewNATSClient 创建NATS客户端并确保所需Stream存在
func NewNATSClient(natsURL, clientName string) (*NATSClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(clientName),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // 无限重连
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS连接断开: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Println("NATS重新连接成功")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("创建JetStream失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &NATSClient{
		conn:      nc,
		jetStream: js,
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := client.setupStreams(); err != nil {
		log.Printf("警告: 设置Streams失败: %v", err)
	}
	return client, nil
}

// setupStreams 设置发布所需的Streams
func (c *NATSClient) setupStreams() error {
	streams := []jetstream.StreamConfig{
		{
			Name:        "SYNC_STREAM",
			Subjects:    []string{"sync.*"},
			Description: "同步运行结果流",
			Retention:   jetstream.LimitsPolicy,
			MaxMsgs:     10000,
			MaxBytes:    50 * 1024 * 1024,    // 50MB
			MaxAge:      30 * 24 * time.Hour, // 保留30天
		},
		{
			Name:        "STOCKS_STREAM",
			Subjects:    []string{"stocks.>"},
			Description: "个股信息更新流",
			Retention:   jetstream.LimitsPolicy,
			MaxMsgs:     100000,
			MaxBytes:    100 * 1024 * 1024, // 100MB
			MaxAge:      7 * 24 * time.Hour,
		},
	}

	for _, streamConfig := range streams {
		if _, err := c.jetStream.CreateOrUpdateStream(c.ctx, streamConfig); err != nil {
			log.Printf("创建/更新Stream %s 失败: %v", streamConfig.Name, err)
		}
	}
	return nil
}

// PublishSummary 发布一次同步运行的汇总结果
func (c *NATSClient) PublishSummary(summary *model.SyncSummary) error {
	return c.publish(SubjectSyncSummary, summary)
}

// PublishStockInfo 发布个股信息快照更新事件
func (c *NATSClient) PublishStockInfo(info model.MergedStockInfo) error {
	return c.publish(fmt.Sprintf(subjectStockInfo, info.StockCode), info)
}

// publish 序列化并发布到指定主题
func (c *NATSClient) publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if _, err := c.jetStream.Publish(c.ctx, subject, payload); err != nil {
		return fmt.Errorf("发布消息到 %s 失败: %w", subject, err)
	}
	log.Printf("发布消息到主题: %s, 数据大小: %d bytes", subject, len(payload))
	return nil
}

// IsConnected 检查连接状态
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close 关闭连接
func (c *NATSClient) Close() error {
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
	log.Println("NATS连接已关闭")
	return nil
}
