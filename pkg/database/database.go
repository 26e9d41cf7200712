// Package database 存储层
//
// 默认使用内嵌SQLite，免部署单文件即可跑通全流程；
// 配置PostgreSQL DSN后切换到服务端数据库，表结构一致。
package database

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"AShareSync/pkg/model"
)

// 支持的数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// upsertBatchSize 单条SQL覆盖的最大行数，超过后分批提交
const upsertBatchSize = 500

// DB 数据库访问入口
type DB struct {
	db *gorm.DB
}

// Open 建立数据库连接并完成表结构迁移
// driver为空默认SQLite；SQLite下dsn为数据库文件路径
func Open(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "asharesync.db"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres驱动需要提供DSN")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	d := &DB{db: gdb}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	log.Printf("数据库就绪 driver=%s", driver)
	return d, nil
}

// migrate 迁移表结构
func (d *DB) migrate() error {
	err := d.db.AutoMigrate(
		&model.StockIdentity{},
		&model.HistoricalBar{},
		&model.StockInfoRecord{},
	)
	if err != nil {
		return fmt.Errorf("迁移表结构失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
