package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	DataSources struct {
		Eastmoney struct {
			BaseURL      string        `yaml:"base_url"`
			KlineBaseURL string        `yaml:"kline_base_url"`
			Interval     time.Duration `yaml:"interval"`
		} `yaml:"eastmoney"`
		Xueqiu struct {
			BaseURL      string        `yaml:"base_url"`
			BaseInterval time.Duration `yaml:"base_interval"`
		} `yaml:"xueqiu"`
		Tencent struct {
			BaseURL  string        `yaml:"base_url"`
			Interval time.Duration `yaml:"interval"`
		} `yaml:"tencent"`
	} `yaml:"data_sources"`

	Sync struct {
		MaxThreads int           `yaml:"max_threads"`
		BatchSize  int           `yaml:"batch_size"`
		CacheDir   string        `yaml:"cache_dir"`
		InfoTTL    time.Duration `yaml:"info_ttl"`
	} `yaml:"sync"`

	Database struct {
		Driver string `yaml:"driver"`
		// DSN SQLite下为数据库文件路径，PostgreSQL下为连接串
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	NATS struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"nats"`

	API struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"api"`

	Scheduler struct {
		// SyncSpec 工作日定时同步的cron表达式
		SyncSpec string `yaml:"sync_spec"`
		// UniverseRefresh 代码表刷新周期，如 @every 24h，留空关闭
		UniverseRefresh string `yaml:"universe_refresh"`
	} `yaml:"scheduler"`
}

// Default 返回不依赖配置文件的缺省配置
func Default() *Config {
	var config Config
	config.App.Name = "asharesync"
	config.App.Env = "dev"
	config.Sync.MaxThreads = 10
	config.Sync.BatchSize = 100
	config.Sync.InfoTTL = time.Hour
	config.Database.Driver = "sqlite"
	config.Database.DSN = "asharesync.db"
	config.API.Port = "8080"
	config.API.ReadTimeout = 10 * time.Second
	config.API.WriteTimeout = 30 * time.Second
	config.Scheduler.SyncSpec = "0 30 17 * * 1-5"
	return &config
}

// LoadConfig 从文件加载配置
// 文件中未出现的字段保留缺省值，环境变量优先级最高
func LoadConfig(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	overrideFromEnv(config)
	return config, nil
}

// LoadOrDefault 配置文件存在则加载，否则用缺省配置
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		overrideFromEnv(config)
		return config, nil
	}
	return LoadConfig(path)
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// 数据源地址，联调时指向本地mock
	if env := os.Getenv("EASTMONEY_BASE_URL"); env != "" {
		config.DataSources.Eastmoney.BaseURL = env
	}
	if env := os.Getenv("EASTMONEY_KLINE_BASE_URL"); env != "" {
		config.DataSources.Eastmoney.KlineBaseURL = env
	}
	if env := os.Getenv("XUEQIU_BASE_URL"); env != "" {
		config.DataSources.Xueqiu.BaseURL = env
	}
	if env := os.Getenv("TENCENT_BASE_URL"); env != "" {
		config.DataSources.Tencent.BaseURL = env
	}

	// 数据库配置
	if env := os.Getenv("DB_DRIVER"); env != "" {
		config.Database.Driver = env
	}
	if env := os.Getenv("DB_DSN"); env != "" {
		config.Database.DSN = env
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("configs/%s/app.yaml", env)
}
