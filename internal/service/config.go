// internal/service/config.go
package service

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig 定义了 HTTP / WebSocket 服务的监听信息
type ServerConfig struct {
	Port       int
	WSPath     string // WebSocket 升级路径，例如 /ws/ticker
	CORSOrigin string // 开发期前端来源
}

// AuthConfig 定义了鉴权相关参数
type AuthConfig struct {
	BearerToken string        // 共享密钥，演示用
	JWTSecret   string        // JWT 签名密钥
	JWTExpires  time.Duration // JWT 有效期
	NonceTTL    time.Duration // 钱包登录 Nonce 有效期
}

// MarketConfig 定义了行情模拟的节奏参数
type MarketConfig struct {
	TickInterval  time.Duration // 内部模拟 Tick 周期
	FlushInterval time.Duration // 面向客户端的批量广播周期
	HistoryMax    int           // 每个资产的历史环形缓冲容量
	PendingBuffer int           // 待广播 Tick 缓冲区大小
}

// OrderConfig 定义了订单管线参数
type OrderConfig struct {
	FillDelay    time.Duration // 模拟成交延迟
	MaxEntries   int           // 内存订单列表上限，超出后从头部裁剪
	QueryLimit   int           // GET /orders 默认返回条数
	FeedbackTick bool          // 成交后是否回灌一笔 Tick 到资产注册表
}

// WSConfig 定义了 WebSocket 客户端注册表参数
type WSConfig struct {
	MaxClients int // 同时在线客户端上限
}

type Config struct {
	Server ServerConfig `mapstructure:"Server"`
	Auth   AuthConfig   `mapstructure:"Auth"`
	Market MarketConfig `mapstructure:"Market"`
	Order  OrderConfig  `mapstructure:"Order"`
	WS     WSConfig     `mapstructure:"WS"`
}

// GlobalConfig 存储加载后的全局配置
var GlobalConfig Config

// LoadConfig 读取并解析配置文件，缺省值保证没有配置文件也能启动
func LoadConfig(configPath string) *Config {
	// 设置配置文件的名称、类型和路径
	viper.SetConfigName("config") // 文件名是 config
	viper.SetConfigType("yaml")   // 文件类型是 yaml
	viper.AddConfigPath(configPath)

	// 所有参数都有缺省值，配置文件只需要覆盖关心的项
	viper.SetDefault("Server.Port", 4000)
	viper.SetDefault("Server.WSPath", "/ws/ticker")
	viper.SetDefault("Server.CORSOrigin", "http://localhost:5173")
	viper.SetDefault("Auth.BearerToken", "demo")
	viper.SetDefault("Auth.JWTSecret", "change-me-in-prod")
	viper.SetDefault("Auth.JWTExpires", "1h")
	viper.SetDefault("Auth.NonceTTL", "5m")
	viper.SetDefault("Market.TickInterval", "100ms")
	viper.SetDefault("Market.FlushInterval", "150ms")
	viper.SetDefault("Market.HistoryMax", 600)
	viper.SetDefault("Market.PendingBuffer", 2048)
	viper.SetDefault("Order.FillDelay", "1500ms")
	viper.SetDefault("Order.MaxEntries", 10000)
	viper.SetDefault("Order.QueryLimit", 200)
	viper.SetDefault("Order.FeedbackTick", true)
	viper.SetDefault("WS.MaxClients", 1024)

	// 查找并读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Config file not found, using defaults: %s", err)
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	// 将配置绑定到结构体
	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode config into struct: %s", err)
	}

	return &GlobalConfig
}
