// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// Config 存储应用配置
type Config struct {
	Port    string
	DataDir string
	BlobDir string
	LogDir  string

	DebugMode bool

	// 认证
	AuthSecret      string
	TokenExpiration time.Duration
	// 身份删除要求的会话新鲜度窗口
	AuthFreshness time.Duration

	// 是否监视数据目录的外部写入
	WatchDataDir bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		DataDir:         getEnvPath("DATA_DIR", "data"),
		BlobDir:         getEnvPath("BLOB_DIR", "data/blobs"),
		LogDir:          getEnvPath("LOG_DIR", "logs"),
		DebugMode:       getEnvBool("DEBUG_MODE", true),
		AuthSecret:      getEnv("AUTH_SECRET_KEY", ""),
		TokenExpiration: time.Duration(getEnvInt("TOKEN_EXPIRATION_HOURS", 24)) * time.Hour,
		AuthFreshness:   time.Duration(getEnvInt("AUTH_FRESHNESS_MINUTES", 5)) * time.Minute,
		WatchDataDir:    getEnvBool("WATCH_DATA_DIR", true),
	}

	if config.AuthSecret == "" {
		// 只记录警告，不返回错误；生产环境应通过环境变量设置
		log.Println("警告: 未设置 AUTH_SECRET_KEY，将在启动时生成随机密钥，重启后已签发的令牌失效")
	}

	configMutex.Lock()
	currentConfig = config
	configMutex.Unlock()

	return config, nil
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *Config {
	configMutex.RLock()
	cfg := currentConfig
	configMutex.RUnlock()

	if cfg == nil {
		// 紧急情况，按默认值重新加载
		loaded, _ := Load()
		return loaded
	}

	configCopy := *cfg
	return &configCopy
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("警告: 环境变量 %s 不是有效整数: %s", key, value)
		return defaultValue
	}
	return parsed
}
