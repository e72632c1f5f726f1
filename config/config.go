package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// SyncTuning holds the timing knobs of the follower reconciliation and the
// mixer click classifier. The defaults mirror the behaviour the product shipped
// with; they are deliberate simplifications, so they stay configurable.
type SyncTuning struct {
	FollowerDebounceMs int     // minimum gap between two applied session snapshots
	SeekToleranceSec   float64 // seek deltas below this are treated as noise
	ClickWindowMs      int     // double-click window of the mute/solo tap target
	ProgressTickMs     int     // transport progress polling period
}

// Config stores the application configuration.
type Config struct {
	ListenAddr string

	// 设备标识，会话同步协议中的写者身份
	DeviceID      string
	DefaultUserID int64

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// 同步调参，支持热加载
	mu     sync.RWMutex
	tuning SyncTuning
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// loadTuning 从环境变量读取同步调参
func loadTuning() SyncTuning {
	return SyncTuning{
		FollowerDebounceMs: getEnvInt("FOLLOWER_DEBOUNCE_MS", 100),
		SeekToleranceSec:   getEnvFloat("SEEK_TOLERANCE_SEC", 0.1),
		ClickWindowMs:      getEnvInt("CLICK_WINDOW_MS", 300),
		ProgressTickMs:     getEnvInt("PROGRESS_TICK_MS", 50),
	}
}

var (
	loadOnce sync.Once
	loaded   *Config
)

// Load loads configuration from environment variables (via .env file) or defaults.
// 全局单例：调参热加载改写的是这份实例，所有调用方都要看到同一份。
func Load() *Config {
	loadOnce.Do(func() {
		loaded = load()
	})
	return loaded
}

func load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DeviceID:      getEnv("DEVICE_ID", ""),
		DefaultUserID: getEnvInt64("DEFAULT_USER_ID", 1),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "stemfm"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// MinIO配置
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "stemfm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		tuning: loadTuning(),
	}
}

// Tuning 返回当前同步调参快照
func (c *Config) Tuning() SyncTuning {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tuning
}

// reloadTuning 重新读取 .env 并刷新同步调参
func (c *Config) reloadTuning() {
	// Override=true：热加载时 .env 的值应当生效
	if err := godotenv.Overload(); err != nil {
		return
	}
	c.mu.Lock()
	c.tuning = loadTuning()
	c.mu.Unlock()
}
