package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// ConfigError 配置错误（启动时检测到的不一致配置，致命）
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Config 监测服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 压力监测核心配置
	Monitoring struct {
		// 传感器网格尺寸（行 × 列）
		GridRows int
		GridCols int

		// 系统压力量程（所有阈值必须落在该范围内）
		MinPressure int
		MaxPressure int

		// PPI 计算参数
		NoiseThreshold int // 超过该值的单元视为"活跃"
		MinClusterSize int // 小于该尺寸的连通簇视为传感器噪声

		// 接触面积下限（cell > limit 计入接触面积）
		ContactLowerLimit int

		// 默认阈值（新患者首次访问时自动创建）
		DefaultLowThreshold  int
		DefaultHighThreshold int

		// 阈值校验边界（校验消息必须回显这些配置值）
		LowThresholdMin  int
		LowThresholdMax  int
		HighThresholdMin int
		HighThresholdMax int

		// 严重度 >= 该值视为 critical
		CriticalSeverity float64

		// 帧间隔（15帧/秒）
		FrameInterval time.Duration
	}

	// 冷却窗口配置
	Cooldown struct {
		Pressure  time.Duration // 普通压力报警
		Sustained time.Duration // 持续压力报警（更长）
		Equipment time.Duration // 设备故障（最长）
	}

	// Redis 缓存配置
	Cache struct {
		RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "graphenetrace:patient:"
		RealtimeSuffix    string // 实时数据缓存键后缀，如 ":realtime"
		AlertKeyPrefix    string // 报警缓存键前缀
		AlertSuffix       string // 报警缓存键后缀，如 ":alerts"
		RealtimeTTL       int    // 实时数据 TTL（秒）
		AlertTTL          int    // 报警数据 TTL（秒）
	}

	// 帧接入配置
	Ingest struct {
		FrameTopic  string // 设备帧主题（通配符），如 "graphenetrace/frames/+"
		NotifyTopic string // 通知发布主题前缀，如 "graphenetrace/notify/"
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置并校验
// 校验失败返回 *ConfigError：报警数学依赖这些边界，不允许带着
// 不一致的配置启动（宁可启动失败，不可静默替换默认值）。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "graphenetrace")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "graphene-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Monitoring.GridRows = getEnvInt("GRID_ROWS", 32)
	cfg.Monitoring.GridCols = getEnvInt("GRID_COLS", 32)
	cfg.Monitoring.MinPressure = getEnvInt("PRESSURE_MIN", 0)
	cfg.Monitoring.MaxPressure = getEnvInt("PRESSURE_MAX", 255)
	cfg.Monitoring.NoiseThreshold = getEnvInt("PPI_NOISE_THRESHOLD", 50)
	cfg.Monitoring.MinClusterSize = getEnvInt("PPI_MIN_CLUSTER_SIZE", 10)
	cfg.Monitoring.ContactLowerLimit = getEnvInt("CONTACT_LOWER_LIMIT", 0)
	cfg.Monitoring.DefaultLowThreshold = getEnvInt("THRESHOLD_DEFAULT_LOW", 60)
	cfg.Monitoring.DefaultHighThreshold = getEnvInt("THRESHOLD_DEFAULT_HIGH", 180)
	cfg.Monitoring.LowThresholdMin = getEnvInt("THRESHOLD_LOW_MIN", 1)
	cfg.Monitoring.LowThresholdMax = getEnvInt("THRESHOLD_LOW_MAX", 254)
	cfg.Monitoring.HighThresholdMin = getEnvInt("THRESHOLD_HIGH_MIN", 2)
	cfg.Monitoring.HighThresholdMax = getEnvInt("THRESHOLD_HIGH_MAX", 255)
	cfg.Monitoring.CriticalSeverity = 0.8
	// 15 帧/秒，所有时长统计必须统一使用该常量
	cfg.Monitoring.FrameInterval = time.Second / 15

	cfg.Cooldown.Pressure = getEnvDuration("COOLDOWN_PRESSURE", 30*time.Second)
	cfg.Cooldown.Sustained = getEnvDuration("COOLDOWN_SUSTAINED", time.Minute)
	cfg.Cooldown.Equipment = getEnvDuration("COOLDOWN_EQUIPMENT", 2*time.Minute)

	cfg.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "graphenetrace:patient:")
	cfg.Cache.RealtimeSuffix = ":realtime"
	cfg.Cache.AlertKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "graphenetrace:patient:")
	cfg.Cache.AlertSuffix = ":alerts"
	cfg.Cache.RealtimeTTL = getEnvInt("CACHE_REALTIME_TTL", 30)
	cfg.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 60)

	cfg.Ingest.FrameTopic = getEnv("INGEST_FRAME_TOPIC", "graphenetrace/frames/+")
	cfg.Ingest.NotifyTopic = getEnv("NOTIFY_TOPIC_PREFIX", "graphenetrace/notify/")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置一致性
func (c *Config) Validate() error {
	m := &c.Monitoring

	if m.GridRows <= 0 || m.GridCols <= 0 {
		return &ConfigError{Field: "grid", Reason: fmt.Sprintf("grid dimensions must be positive, got %dx%d", m.GridRows, m.GridCols)}
	}
	if m.MinPressure < 0 {
		return &ConfigError{Field: "pressure_min", Reason: fmt.Sprintf("must be >= 0, got %d", m.MinPressure)}
	}
	if m.MaxPressure <= m.MinPressure {
		return &ConfigError{Field: "pressure_max", Reason: fmt.Sprintf("must be > pressure_min (%d), got %d", m.MinPressure, m.MaxPressure)}
	}
	if m.LowThresholdMin < 1 || m.LowThresholdMin >= m.LowThresholdMax {
		return &ConfigError{Field: "threshold_low_bounds", Reason: fmt.Sprintf("require 1 <= min < max, got [%d,%d]", m.LowThresholdMin, m.LowThresholdMax)}
	}
	if m.HighThresholdMin >= m.HighThresholdMax {
		return &ConfigError{Field: "threshold_high_bounds", Reason: fmt.Sprintf("require min < max, got [%d,%d]", m.HighThresholdMin, m.HighThresholdMax)}
	}
	// 高阈值上限不得超过系统量程，否则 severity 归一化无意义
	if m.HighThresholdMax > m.MaxPressure {
		return &ConfigError{Field: "threshold_high_max", Reason: fmt.Sprintf("must be <= pressure_max (%d), got %d", m.MaxPressure, m.HighThresholdMax)}
	}
	if m.DefaultLowThreshold < m.LowThresholdMin || m.DefaultLowThreshold > m.LowThresholdMax {
		return &ConfigError{Field: "threshold_default_low", Reason: fmt.Sprintf("must be within [%d,%d], got %d", m.LowThresholdMin, m.LowThresholdMax, m.DefaultLowThreshold)}
	}
	if m.DefaultHighThreshold < m.HighThresholdMin || m.DefaultHighThreshold > m.HighThresholdMax {
		return &ConfigError{Field: "threshold_default_high", Reason: fmt.Sprintf("must be within [%d,%d], got %d", m.HighThresholdMin, m.HighThresholdMax, m.DefaultHighThreshold)}
	}
	if m.DefaultLowThreshold >= m.DefaultHighThreshold {
		return &ConfigError{Field: "threshold_defaults", Reason: fmt.Sprintf("low (%d) must be less than high (%d)", m.DefaultLowThreshold, m.DefaultHighThreshold)}
	}
	if m.NoiseThreshold < 0 || m.MinClusterSize < 1 {
		return &ConfigError{Field: "ppi", Reason: fmt.Sprintf("noise_threshold must be >= 0 and min_cluster_size >= 1, got %d/%d", m.NoiseThreshold, m.MinClusterSize)}
	}
	if m.FrameInterval <= 0 {
		return &ConfigError{Field: "frame_interval", Reason: "must be positive"}
	}
	if c.Cooldown.Pressure <= 0 || c.Cooldown.Sustained <= 0 || c.Cooldown.Equipment <= 0 {
		return &ConfigError{Field: "cooldown", Reason: "all cooldown windows must be positive"}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
