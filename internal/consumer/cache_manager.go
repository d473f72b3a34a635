package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
)

// 报警缓存保留的最近条数
const maxCachedAlerts = 20

// CacheManager 患者实时数据与近期报警的 Redis 缓存管理器
type CacheManager struct {
	config *config.Config
	kv     KVStore
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(cfg *config.Config, kv KVStore, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

// PublishSnapshot 写入患者最新指标快照（带 TTL，设备停止上报后自动过期）
func (c *CacheManager) PublishSnapshot(ctx context.Context, snapshot *models.RealtimeSnapshot) error {
	key := c.realtimeKey(snapshot.PatientID)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal realtime snapshot: %w", err)
	}

	ttl := time.Duration(c.config.Cache.RealtimeTTL) * time.Second
	if err := c.kv.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("set realtime cache: %w", err)
	}

	c.logger.Debug("realtime snapshot cached",
		zap.String("patient_id", snapshot.PatientID),
		zap.String("key", key))

	return nil
}

// GetSnapshot 读取患者最新指标快照
// 缓存不存在或已过期返回 models.ErrCacheMiss。
func (c *CacheManager) GetSnapshot(ctx context.Context, patientID string) (*models.RealtimeSnapshot, error) {
	val, err := c.kv.Get(ctx, c.realtimeKey(patientID))
	if err != nil {
		if err == models.ErrCacheMiss {
			return nil, models.ErrCacheMiss
		}
		return nil, fmt.Errorf("get realtime cache: %w", err)
	}

	var snapshot models.RealtimeSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal realtime snapshot: %w", err)
	}

	return &snapshot, nil
}

// AppendAlert 把评估结果追加进患者的近期报警缓存（只保留最近 N 条）
func (c *CacheManager) AppendAlert(ctx context.Context, eval *models.AlertEvaluation) error {
	alerts, err := c.GetRecentAlerts(ctx, eval.PatientID)
	if err != nil && err != models.ErrCacheMiss {
		return err
	}

	alerts = append(alerts, *eval)
	if len(alerts) > maxCachedAlerts {
		alerts = alerts[len(alerts)-maxCachedAlerts:]
	}

	data, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("marshal alert cache: %w", err)
	}

	ttl := time.Duration(c.config.Cache.AlertTTL) * time.Second
	if err := c.kv.Set(ctx, c.alertKey(eval.PatientID), string(data), ttl); err != nil {
		return fmt.Errorf("set alert cache: %w", err)
	}

	return nil
}

// GetRecentAlerts 读取患者近期报警
func (c *CacheManager) GetRecentAlerts(ctx context.Context, patientID string) ([]models.AlertEvaluation, error) {
	val, err := c.kv.Get(ctx, c.alertKey(patientID))
	if err != nil {
		if err == models.ErrCacheMiss {
			return nil, models.ErrCacheMiss
		}
		return nil, fmt.Errorf("get alert cache: %w", err)
	}

	var alerts []models.AlertEvaluation
	if err := json.Unmarshal([]byte(val), &alerts); err != nil {
		return nil, fmt.Errorf("unmarshal alert cache: %w", err)
	}

	return alerts, nil
}

func (c *CacheManager) realtimeKey(patientID string) string {
	return c.config.Cache.RealtimeKeyPrefix + patientID + c.config.Cache.RealtimeSuffix
}

func (c *CacheManager) alertKey(patientID string) string {
	return c.config.Cache.AlertKeyPrefix + patientID + c.config.Cache.AlertSuffix
}
