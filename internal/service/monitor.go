package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/consumer"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/evaluator"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/metrics"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/notifier"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/parser"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/platform"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/repository"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/settings"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/trends"
)

// MonitorService 压力监测服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *platform.MQTTClient
	logger      *zap.Logger

	// 各层组件
	settingsRepo  *repository.SettingsRepository
	sessionRepo   *repository.SessionRepository
	careTeamRepo  *repository.CareTeamRepository
	devicesRepo   *repository.DevicesRepository
	resolver      *settings.Resolver
	evaluator     *evaluator.Evaluator
	dispatcher    *notifier.Dispatcher
	cacheManager  *consumer.CacheManager
	frameConsumer *consumer.FrameConsumer
	reporter      *trends.Reporter
}

// NewMonitorService 创建监测服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := platform.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := platform.NewRedisClient(&cfg.Redis)
	if err := platform.PingRedis(context.Background(), redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := platform.NewMQTTClient(&cfg.MQTT, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}

	// 4. Repository 层
	settingsRepo := repository.NewSettingsRepository(db, logger)
	sessionRepo := repository.NewSessionRepository(db, logger)
	careTeamRepo := repository.NewCareTeamRepository(db, logger)
	devicesRepo := repository.NewDevicesRepository(db, logger)

	// 5. 领域组件
	resolver := settings.NewResolver(cfg, settingsRepo, logger)
	calc := metrics.NewCalculator(cfg)
	frameParser := parser.NewFrameParser(cfg)

	tracker := evaluator.NewCooldownTracker()
	alertEvaluator := evaluator.NewEvaluator(cfg, resolver, tracker, sessionRepo, logger)

	builder := notifier.NewContentBuilder(cfg)
	deliverer := notifier.NewMQTTDeliverer(mqttClient, cfg)
	dispatcher := notifier.NewDispatcher(builder, deliverer, careTeamRepo, logger)

	cacheManager := consumer.NewCacheManager(cfg, consumer.NewRedisKVStore(redisClient), logger)

	frameConsumer := consumer.NewFrameConsumer(cfg, frameParser, calc,
		devicesRepo, sessionRepo, alertEvaluator, dispatcher, cacheManager, logger)

	reporter := trends.NewReporter(cfg, sessionRepo, resolver, calc, logger)

	return &MonitorService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		settingsRepo:  settingsRepo,
		sessionRepo:   sessionRepo,
		careTeamRepo:  careTeamRepo,
		devicesRepo:   devicesRepo,
		resolver:      resolver,
		evaluator:     alertEvaluator,
		dispatcher:    dispatcher,
		cacheManager:  cacheManager,
		frameConsumer: frameConsumer,
		reporter:      reporter,
	}, nil
}

// Start 启动服务：订阅设备帧主题后由 MQTT 回调驱动
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.String("frame_topic", s.config.Ingest.FrameTopic),
	)

	if err := s.frameConsumer.Start(s.mqttClient); err != nil {
		return fmt.Errorf("failed to start frame consumer: %w", err)
	}

	<-ctx.Done()
	return nil
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// Trends 趋势报表器（供查询侧接口使用）
func (s *MonitorService) Trends() *trends.Reporter {
	return s.reporter
}

// Settings 患者阈值解析器（供查询侧接口使用）
func (s *MonitorService) Settings() *settings.Resolver {
	return s.resolver
}

// Evaluator 报警评估器（供确认报警等操作使用）
func (s *MonitorService) Evaluator() *evaluator.Evaluator {
	return s.evaluator
}
