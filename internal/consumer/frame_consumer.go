package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/metrics"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/parser"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/platform"
)

// ============================================
// 依赖接口
// ============================================

// DeviceDirectory 设备到患者的分配查询（repository.DevicesRepository 实现）
type DeviceDirectory interface {
	GetAssignedPatient(ctx context.Context, deviceID string) (*string, error)
}

// FrameStore 会话与帧写入（repository.SessionRepository 实现）
type FrameStore interface {
	GetOrCreateSession(ctx context.Context, deviceID string, patientID *string, at time.Time) (*models.Session, error)
	AppendFrame(ctx context.Context, frame *models.PressureFrame) error
}

// AlertEvaluator 报警评估（evaluator.Evaluator 实现）
type AlertEvaluator interface {
	EvaluateFrame(ctx context.Context, frame *models.PressureFrame) (*models.AlertEvaluation, error)
	EvaluateEquipmentFault(patientID string, faults models.DeviceFaultFlags, at time.Time) *models.AlertEvaluation
	ClearCooldowns(patientID string)
}

// AlertDispatcher 通知分发（notifier.Dispatcher 实现）
type AlertDispatcher interface {
	Dispatch(ctx context.Context, eval *models.AlertEvaluation)
}

// FrameSubscriber MQTT 订阅入口（platform.MQTTClient 实现）
type FrameSubscriber interface {
	Subscribe(topic string, qos byte, handler platform.MessageHandler) error
}

// ============================================
// 帧消费者
// ============================================

// FrameConsumer 设备帧接入管线
//
// 订阅设备帧主题，对每条消息执行完整处理链：解析网格 → 重算
// 指标 → 查设备分配 → 落库 → 报警评估 → 缓存 → 通知分发。
// 单条消息失败只记日志并丢弃，不阻塞后续帧。
type FrameConsumer struct {
	config     *config.Config
	parser     *parser.FrameParser
	calc       *metrics.Calculator
	devices    DeviceDirectory
	store      FrameStore
	evaluator  AlertEvaluator
	dispatcher AlertDispatcher
	cache      *CacheManager
	logger     *zap.Logger
}

// NewFrameConsumer 创建帧消费者
func NewFrameConsumer(
	cfg *config.Config,
	frameParser *parser.FrameParser,
	calc *metrics.Calculator,
	devices DeviceDirectory,
	store FrameStore,
	alertEvaluator AlertEvaluator,
	dispatcher AlertDispatcher,
	cache *CacheManager,
	logger *zap.Logger,
) *FrameConsumer {
	return &FrameConsumer{
		config:     cfg,
		parser:     frameParser,
		calc:       calc,
		devices:    devices,
		store:      store,
		evaluator:  alertEvaluator,
		dispatcher: dispatcher,
		cache:      cache,
		logger:     logger,
	}
}

// Start 订阅帧主题
func (c *FrameConsumer) Start(subscriber FrameSubscriber) error {
	if err := subscriber.Subscribe(c.config.Ingest.FrameTopic, c.config.MQTT.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("subscribe frame topic: %w", err)
	}

	c.logger.Info("frame consumer started",
		zap.String("topic", c.config.Ingest.FrameTopic))
	return nil
}

// HandleMessage 处理一条设备帧消息
func (c *FrameConsumer) HandleMessage(topic string, payload []byte) error {
	ctx := context.Background()

	var msg models.RawFrameMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("unmarshal frame message: %w", err)
	}

	// 设备ID以主题末段为准，消息体仅作兜底
	deviceID := deviceIDFromTopic(topic)
	if deviceID == "" {
		deviceID = msg.DeviceID
	}
	if deviceID == "" {
		return &models.ValidationError{Field: "device_id", Message: "frame message has no device id"}
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	return c.processFrame(ctx, deviceID, &msg)
}

func (c *FrameConsumer) processFrame(ctx context.Context, deviceID string, msg *models.RawFrameMessage) error {
	grid := c.parser.Parse(msg.Frame)

	peak := c.calc.PeakPressureIndex(grid)
	contactArea := c.calc.ContactAreaPercent(grid, c.config.Monitoring.ContactLowerLimit)
	cv := c.calc.CoefficientOfVariation(grid)

	// 未分配患者的设备帧仍然落库（孤儿会话），但不评估不通知
	patientID, err := c.devices.GetAssignedPatient(ctx, deviceID)
	if err != nil && err != models.ErrNotFound {
		return fmt.Errorf("lookup device assignment: %w", err)
	}
	if err == models.ErrNotFound {
		c.logger.Warn("frame from unknown device", zap.String("device_id", deviceID))
		patientID = nil
	}

	session, err := c.store.GetOrCreateSession(ctx, deviceID, patientID, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("get or create session: %w", err)
	}

	frame := &models.PressureFrame{
		SessionID:     session.SessionID,
		PatientID:     patientID,
		DeviceID:      deviceID,
		Timestamp:     msg.Timestamp,
		Grid:          grid,
		PeakPressure:  peak,
		ContactArea:   contactArea,
		DeviceFaults:  msg.DeviceFaults,
		MedicalAlerts: msg.MedicalAlerts,
	}

	if err := c.store.AppendFrame(ctx, frame); err != nil {
		return fmt.Errorf("append frame: %w", err)
	}

	if patientID == nil || *patientID == "" {
		return nil
	}

	// 重连后的首帧清空该患者全部冷却，报警重新从零计
	if msg.Reconnected {
		c.evaluator.ClearCooldowns(*patientID)
	}

	c.evaluate(ctx, frame, msg)
	c.publishCaches(ctx, frame, cv)

	return nil
}

// evaluate 执行压力与设备故障两路评估并分发通知
// 评估失败只记日志：帧已经落库，后续帧会再次评估。
func (c *FrameConsumer) evaluate(ctx context.Context, frame *models.PressureFrame, msg *models.RawFrameMessage) {
	eval, err := c.evaluator.EvaluateFrame(ctx, frame)
	if err != nil {
		c.logger.Error("frame evaluation failed",
			zap.String("device_id", frame.DeviceID),
			zap.String("patient_id", *frame.PatientID),
			zap.Error(err))
		return
	}

	c.dispatcher.Dispatch(ctx, eval)
	c.cacheAlert(ctx, eval)

	if !msg.DeviceFaults.None() {
		faultEval := c.evaluator.EvaluateEquipmentFault(*frame.PatientID, msg.DeviceFaults, frame.Timestamp)
		c.dispatcher.Dispatch(ctx, faultEval)
		c.cacheAlert(ctx, faultEval)
	}
}

func (c *FrameConsumer) cacheAlert(ctx context.Context, eval *models.AlertEvaluation) {
	if eval == nil || (!eval.NotifyPatient && !eval.NotifyClinician) {
		return
	}
	if err := c.cache.AppendAlert(ctx, eval); err != nil {
		c.logger.Warn("failed to cache alert",
			zap.String("patient_id", eval.PatientID),
			zap.Error(err))
	}
}

func (c *FrameConsumer) publishCaches(ctx context.Context, frame *models.PressureFrame, cv float64) {
	snapshot := &models.RealtimeSnapshot{
		PatientID:     *frame.PatientID,
		DeviceID:      frame.DeviceID,
		SessionID:     frame.SessionID,
		Timestamp:     frame.Timestamp,
		PeakPressure:  frame.PeakPressure,
		ContactArea:   frame.ContactArea,
		CV:            cv,
		DeviceFaults:  frame.DeviceFaults,
		MedicalAlerts: frame.MedicalAlerts,
	}
	if err := c.cache.PublishSnapshot(ctx, snapshot); err != nil {
		c.logger.Warn("failed to cache realtime snapshot",
			zap.String("patient_id", snapshot.PatientID),
			zap.Error(err))
	}
}

// deviceIDFromTopic 从主题末段提取设备ID（graphenetrace/frames/<device_id>）
func deviceIDFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
