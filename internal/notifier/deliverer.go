package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/config"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"
	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/platform"
)

// Deliverer 通知投递接口（按受众ID投递渲染后的内容）
type Deliverer interface {
	Deliver(ctx context.Context, recipientID string, content *models.NotificationContent) error
}

// MQTTDeliverer 经 MQTT 投递：发布到 <notify_topic_prefix><recipientID>
// 下游推送网关订阅该主题并转成 Web Push / APP 推送。
type MQTTDeliverer struct {
	client *platform.MQTTClient
	topic  string
	qos    byte
}

// NewMQTTDeliverer 创建 MQTT 投递器
func NewMQTTDeliverer(client *platform.MQTTClient, cfg *config.Config) *MQTTDeliverer {
	return &MQTTDeliverer{
		client: client,
		topic:  cfg.Ingest.NotifyTopic,
		qos:    cfg.MQTT.QoS,
	}
}

// Deliver 发布通知
func (d *MQTTDeliverer) Deliver(_ context.Context, recipientID string, content *models.NotificationContent) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	topic := d.topic + recipientID
	if err := d.client.Publish(topic, d.qos, false, payload); err != nil {
		return fmt.Errorf("publish notification to %s: %w", topic, err)
	}
	return nil
}
