package evaluator

import (
	"sync"
	"time"
)

// cooldownKey 冷却条目键：(患者ID, 报警类别)
type cooldownKey struct {
	patientID string
	alertKey  string
}

// CooldownTracker 通知冷却跟踪器
//
// 进程内内存状态，互斥锁保护的共享映射。每个服务实例持有自己的
// 跟踪器（无全局状态，测试可独立实例化）。进程重启会重置所有
// 冷却——这是文档化的可接受行为，冷却状态从不持久化。
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[cooldownKey]time.Time
	now     func() time.Time
}

// NewCooldownTracker 创建冷却跟踪器
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		entries: make(map[cooldownKey]time.Time),
		now:     time.Now,
	}
}

// ShouldSend 判断是否允许发送并加盖时间戳（check-and-stamp 原子操作）
//
// 无条目或距上次发送已超过冷却窗口时返回 true 并记录当前时间；
// 否则返回 false 且不改变状态。同一键的两次并发越限评估在锁内
// 串行化，不会同时通过。
func (t *CooldownTracker) ShouldSend(patientID, alertKey string, cooldown time.Duration) bool {
	key := cooldownKey{patientID: patientID, alertKey: alertKey}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.entries[key]; ok && now.Sub(last) < cooldown {
		return false
	}

	t.entries[key] = now
	return true
}

// Acknowledge 移除指定的冷却条目（人工处理报警后允许立即重新通知）
func (t *CooldownTracker) Acknowledge(patientID, alertKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, cooldownKey{patientID: patientID, alertKey: alertKey})
}

// Clear 移除患者的全部冷却条目（设备重连等"重新开始"事件）
// 只影响该患者，其他患者的冷却不受影响。
func (t *CooldownTracker) Clear(patientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.entries {
		if key.patientID == patientID {
			delete(t.entries, key)
		}
	}
}
