package evaluator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestTracker 创建可控时钟的跟踪器
func newTestTracker(start time.Time) (*CooldownTracker, *time.Time) {
	clock := start
	tracker := NewCooldownTracker()
	tracker.now = func() time.Time { return clock }
	return tracker, &clock
}

func TestShouldSend_FirstAlwaysAllowed(t *testing.T) {
	tracker, _ := newTestTracker(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
}

func TestShouldSend_SuppressedWithinWindow(t *testing.T) {
	tracker, clock := newTestTracker(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))

	// 窗口内重复触发被抑制
	*clock = clock.Add(10 * time.Second)
	assert.False(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))

	// 抑制不刷新时间戳：再过 20 秒（距首发 30 秒）应恢复
	*clock = clock.Add(20 * time.Second)
	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
}

func TestShouldSend_IndependentKeys(t *testing.T) {
	tracker, _ := newTestTracker(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
	// 不同报警类别、不同患者互不影响
	assert.True(t, tracker.ShouldSend("patient-1", "sustained-pressure", 60*time.Second))
	assert.True(t, tracker.ShouldSend("patient-1", "clinician-high-pressure", 30*time.Second))
	assert.True(t, tracker.ShouldSend("patient-2", "high-pressure", 30*time.Second))
}

func TestAcknowledge_ReenablesImmediately(t *testing.T) {
	tracker, clock := newTestTracker(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
	*clock = clock.Add(5 * time.Second)
	assert.False(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))

	tracker.Acknowledge("patient-1", "high-pressure")
	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
}

func TestAcknowledge_OnlyNamedKey(t *testing.T) {
	tracker, clock := newTestTracker(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
	assert.True(t, tracker.ShouldSend("patient-1", "sustained-pressure", 60*time.Second))
	*clock = clock.Add(5 * time.Second)

	tracker.Acknowledge("patient-1", "high-pressure")

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
	assert.False(t, tracker.ShouldSend("patient-1", "sustained-pressure", 60*time.Second))
}

func TestClear_OnlyAffectsOnePatient(t *testing.T) {
	tracker, clock := newTestTracker(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
	assert.True(t, tracker.ShouldSend("patient-1", "sustained-pressure", 60*time.Second))
	assert.True(t, tracker.ShouldSend("patient-2", "high-pressure", 30*time.Second))
	*clock = clock.Add(5 * time.Second)

	tracker.Clear("patient-1")

	assert.True(t, tracker.ShouldSend("patient-1", "high-pressure", 30*time.Second))
	assert.True(t, tracker.ShouldSend("patient-1", "sustained-pressure", 60*time.Second))
	assert.False(t, tracker.ShouldSend("patient-2", "high-pressure", 30*time.Second))
}

func TestShouldSend_ConcurrentSingleWinner(t *testing.T) {
	tracker := NewCooldownTracker()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.ShouldSend("patient-1", "high-pressure", time.Minute) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// check-and-stamp 原子性：同一键并发触发只有一个通过
	assert.Equal(t, 1, allowed)
}
