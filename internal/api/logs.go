package api

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogEntry 日志条目
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogManager 保存最近的日志（环形缓冲）
type LogManager struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int // 下一个写入位置
	full    bool
}

// NewLogManager 创建日志管理器
func NewLogManager(maxLogs int) *LogManager {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &LogManager{entries: make([]LogEntry, maxLogs)}
}

// Add 添加日志，超过容量时覆盖最旧的一条
func (lm *LogManager) Add(entry LogEntry) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.entries[lm.next] = entry
	lm.next = (lm.next + 1) % len(lm.entries)
	if lm.next == 0 {
		lm.full = true
	}
}

// snapshot 按时间顺序返回所有日志，调用方需持有读锁
func (lm *LogManager) snapshot() []LogEntry {
	if !lm.full {
		out := make([]LogEntry, lm.next)
		copy(out, lm.entries[:lm.next])
		return out
	}
	out := make([]LogEntry, 0, len(lm.entries))
	out = append(out, lm.entries[lm.next:]...)
	return append(out, lm.entries[:lm.next]...)
}

// Len 当前日志数量
func (lm *LogManager) Len() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	if lm.full {
		return len(lm.entries)
	}
	return lm.next
}

// Page 按级别过滤后分页，page从1开始
func (lm *LogManager) Page(level string, page, pageSize int) ([]LogEntry, int) {
	lm.mu.RLock()
	all := lm.snapshot()
	lm.mu.RUnlock()

	if level != "" {
		filtered := make([]LogEntry, 0, len(all))
		for _, e := range all {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total || start < 0 {
		return []LogEntry{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total
}

// Clear 清空日志
func (lm *LogManager) Clear() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.entries = make([]LogEntry, len(lm.entries))
	lm.next = 0
	lm.full = false
}

// LogHook 将logrus日志写入LogManager
type LogHook struct {
	manager *LogManager
}

// NewLogHook 创建日志钩子
func NewLogHook(manager *LogManager) *LogHook {
	return &LogHook{manager: manager}
}

// Fire 实现 logrus.Hook 接口
func (h *LogHook) Fire(entry *logrus.Entry) error {
	var fields map[string]interface{}
	if len(entry.Data) > 0 {
		fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			fields[k] = v
		}
	}

	h.manager.Add(LogEntry{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Fields:    fields,
	})
	return nil
}

// Levels 实现 logrus.Hook 接口
func (h *LogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
