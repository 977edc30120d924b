package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// 停机顺序，数字越小越早执行
const (
	OrderHTTPServer  = 10 // 停止接受请求
	OrderFlushOutput = 20 // 关闭文件/Kafka输出
	OrderCloseStore  = 30 // 关闭报告数据库
	OrderCloseSource = 40 // 断开RPC节点
)

// DefaultTimeout 默认停机超时
const DefaultTimeout = 30 * time.Second

// Hook 停机处理函数
type Hook struct {
	Name  string
	Order int
	Func  func(ctx context.Context) error
}

// Manager 优雅停机管理器
type Manager struct {
	logger  *logrus.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []Hook

	trigger chan struct{}
	once    sync.Once
	done    chan struct{}
	errs    []error
}

// NewManager 创建优雅停机管理器
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		logger:  logger,
		timeout: timeout,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register 注册停机处理函数
func (m *Manager) Register(name string, order int, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, Hook{Name: name, Order: order, Func: fn})
	m.logger.Debugf("注册停机处理函数: %s (order: %d)", name, order)
}

// Hooks 返回按执行顺序排列的处理函数名称
func (m *Manager) Hooks() []string {
	hooks := m.sortedHooks()
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.Name
	}
	return names
}

// Trigger 手动触发停机，可重复调用
func (m *Manager) Trigger() {
	m.once.Do(func() { close(m.trigger) })
}

// Done 停机流程完成后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait 阻塞直到收到SIGINT/SIGTERM、ctx取消或手动触发，然后执行停机流程
func (m *Manager) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.logger.Infof("收到停机信号: %v", sig)
	case <-ctx.Done():
		m.logger.Info("上下文已取消，开始停机")
	case <-m.trigger:
		m.logger.Info("手动触发停机")
	}

	return m.run()
}

// run 按顺序执行所有处理函数，单个失败不影响后续
func (m *Manager) run() error {
	defer close(m.done)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for _, h := range m.sortedHooks() {
		start := time.Now()
		if err := h.Func(ctx); err != nil {
			m.logger.Errorf("停机处理 '%s' 失败 (耗时: %v): %v", h.Name, time.Since(start), err)
			m.errs = append(m.errs, fmt.Errorf("%s: %w", h.Name, err))
		} else {
			m.logger.Debugf("停机处理 '%s' 完成 (耗时: %v)", h.Name, time.Since(start))
		}

		if ctx.Err() != nil {
			m.logger.Warn("停机超时，跳过剩余处理")
			m.errs = append(m.errs, ctx.Err())
			break
		}
	}

	if len(m.errs) > 0 {
		return fmt.Errorf("停机过程中发生 %d 个错误: %w", len(m.errs), errors.Join(m.errs...))
	}
	m.logger.Info("优雅停机完成")
	return nil
}

func (m *Manager) sortedHooks() []Hook {
	m.mu.Lock()
	defer m.mu.Unlock()

	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Order < hooks[j].Order })
	return hooks
}
