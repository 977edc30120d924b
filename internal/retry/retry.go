package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Policy 节点调用的退避策略
type Policy struct {
	Attempts   int           // 单节点最多调用次数
	BaseDelay  time.Duration // 首次重试前等待
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64 // 0~1，按比例上下浮动
}

// RPCPolicy 以太坊节点调用的默认策略
var RPCPolicy = Policy{
	Attempts:   3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   10 * time.Second,
	Multiplier: 2,
	Jitter:     0.2,
}

// 节点返回的可重试JSON-RPC错误码
const (
	codeServerTimeout = -32002
	codeLimitExceeded = -32005
)

// 无结构可判断时按错误文本识别
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"eof",
	"timeout",
	"too many requests",
	"header not found",
}

// Retryable 判断节点调用错误是否值得再试一次
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	// 调用方的期限由调用方负责
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var marked interface{ IsRetryable() bool }
	if errors.As(err, &marked) {
		return marked.IsRetryable()
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		return code == codeServerTimeout || code == codeLimitExceeded
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Retrier 按策略重复调用同一节点
type Retrier struct {
	policy Policy
	logger *logrus.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRetrier 创建重试器，Attempts为0时使用RPCPolicy
func NewRetrier(policy Policy, logger *logrus.Logger) *Retrier {
	if policy.Attempts <= 0 {
		policy = RPCPolicy
	}
	return &Retrier{
		policy: policy,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do 调用fn直到成功、遇到不可重试错误、次数用尽或ctx结束
func (r *Retrier) Do(ctx context.Context, call string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Debugf("%s 第 %d 次调用成功", call, attempt)
			}
			return nil
		}

		if !Retryable(err) {
			return err
		}
		if attempt >= r.policy.Attempts {
			r.logger.Warnf("%s 调用 %d 次均失败: %v", call, attempt, err)
			return fmt.Errorf("%s 调用 %d 次失败: %w", call, attempt, err)
		}

		wait := r.backoff(attempt)
		r.logger.Debugf("%s 第 %d 次失败: %v，%v 后重试", call, attempt, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// backoff 第attempt次失败后的等待时间
func (r *Retrier) backoff(attempt int) time.Duration {
	wait := float64(r.policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		wait *= r.policy.Multiplier
		if r.policy.MaxDelay > 0 && wait >= float64(r.policy.MaxDelay) {
			break
		}
	}
	if limit := float64(r.policy.MaxDelay); limit > 0 && wait > limit {
		wait = limit
	}

	if r.policy.Jitter > 0 {
		r.mu.Lock()
		wait *= 1 - r.policy.Jitter + 2*r.policy.Jitter*r.rnd.Float64()
		r.mu.Unlock()
	}
	return time.Duration(wait)
}
