package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrorType 错误类型
type ErrorType int

const (
	// 输入相关错误
	ErrorTypeInvalidBytecode ErrorType = iota
	ErrorTypeInvalidChallenge
	ErrorTypeMalformedProof
	ErrorTypeInvalidAddress

	// 链上相关错误
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeCodeNotFound

	// 数据相关错误
	ErrorTypeSerialization
	ErrorTypeNotFound

	// 系统相关错误
	ErrorTypeStorage
	ErrorTypeFileIO
	ErrorTypeConfig
	ErrorTypeUnavailable // 功能未启用

	// 外部服务错误
	ErrorTypeKafka
)

// ErrorSeverity 错误严重级别
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// ProbeError 自定义错误类型
type ProbeError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
	Component string                 `json:"component,omitempty"`
	Address   *string                `json:"address,omitempty"`
}

// Error 实现error接口
func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配，使预定义错误可以配合errors.Is使用
func (e *ProbeError) Is(target error) bool {
	t, ok := target.(*ProbeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsRetryable 判断是否可重试
func (e *ProbeError) IsRetryable() bool {
	return e.Retryable
}

// clone 复制错误并刷新时间戳，预定义错误不会被修改
func (e *ProbeError) clone() *ProbeError {
	c := *e
	c.Timestamp = time.Now()
	if e.Context != nil {
		c.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// WithContext 添加上下文信息
func (e *ProbeError) WithContext(key string, value interface{}) *ProbeError {
	c := e.clone()
	if c.Context == nil {
		c.Context = make(map[string]interface{})
	}
	c.Context[key] = value
	return c
}

// WithAddress 添加合约地址
func (e *ProbeError) WithAddress(address string) *ProbeError {
	c := e.clone()
	c.Address = &address
	return c
}

// WithCause 添加原始错误
func (e *ProbeError) WithCause(cause error) *ProbeError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithComponent 添加组件名
func (e *ProbeError) WithComponent(component string) *ProbeError {
	c := e.clone()
	c.Component = component
	return c
}

// HTTPStatus 返回对应的HTTP状态码
func (e *ProbeError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeInvalidBytecode, ErrorTypeInvalidChallenge, ErrorTypeMalformedProof, ErrorTypeInvalidAddress:
		return http.StatusBadRequest
	case ErrorTypeNotFound, ErrorTypeCodeNotFound:
		return http.StatusNotFound
	case ErrorTypeNetwork, ErrorTypeKafka:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewProbeError 创建新的错误
func NewProbeError(errorType ErrorType, severity ErrorSeverity, code, message string) *ProbeError {
	return &ProbeError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: determineRetryable(errorType),
	}
}

// WrapError 包装现有错误
func WrapError(err error, errorType ErrorType, severity ErrorSeverity, code, message string) *ProbeError {
	e := NewProbeError(errorType, severity, code, message)
	e.Cause = err
	return e
}

// determineRetryable 根据错误类型判断是否可重试
func determineRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeKafka:
		return true
	default:
		return false
	}
}

// 预定义错误
var (
	// 输入错误
	ErrInvalidBytecode = NewProbeError(
		ErrorTypeInvalidBytecode,
		SeverityLow,
		"INVALID_BYTECODE",
		"字节码不是有效的十六进制",
	)

	ErrInvalidChallenge = NewProbeError(
		ErrorTypeInvalidChallenge,
		SeverityLow,
		"INVALID_CHALLENGE",
		"挑战值不是有效的十六进制",
	)

	ErrMalformedProof = NewProbeError(
		ErrorTypeMalformedProof,
		SeverityLow,
		"MALFORMED_PROOF",
		"证明记录格式错误",
	)

	ErrInvalidAddress = NewProbeError(
		ErrorTypeInvalidAddress,
		SeverityLow,
		"INVALID_ADDRESS",
		"无效的合约地址",
	)

	// 链上错误
	ErrRPCFailed = NewProbeError(
		ErrorTypeNetwork,
		SeverityHigh,
		"RPC_FAILED",
		"RPC节点调用失败",
	)

	ErrNoSource = NewProbeError(
		ErrorTypeUnavailable,
		SeverityMedium,
		"NO_CHAIN_SOURCE",
		"未配置链上字节码来源",
	)

	ErrCodeNotFound = NewProbeError(
		ErrorTypeCodeNotFound,
		SeverityMedium,
		"CODE_NOT_FOUND",
		"地址上没有部署代码",
	)

	// 数据错误
	ErrSerializationFailed = NewProbeError(
		ErrorTypeSerialization,
		SeverityMedium,
		"SERIALIZATION_FAILED",
		"数据序列化失败",
	)

	ErrReportNotFound = NewProbeError(
		ErrorTypeNotFound,
		SeverityLow,
		"REPORT_NOT_FOUND",
		"分析报告不存在",
	)

	ErrStoreDisabled = NewProbeError(
		ErrorTypeUnavailable,
		SeverityLow,
		"STORE_DISABLED",
		"未启用报告存储",
	)

	// 系统错误
	ErrStorageFailed = NewProbeError(
		ErrorTypeStorage,
		SeverityHigh,
		"STORAGE_FAILED",
		"报告存储失败",
	)

	ErrFileIOFailed = NewProbeError(
		ErrorTypeFileIO,
		SeverityHigh,
		"FILE_IO_FAILED",
		"文件操作失败",
	)

	ErrConfigInvalid = NewProbeError(
		ErrorTypeConfig,
		SeverityCritical,
		"CONFIG_INVALID",
		"配置无效",
	)

	// 外部服务错误
	ErrKafkaProduceFailed = NewProbeError(
		ErrorTypeKafka,
		SeverityHigh,
		"KAFKA_PRODUCE_FAILED",
		"Kafka消息发送失败",
	)

	// 调用方上下文
	ErrTimeout = NewProbeError(
		ErrorTypeTimeout,
		SeverityMedium,
		"TIMEOUT",
		"请求超时",
	)

	ErrCanceled = notRetryable(NewProbeError(
		ErrorTypeTimeout,
		SeverityLow,
		"CANCELED",
		"请求已取消",
	))
)

func notRetryable(e *ProbeError) *ProbeError {
	e.Retryable = false
	return e
}

// 错误类型字符串映射
var errorTypeNames = map[ErrorType]string{
	ErrorTypeInvalidBytecode:  "InvalidBytecode",
	ErrorTypeInvalidChallenge: "InvalidChallenge",
	ErrorTypeMalformedProof:   "MalformedProof",
	ErrorTypeInvalidAddress:   "InvalidAddress",
	ErrorTypeNetwork:          "Network",
	ErrorTypeTimeout:          "Timeout",
	ErrorTypeCodeNotFound:     "CodeNotFound",
	ErrorTypeSerialization:    "Serialization",
	ErrorTypeNotFound:         "NotFound",
	ErrorTypeStorage:          "Storage",
	ErrorTypeFileIO:           "FileIO",
	ErrorTypeConfig:           "Config",
	ErrorTypeUnavailable:      "Unavailable",
	ErrorTypeKafka:            "Kafka",
}

// String 返回错误类型的字符串表示
func (et ErrorType) String() string {
	if name, exists := errorTypeNames[et]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", et)
}

// 严重级别字符串映射
var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String 返回严重级别的字符串表示
func (es ErrorSeverity) String() string {
	if name, exists := severityNames[es]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", es)
}

// ErrorStats 错误统计
type ErrorStats struct {
	mu                sync.Mutex
	TotalErrors       int                   `json:"total_errors"`
	ErrorsByType      map[ErrorType]int     `json:"errors_by_type"`
	ErrorsBySeverity  map[ErrorSeverity]int `json:"errors_by_severity"`
	ErrorsByComponent map[string]int        `json:"errors_by_component"`
	LastError         *ProbeError           `json:"last_error"`
	LastErrorTime     time.Time             `json:"last_error_time"`
}

// NewErrorStats 创建错误统计
func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ErrorsByType:      make(map[ErrorType]int),
		ErrorsBySeverity:  make(map[ErrorSeverity]int),
		ErrorsByComponent: make(map[string]int),
	}
}

// RecordError 记录错误
func (es *ErrorStats) RecordError(err *ProbeError) {
	if err == nil {
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	es.TotalErrors++
	es.ErrorsByType[err.Type]++
	es.ErrorsBySeverity[err.Severity]++
	if err.Component != "" {
		es.ErrorsByComponent[err.Component]++
	}

	es.LastError = err
	es.LastErrorTime = err.Timestamp
}

// Snapshot 返回统计摘要
func (es *ErrorStats) Snapshot() map[string]interface{} {
	es.mu.Lock()
	defer es.mu.Unlock()

	byType := make(map[string]int, len(es.ErrorsByType))
	for t, n := range es.ErrorsByType {
		byType[t.String()] = n
	}

	byComponent := make(map[string]int, len(es.ErrorsByComponent))
	for c, n := range es.ErrorsByComponent {
		byComponent[c] = n
	}

	return map[string]interface{}{
		"total_errors":        es.TotalErrors,
		"errors_by_type":      byType,
		"errors_by_component": byComponent,
	}
}

// AsProbeError 转换为ProbeError，上下文超时/取消归为超时错误，其余普通错误包装为系统错误
func AsProbeError(err error) *ProbeError {
	if err == nil {
		return nil
	}
	var pe *ProbeError
	if stderrors.As(err, &pe) {
		return pe
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.WithCause(err)
	}
	if stderrors.Is(err, context.Canceled) {
		return ErrCanceled.WithCause(err)
	}
	return WrapError(err, ErrorTypeStorage, SeverityMedium, "INTERNAL_ERROR", "内部错误")
}
