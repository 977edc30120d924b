package service

import (
	"context"

	probeerrors "codeprobe/internal/errors"
	"codeprobe/internal/logging"
	"codeprobe/internal/output"
	"codeprobe/pkg/models"

	"github.com/sirupsen/logrus"
)

// CodeSource 按地址获取已部署的运行时字节码
type CodeSource interface {
	CodeAt(ctx context.Context, address string) ([]byte, error)
}

// ReportStore 分析报告存储
type ReportStore interface {
	Save(report *models.AnalysisReport) error
	Get(sha256 string) (*models.AnalysisReport, error)
	GetByAddress(address string) (*models.AnalysisReport, error)
	List(page, pageSize int) ([]*models.AnalysisReport, int, error)
	Count() (int, error)
}

// Options 服务依赖，除Logger外均可为空
type Options struct {
	Logger     *logrus.Logger
	Structured *logging.StructuredLogger
	Output     output.Output
	Store      ReportStore
	Source     CodeSource
	Strict     bool
}

// Service 字节码分析与所有权证明服务
type Service struct {
	logger     *logrus.Logger
	structured *logging.StructuredLogger
	output     output.Output
	store      ReportStore
	source     CodeSource
	strict     bool
	stats      *probeerrors.ErrorStats
}

// New 创建服务
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	out := opts.Output
	if out == nil {
		out = output.NoopOutput{}
	}

	return &Service{
		logger:     logger,
		structured: opts.Structured,
		output:     out,
		store:      opts.Store,
		source:     opts.Source,
		strict:     opts.Strict,
		stats:      probeerrors.NewErrorStats(),
	}
}

// Strict 是否为严格模式
func (s *Service) Strict() bool {
	return s.strict
}

// HasSource 是否配置了链上来源
func (s *Service) HasSource() bool {
	return s.source != nil
}

// HasStore 是否启用了报告存储
func (s *Service) HasStore() bool {
	return s.store != nil
}

// Stats 返回错误统计
func (s *Service) Stats() map[string]interface{} {
	return s.stats.Snapshot()
}

// fail 记录错误统计并返回
func (s *Service) fail(err *probeerrors.ProbeError) error {
	err = err.WithComponent("service")
	s.stats.RecordError(err)
	return err
}

// Close 关闭输出
func (s *Service) Close() error {
	return s.output.Close()
}
