package service

import (
	"context"
	"time"

	probeerrors "codeprobe/internal/errors"
	"codeprobe/internal/logging"
	"codeprobe/pkg/bytecode"
	"codeprobe/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Analyze 分析调用方提供的十六进制字节码
// 非严格模式下无效输入按空字节码分析
func (s *Service) Analyze(ctx context.Context, bytecodeHex string) (*models.AnalysisReport, error) {
	var analyzer *bytecode.Analyzer
	if s.strict {
		a, err := bytecode.ParseAnalyzer(bytecodeHex)
		if err != nil {
			return nil, s.fail(probeerrors.ErrInvalidBytecode.WithCause(err))
		}
		analyzer = a
	} else {
		analyzer = bytecode.NewAnalyzer(bytecodeHex)
	}

	report := s.buildReport(analyzer, models.SourceHex, "")
	s.publishReport(report)
	return report, nil
}

// AnalyzeAddress 获取合约地址上的运行时字节码并分析
func (s *Service) AnalyzeAddress(ctx context.Context, address string) (*models.AnalysisReport, error) {
	if s.source == nil {
		return nil, s.fail(probeerrors.ErrNoSource)
	}

	code, err := s.source.CodeAt(ctx, address)
	if err != nil {
		return nil, s.fail(probeerrors.AsProbeError(err).WithAddress(address))
	}

	report := s.buildReport(bytecode.FromBytes(code), models.SourceChain, common.HexToAddress(address).Hex())
	s.publishReport(report)
	return report, nil
}

// buildReport 生成分析报告
func (s *Service) buildReport(a *bytecode.Analyzer, source, address string) *models.AnalysisReport {
	report := &models.AnalysisReport{
		ID:         uuid.NewString(),
		Address:    address,
		Source:     source,
		SHA256:     a.Hash(),
		CodeHash:   a.CodeHash(),
		Length:     a.Length(),
		Patterns:   a.Patterns(),
		Entropy:    a.Entropy(),
		Strict:     s.strict,
		AnalyzedAt: time.Now().UTC(),
	}

	if s.structured != nil {
		logging.NewAnalysisLogger(s.structured, source, report.SHA256).Info("字节码分析完成",
			"length", report.Length,
			"patterns", report.Patterns,
			"entropy", report.Entropy,
		)
	}
	s.logger.Debugf("分析完成: sha256=%s length=%d patterns=%v", report.SHA256, report.Length, report.Patterns)

	return report
}

// publishReport 持久化并输出报告，失败只记录不影响分析结果
func (s *Service) publishReport(report *models.AnalysisReport) {
	if s.store != nil {
		if err := s.store.Save(report); err != nil {
			s.stats.RecordError(probeerrors.AsProbeError(err))
			s.logger.Warnf("保存分析报告失败: %v", err)
		}
	}

	if err := s.output.WriteReport(report); err != nil {
		s.stats.RecordError(probeerrors.AsProbeError(err))
		s.logger.Warnf("输出分析报告失败: %v", err)
	}
}

// Report 按SHA-256哈希获取已保存的报告
func (s *Service) Report(sha256 string) (*models.AnalysisReport, error) {
	if s.store == nil {
		return nil, s.fail(probeerrors.ErrStoreDisabled)
	}
	return s.store.Get(sha256)
}

// ReportByAddress 获取地址最近一次的报告
func (s *Service) ReportByAddress(address string) (*models.AnalysisReport, error) {
	if s.store == nil {
		return nil, s.fail(probeerrors.ErrStoreDisabled)
	}
	if !common.IsHexAddress(address) {
		return nil, s.fail(probeerrors.ErrInvalidAddress.WithAddress(address))
	}
	return s.store.GetByAddress(common.HexToAddress(address).Hex())
}

// Reports 分页列出报告
func (s *Service) Reports(page, pageSize int) ([]*models.AnalysisReport, int, error) {
	if s.store == nil {
		return nil, 0, s.fail(probeerrors.ErrStoreDisabled)
	}
	return s.store.List(page, pageSize)
}

// ReportCount 返回已保存的报告数量
func (s *Service) ReportCount() (int, error) {
	if s.store == nil {
		return 0, s.fail(probeerrors.ErrStoreDisabled)
	}
	return s.store.Count()
}
