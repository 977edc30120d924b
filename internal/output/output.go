package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeprobe/internal/config"
	"codeprobe/pkg/models"

	"github.com/sirupsen/logrus"
)

// 输出格式
const (
	FormatNone  = "none"
	FormatJSON  = "json"
	FormatKafka = "kafka"
)

// Output 输出接口
type Output interface {
	WriteReport(report *models.AnalysisReport) error
	WriteProofEvent(event *models.ProofEvent) error
	Close() error
}

// NewOutput 根据配置创建输出器
func NewOutput(cfg *config.OutputConfig, logger *logrus.Logger) (Output, error) {
	if cfg == nil {
		return NoopOutput{}, nil
	}

	switch cfg.Format {
	case FormatNone, "":
		return NoopOutput{}, nil
	case FormatJSON:
		return NewFileOutput(cfg.Directory)
	case FormatKafka:
		if cfg.Kafka == nil || len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("Kafka输出需要至少一个broker")
		}
		return NewKafkaOutput(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", cfg.Format)
	}
}

// NoopOutput 丢弃所有数据
type NoopOutput struct{}

func (NoopOutput) WriteReport(*models.AnalysisReport) error { return nil }
func (NoopOutput) WriteProofEvent(*models.ProofEvent) error { return nil }
func (NoopOutput) Close() error                             { return nil }

// FileOutput 文件输出（每行一个JSON对象）
type FileOutput struct {
	outputDir  string
	mu         sync.Mutex
	reportFile *os.File
	proofFile  *os.File
}

// NewFileOutput 创建文件输出器
func NewFileOutput(outputPath string) (*FileOutput, error) {
	// 确保输出目录存在
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")

	reportFile, err := os.OpenFile(filepath.Join(outputPath, fmt.Sprintf("reports_%s.json", timestamp)),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("创建报告文件失败: %w", err)
	}

	proofFile, err := os.OpenFile(filepath.Join(outputPath, fmt.Sprintf("proofs_%s.json", timestamp)),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		reportFile.Close()
		return nil, fmt.Errorf("创建证明文件失败: %w", err)
	}

	return &FileOutput{
		outputDir:  outputPath,
		reportFile: reportFile,
		proofFile:  proofFile,
	}, nil
}

// WriteReport 写入分析报告
func (o *FileOutput) WriteReport(report *models.AnalysisReport) error {
	if report == nil {
		return nil
	}
	return o.writeLine(o.reportFile, report, "报告")
}

// WriteProofEvent 写入证明事件
func (o *FileOutput) WriteProofEvent(event *models.ProofEvent) error {
	if event == nil {
		return nil
	}
	return o.writeLine(o.proofFile, event, "证明")
}

func (o *FileOutput) writeLine(f *os.File, v interface{}, kind string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化%s数据失败: %w", kind, err)
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("写入%s文件失败: %w", kind, err)
	}

	// 强制刷新到磁盘
	if err := f.Sync(); err != nil {
		return fmt.Errorf("刷新%s文件失败: %w", kind, err)
	}

	return nil
}

// Files 返回报告文件和证明文件路径
func (o *FileOutput) Files() (string, string) {
	return o.reportFile.Name(), o.proofFile.Name()
}

// Close 关闭文件
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	if o.reportFile != nil {
		if err := o.reportFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭报告文件失败: %w", err))
		}
		o.reportFile = nil
	}
	if o.proofFile != nil {
		if err := o.proofFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭证明文件失败: %w", err))
		}
		o.proofFile = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("关闭输出文件时发生错误: %v", errs)
	}
	return nil
}
