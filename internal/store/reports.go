package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	probeerrors "codeprobe/internal/errors"
	"codeprobe/pkg/models"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	// 默认数据库路径
	DefaultDBPath = "./data/reports.db"

	// 存储桶名称
	ReportsBucket = "reports"   // sha256 -> 报告
	AddressBucket = "addresses" // 地址 -> sha256
)

// ReportStore 分析报告存储
type ReportStore struct {
	db     *bolt.DB
	logger *logrus.Logger
	dbPath string
}

// NewReportStore 创建报告存储
func NewReportStore(dbPath string, logger *logrus.Logger) (*ReportStore, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开报告数据库失败: %w", err)
	}

	s := &ReportStore{
		db:     db,
		logger: logger,
		dbPath: dbPath,
	}

	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	logger.Debugf("报告存储已初始化，数据库路径: %s", dbPath)
	return s, nil
}

// initDB 初始化数据库结构
func (s *ReportStore) initDB() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(ReportsBucket)); err != nil {
			return fmt.Errorf("创建报告存储桶失败: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(AddressBucket)); err != nil {
			return fmt.Errorf("创建地址存储桶失败: %w", err)
		}
		return nil
	})
}

// Save 保存报告，同一哈希的报告会被覆盖
func (s *ReportStore) Save(report *models.AnalysisReport) error {
	if report == nil {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return probeerrors.ErrSerializationFailed.WithCause(err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(ReportsBucket)).Put([]byte(report.SHA256), data); err != nil {
			return fmt.Errorf("保存报告失败: %w", err)
		}

		if report.Address != "" {
			if err := tx.Bucket([]byte(AddressBucket)).Put([]byte(report.Address), []byte(report.SHA256)); err != nil {
				return fmt.Errorf("保存地址索引失败: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return probeerrors.ErrStorageFailed.WithCause(err)
	}

	return nil
}

// Get 按SHA-256哈希获取报告
func (s *ReportStore) Get(sha256 string) (*models.AnalysisReport, error) {
	var report *models.AnalysisReport

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(ReportsBucket)).Get([]byte(sha256))
		if data == nil {
			return probeerrors.ErrReportNotFound.WithContext("sha256", sha256)
		}

		report = &models.AnalysisReport{}
		return json.Unmarshal(data, report)
	})
	if err != nil {
		if errors.Is(err, probeerrors.ErrReportNotFound) {
			return nil, err
		}
		return nil, probeerrors.ErrStorageFailed.WithCause(err)
	}

	return report, nil
}

// GetByAddress 按合约地址获取最近一次的报告
func (s *ReportStore) GetByAddress(address string) (*models.AnalysisReport, error) {
	var hash []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(AddressBucket)).Get([]byte(address)); v != nil {
			hash = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, probeerrors.ErrStorageFailed.WithCause(err).WithAddress(address)
	}

	if hash == nil {
		return nil, probeerrors.ErrReportNotFound.WithAddress(address)
	}

	return s.Get(string(hash))
}

// List 分页列出报告（按哈希排序）
func (s *ReportStore) List(page, pageSize int) ([]*models.AnalysisReport, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	reports := make([]*models.AnalysisReport, 0, pageSize)
	total := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ReportsBucket))
		total = bucket.Stats().KeyN

		idx := 0
		return bucket.ForEach(func(k, v []byte) error {
			defer func() { idx++ }()
			if idx < start || idx >= start+pageSize {
				return nil
			}

			var report models.AnalysisReport
			if err := json.Unmarshal(v, &report); err != nil {
				s.logger.Warnf("跳过损坏的报告 %s: %v", string(k), err)
				return nil
			}
			reports = append(reports, &report)
			return nil
		})
	})
	if err != nil {
		return nil, 0, probeerrors.ErrStorageFailed.WithCause(err)
	}

	return reports, total, nil
}

// Count 返回报告数量
func (s *ReportStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(ReportsBucket)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, probeerrors.ErrStorageFailed.WithCause(err)
	}
	return count, nil
}

// Delete 删除报告
func (s *ReportStore) Delete(sha256 string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ReportsBucket)).Delete([]byte(sha256))
	})
	if err != nil {
		return probeerrors.ErrStorageFailed.WithCause(err)
	}
	return nil
}

// GetDBPath 获取数据库路径
func (s *ReportStore) GetDBPath() string {
	return s.dbPath
}

// Close 关闭报告存储
func (s *ReportStore) Close() error {
	if s.db != nil {
		s.logger.Debug("关闭报告存储")
		return s.db.Close()
	}
	return nil
}
