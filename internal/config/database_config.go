package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DatabaseConfig 数据库配置管理器
type DatabaseConfig struct {
	DB     *sql.DB
	logger *logrus.Logger
}

// NewDatabaseConfig 创建数据库配置管理器
func NewDatabaseConfig(dsn string, logger *logrus.Logger) (*DatabaseConfig, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	return &DatabaseConfig{
		DB:     db,
		logger: logger,
	}, nil
}

// LoadConfig 从数据库加载完整配置，未设置的项使用默认值
func (dc *DatabaseConfig) LoadConfig() (*Config, error) {
	config := GetDefaultConfig()

	nodes, err := dc.loadNodes()
	if err != nil {
		return nil, fmt.Errorf("加载节点配置失败: %w", err)
	}
	config.Chain.Nodes = nodes

	settings, err := dc.ListSettings()
	if err != nil {
		return nil, fmt.Errorf("加载配置项失败: %w", err)
	}
	for key, value := range settings {
		if err := applySetting(config, key, value); err != nil {
			dc.logger.Warnf("忽略配置项 %s: %v", key, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadNodes 加载RPC节点配置
func (dc *DatabaseConfig) loadNodes() ([]*NodeConfig, error) {
	query := `SELECT name, url, priority FROM codeprobe_nodes WHERE is_active = true ORDER BY priority`
	rows, err := dc.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]*NodeConfig, 0)
	for rows.Next() {
		var node NodeConfig
		if err := rows.Scan(&node.Name, &node.URL, &node.Priority); err != nil {
			return nil, err
		}
		nodes = append(nodes, &node)
	}

	return nodes, rows.Err()
}

// ListSettings 列出所有配置项
func (dc *DatabaseConfig) ListSettings() (map[string]string, error) {
	query := `SELECT config_key, config_value FROM codeprobe_settings WHERE is_active = true`
	rows, err := dc.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	return settings, rows.Err()
}

// UpdateSetting 更新配置项
func (dc *DatabaseConfig) UpdateSetting(key, value string) error {
	if err := applySetting(GetDefaultConfig(), key, value); err != nil {
		return err
	}

	query := `
		INSERT INTO codeprobe_settings (config_key, config_value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (config_key)
		DO UPDATE SET config_value = $2, updated_at = CURRENT_TIMESTAMP
	`

	_, err := dc.DB.Exec(query, key, value)
	return err
}

// applySetting 将单个配置项写入配置
func applySetting(config *Config, key, value string) error {
	switch key {
	case "chain.timeout":
		config.Chain.Timeout = value
	case "analysis.strict":
		config.Analysis.Strict = strings.ToLower(value) == "true"
	case "analysis.store":
		config.Analysis.Store = strings.ToLower(value) == "true"
	case "analysis.store_path":
		config.Analysis.StorePath = value
	case "output.format":
		config.Output.Format = value
	case "output.directory":
		config.Output.Directory = value
	case "output.kafka.brokers":
		var brokers []string
		if err := json.Unmarshal([]byte(value), &brokers); err != nil {
			return fmt.Errorf("broker列表格式错误: %w", err)
		}
		config.Output.Kafka.Brokers = brokers
	case "output.kafka.topics":
		var topics map[string]string
		if err := json.Unmarshal([]byte(value), &topics); err != nil {
			return fmt.Errorf("topic映射格式错误: %w", err)
		}
		config.Output.Kafka.Topics = topics
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("端口格式错误: %w", err)
		}
		config.Server.Port = port
	case "server.max_logs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("日志数量格式错误: %w", err)
		}
		config.Server.MaxLogs = n
	case "logging.level":
		config.Logging.Level = value
	case "logging.format":
		config.Logging.Format = value
	case "logging.output":
		config.Logging.Output = value
	default:
		return fmt.Errorf("未知的配置项: %s", key)
	}
	return nil
}

// Close 关闭数据库连接
func (dc *DatabaseConfig) Close() error {
	if dc.DB != nil {
		return dc.DB.Close()
	}
	return nil
}
