package config

import (
	"fmt"
	"os"
	"strings"

	"codeprobe/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DBDSNEnv 数据库配置源的环境变量
const DBDSNEnv = "CODEPROBE_DB_DSN"

// Config 主配置
type Config struct {
	Chain    *ChainConfig       `mapstructure:"chain"`
	Analysis *AnalysisConfig    `mapstructure:"analysis"`
	Output   *OutputConfig      `mapstructure:"output"`
	Server   *ServerConfig      `mapstructure:"server"`
	Logging  *logging.LogConfig `mapstructure:"logging"`
}

// ChainConfig 链上字节码来源配置
type ChainConfig struct {
	Nodes   []*NodeConfig `mapstructure:"nodes"`
	Timeout string        `mapstructure:"timeout"`
}

// NodeConfig 节点配置
type NodeConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Priority int    `mapstructure:"priority"`
}

// AnalysisConfig 分析配置
type AnalysisConfig struct {
	Strict    bool   `mapstructure:"strict"`     // 严格模式：无效输入返回错误而不是空结果
	Store     bool   `mapstructure:"store"`      // 是否持久化分析报告
	StorePath string `mapstructure:"store_path"` // bbolt数据库路径
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Format    string       `mapstructure:"format"` // none, json, kafka
	Directory string       `mapstructure:"directory"`
	Kafka     *KafkaConfig `mapstructure:"kafka"`
}

// ServerConfig API服务配置
type ServerConfig struct {
	Port    int `mapstructure:"port"`
	MaxLogs int `mapstructure:"max_logs"`
}

// LoadConfig 加载配置（自动检测配置源）
func LoadConfig(configPath string) (*Config, error) {
	// 首先尝试从数据库加载
	if dsn := os.Getenv(DBDSNEnv); dsn != "" {
		logger := logrus.New()
		dbConfig, err := NewDatabaseConfig(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		defer dbConfig.Close()

		config, err := dbConfig.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("从数据库加载配置失败: %w", err)
		}

		logger.Info("已从数据库加载配置")
		return config, nil
	}

	// 配置文件不存在时使用默认配置
	if configPath == "" {
		return GetDefaultConfig(), nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig(), nil
	}

	return LoadConfigFromFile(configPath)
}

// LoadConfigFromFile 从文件加载配置
func LoadConfigFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CODEPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	def := GetDefaultConfig()

	v.SetDefault("chain.timeout", def.Chain.Timeout)
	v.SetDefault("analysis.strict", def.Analysis.Strict)
	v.SetDefault("analysis.store", def.Analysis.Store)
	v.SetDefault("analysis.store_path", def.Analysis.StorePath)
	v.SetDefault("output.format", def.Output.Format)
	v.SetDefault("output.directory", def.Output.Directory)
	v.SetDefault("output.kafka.brokers", def.Output.Kafka.Brokers)
	v.SetDefault("output.kafka.topics", def.Output.Kafka.Topics)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.max_logs", def.Server.MaxLogs)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Output != nil {
		switch c.Output.Format {
		case "none", "json", "kafka":
		default:
			return fmt.Errorf("不支持的输出格式: %s", c.Output.Format)
		}
		if c.Output.Format == "kafka" && (c.Output.Kafka == nil || len(c.Output.Kafka.Brokers) == 0) {
			return fmt.Errorf("Kafka输出需要至少一个broker")
		}
	}

	if c.Server != nil && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("无效的服务端口: %d", c.Server.Port)
	}

	if c.Chain != nil {
		for i, node := range c.Chain.Nodes {
			if node.Name == "" {
				return fmt.Errorf("节点 %d 的名称不能为空", i)
			}
			if node.URL == "" {
				return fmt.Errorf("节点 %s 的URL不能为空", node.Name)
			}
		}
	}

	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Chain: &ChainConfig{
			Nodes:   []*NodeConfig{},
			Timeout: "15s",
		},
		Analysis: &AnalysisConfig{
			Strict:    false,
			Store:     false,
			StorePath: "./data/reports.db",
		},
		Output: &OutputConfig{
			Format:    "none",
			Directory: "./outputs",
			Kafka: &KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topics: map[string]string{
					"reports": "codeprobe_reports",
					"proofs":  "codeprobe_proofs",
				},
			},
		},
		Server: &ServerConfig{
			Port:    8080,
			MaxLogs: 1000,
		},
		Logging: &logging.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
