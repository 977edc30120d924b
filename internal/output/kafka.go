package output

import (
	"encoding/json"
	"fmt"
	"time"

	probeerrors "codeprobe/internal/errors"
	"codeprobe/pkg/models"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// 默认topic
const (
	TopicKeyReports = "reports"
	TopicKeyProofs  = "proofs"

	DefaultReportsTopic = "codeprobe_reports"
	DefaultProofsTopic  = "codeprobe_proofs"
)

// KafkaOutput Kafka输出器
type KafkaOutput struct {
	logger   *logrus.Logger
	topics   map[string]string // 数据类型到topic的映射
	producer sarama.SyncProducer
}

// NewKafkaOutput 创建Kafka输出器
func NewKafkaOutput(brokers []string, topics map[string]string, logger *logrus.Logger) (*KafkaOutput, error) {
	logger.Infof("初始化Kafka输出器，brokers: %v", brokers)

	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, probeerrors.ErrKafkaProduceFailed.WithCause(err).WithContext("brokers", brokers)
	}

	logger.Info("Kafka生产者已创建")
	return NewKafkaOutputWithProducer(producer, topics, logger), nil
}

// NewKafkaOutputWithProducer 使用已有的生产者创建输出器
func NewKafkaOutputWithProducer(producer sarama.SyncProducer, topics map[string]string, logger *logrus.Logger) *KafkaOutput {
	if topics == nil {
		topics = map[string]string{}
	}
	return &KafkaOutput{
		logger:   logger,
		topics:   topics,
		producer: producer,
	}
}

// NewProducerConfig 同步生产者配置
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0
	return config
}

func (k *KafkaOutput) topic(key, fallback string) string {
	if topic, ok := k.topics[key]; ok && topic != "" {
		return topic
	}
	return fallback
}

// sendToKafka 发送数据到Kafka
func (k *KafkaOutput) sendToKafka(topic, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(jsonData),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return probeerrors.ErrKafkaProduceFailed.WithCause(err).WithContext("topic", topic)
	}

	k.logger.Debugf("已发送到Kafka topic '%s' (partition: %d, offset: %d)", topic, partition, offset)
	return nil
}

// WriteReport 写入分析报告，以SHA-256哈希为消息键
func (k *KafkaOutput) WriteReport(report *models.AnalysisReport) error {
	if report == nil {
		return nil
	}
	return k.sendToKafka(k.topic(TopicKeyReports, DefaultReportsTopic), report.SHA256, report.ToKafkaMessage())
}

// WriteProofEvent 写入证明事件，以合约地址为消息键
func (k *KafkaOutput) WriteProofEvent(event *models.ProofEvent) error {
	if event == nil {
		return nil
	}
	return k.sendToKafka(k.topic(TopicKeyProofs, DefaultProofsTopic), event.ContractAddress, event.ToKafkaMessage())
}

// Close 关闭Kafka连接
func (k *KafkaOutput) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
