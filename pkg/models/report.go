package models

import (
	"time"
)

// 字节码来源
const (
	SourceHex   = "hex"   // 调用方直接提供的十六进制
	SourceChain = "chain" // 通过RPC节点获取的部署代码
)

// AnalysisReport 字节码分析报告
type AnalysisReport struct {
	ID         string    `json:"id"`
	Address    string    `json:"address,omitempty"` // 合约地址（仅链上来源）
	Source     string    `json:"source"`
	SHA256     string    `json:"sha256"`
	CodeHash   string    `json:"code_hash"` // Keccak-256
	Length     int       `json:"length"`
	Patterns   []string  `json:"patterns"`
	Entropy    float64   `json:"entropy"`
	Strict     bool      `json:"strict"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// HasPattern 检查报告是否包含指定模式
func (r *AnalysisReport) HasPattern(tag string) bool {
	for _, p := range r.Patterns {
		if p == tag {
			return true
		}
	}
	return false
}

// ToKafkaMessage 转换为Kafka消息格式
func (r *AnalysisReport) ToKafkaMessage() map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"address":     r.Address,
		"source":      r.Source,
		"sha256":      r.SHA256,
		"code_hash":   r.CodeHash,
		"length":      r.Length,
		"patterns":    r.Patterns,
		"entropy":     r.Entropy,
		"analyzed_at": r.AnalyzedAt.Unix(),
	}
}
