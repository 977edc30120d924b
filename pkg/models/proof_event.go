package models

import (
	"time"
)

// 证明事件类型
const (
	ProofEventGenerated = "generated"
	ProofEventVerified  = "verified"
)

// ProofEvent 证明生成/验证事件
type ProofEvent struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	ContractAddress string    `json:"contract_address"`
	ProofHash       string    `json:"proof_hash"`
	Timestamp       uint64    `json:"timestamp"` // 证明记录中携带的时间戳
	Valid           bool      `json:"valid"`
	CreatedAt       time.Time `json:"created_at"`
}

// ToKafkaMessage 转换为Kafka消息格式
func (e *ProofEvent) ToKafkaMessage() map[string]interface{} {
	return map[string]interface{}{
		"id":               e.ID,
		"kind":             e.Kind,
		"contract_address": e.ContractAddress,
		"proof_hash":       e.ProofHash,
		"timestamp":        e.Timestamp,
		"valid":            e.Valid,
		"created_at":       e.CreatedAt.Unix(),
	}
}
