package proof

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// 证明记录的字段名，属于线上协议，不可修改
const (
	fieldContractAddress = "contract_address"
	fieldProofHash       = "proof_hash"
	fieldTimestamp       = "timestamp"
)

// ErrMalformedRecord 证明记录格式错误（严格模式）
var ErrMalformedRecord = errors.New("证明记录格式错误")

// Record 证明记录
type Record struct {
	ContractAddress string `json:"contract_address"`
	ProofHash       string `json:"proof_hash"`
	Timestamp       uint64 `json:"timestamp"` // 仅作信息用途，不参与哈希
}

// Encode 序列化证明记录
func (r *Record) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("序列化证明记录失败: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ParseRecord 严格解析证明记录
//
// 字段名区分大小写；字段缺失、重复、为null或类型错误都视为格式错误，未知字段忽略。
func ParseRecord(s string) (*Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: 记录不是对象", ErrMalformedRecord)
	}
	if err := checkDuplicateFields(s); err != nil {
		return nil, err
	}

	var r Record
	if err := decodeField(fields, fieldContractAddress, &r.ContractAddress); err != nil {
		return nil, err
	}
	if err := decodeField(fields, fieldProofHash, &r.ProofHash); err != nil {
		return nil, err
	}
	if err := decodeField(fields, fieldTimestamp, &r.Timestamp); err != nil {
		return nil, err
	}

	return &r, nil
}

// checkDuplicateFields 记录字段出现多次时拒绝，输入已确认是合法的JSON对象
func checkDuplicateFields(s string) error {
	dec := json.NewDecoder(strings.NewReader(s))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	seen := make(map[string]bool, 3)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		key, _ := tok.(string)

		switch key {
		case fieldContractAddress, fieldProofHash, fieldTimestamp:
			if seen[key] {
				return fmt.Errorf("%w: 字段 %s 重复", ErrMalformedRecord, key)
			}
			seen[key] = true
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}
	return nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w: 缺少字段 %s", ErrMalformedRecord, name)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: 字段 %s 为null", ErrMalformedRecord, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: 字段 %s: %v", ErrMalformedRecord, name, err)
	}
	return nil
}
