package bytecode

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
)

// 模式标签
const (
	PatternSelfdestruct = "selfdestruct_present"
	PatternDelegatecall = "delegatecall_present"
	PatternRuntimeCode  = "has_runtime_code"
)

// Analyzer 字节码分析器
//
// 构造后内部缓冲区不再修改，可被多个goroutine并发读取。
type Analyzer struct {
	code []byte
}

// NewAnalyzer 从十六进制字符串创建分析器，解码失败时使用空缓冲区
func NewAnalyzer(bytecodeHex string) *Analyzer {
	return &Analyzer{code: DecodeHex(bytecodeHex)}
}

// ParseAnalyzer 严格模式创建分析器，解码失败时返回错误
func ParseAnalyzer(bytecodeHex string) (*Analyzer, error) {
	code, err := ParseHex(bytecodeHex)
	if err != nil {
		return nil, err
	}
	return &Analyzer{code: code}, nil
}

// FromBytes 从原始字节创建分析器
func FromBytes(code []byte) *Analyzer {
	buf := make([]byte, len(code))
	copy(buf, code)
	return &Analyzer{code: buf}
}

// Hash 返回字节码的SHA-256摘要（小写十六进制，64字符）
func (a *Analyzer) Hash() string {
	sum := sha256.Sum256(a.code)
	return hex.EncodeToString(sum[:])
}

// CodeHash 返回Keccak-256代码哈希（与EXTCODEHASH一致）
func (a *Analyzer) CodeHash() string {
	return crypto.Keccak256Hash(a.code).Hex()
}

// Length 返回字节码长度
func (a *Analyzer) Length() int {
	return len(a.code)
}

// ExtractOpcodes 返回原始字节（不做指令解码）
func (a *Analyzer) ExtractOpcodes() []byte {
	out := make([]byte, len(a.code))
	copy(out, a.code)
	return out
}

// Patterns 按固定顺序返回命中的模式标签
//
// 这是按原始字节的扫描，PUSH立即数中的0xff/0xf4同样会命中。
func (a *Analyzer) Patterns() []string {
	patterns := make([]string, 0, 3)

	if a.contains(byte(vm.SELFDESTRUCT)) {
		patterns = append(patterns, PatternSelfdestruct)
	}

	if a.contains(byte(vm.DELEGATECALL)) {
		patterns = append(patterns, PatternDelegatecall)
	}

	if len(a.code) > 0 {
		patterns = append(patterns, PatternRuntimeCode)
	}

	return patterns
}

// DetectPatterns 返回JSON数组形式的模式标签，序列化失败时返回空字符串
func (a *Analyzer) DetectPatterns() string {
	data, err := json.Marshal(a.Patterns())
	if err != nil {
		return ""
	}
	return string(data)
}

// Entropy 计算字节值分布的香农熵（比特）
func (a *Analyzer) Entropy() float64 {
	if len(a.code) == 0 {
		return 0.0
	}

	var freq [256]uint64
	for _, b := range a.code {
		freq[b]++
	}

	total := float64(len(a.code))
	entropy := 0.0
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}

	return entropy
}

func (a *Analyzer) contains(op byte) bool {
	return bytes.IndexByte(a.code, op) >= 0
}
