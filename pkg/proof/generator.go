package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"

	"codeprobe/pkg/bytecode"
)

// Generator 证明生成/验证器
//
// 证明只是 SHA-256(challenge || address) 的相等性校验，不是签名或零知识证明。
type Generator struct {
	challenge []byte
}

// NewGenerator 从十六进制挑战值创建生成器，解码失败时使用空挑战值
func NewGenerator(challengeHex string) *Generator {
	return &Generator{challenge: bytecode.DecodeHex(challengeHex)}
}

// ParseGenerator 严格模式创建生成器
func ParseGenerator(challengeHex string) (*Generator, error) {
	challenge, err := bytecode.ParseHex(challengeHex)
	if err != nil {
		return nil, err
	}
	return &Generator{challenge: challenge}, nil
}

// ProofHash 计算挑战值与地址绑定的证明哈希
func (g *Generator) ProofHash(contractAddress string) string {
	h := sha256.New()
	h.Write(g.challenge)
	h.Write([]byte(NormalizeAddress(contractAddress)))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeAddress 将无效的UTF-8字节逐个替换为U+FFFD
//
// 与encoding/json写出记录时的替换方式一致，保证生成的记录能通过验证。
func NormalizeAddress(contractAddress string) string {
	if utf8.ValidString(contractAddress) {
		return contractAddress
	}
	return string([]rune(contractAddress))
}

// NewRecord 生成证明记录，时间戳取系统时钟
func (g *Generator) NewRecord(contractAddress string) *Record {
	contractAddress = NormalizeAddress(contractAddress)
	return &Record{
		ContractAddress: contractAddress,
		ProofHash:       g.ProofHash(contractAddress),
		Timestamp:       uint64(time.Now().Unix()),
	}
}

// GenerateProof 生成序列化的证明记录，序列化失败时返回空字符串
func (g *Generator) GenerateProof(contractAddress string) string {
	data, err := g.NewRecord(contractAddress).Encode()
	if err != nil {
		return ""
	}
	return data
}

// Verify 校验证明记录，时间戳不参与校验
func (g *Generator) Verify(r *Record) bool {
	if r == nil {
		return false
	}
	return g.ProofHash(r.ContractAddress) == r.ProofHash
}

// VerifyProof 解析并校验序列化的证明记录，解析失败返回false
func (g *Generator) VerifyProof(proofJSON string) bool {
	r, err := ParseRecord(proofJSON)
	if err != nil {
		return false
	}
	return g.Verify(r)
}
