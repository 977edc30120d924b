package proof

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProof_KnownVector(t *testing.T) {
	generator := NewGenerator("deadbeef")

	before := uint64(time.Now().Unix())
	proofJSON := generator.GenerateProof("0x1234")
	after := uint64(time.Now().Unix())

	require.NotEmpty(t, proofJSON)

	record, err := ParseRecord(proofJSON)
	require.NoError(t, err)
	assert.Equal(t, "0x1234", record.ContractAddress)
	assert.Equal(t, "3875c318e9822795eb0b25883ac97d592338bfb2edf1eb64d38df676a73f97b9", record.ProofHash)
	assert.GreaterOrEqual(t, record.Timestamp, before)
	assert.LessOrEqual(t, record.Timestamp, after)

	assert.True(t, generator.VerifyProof(proofJSON))
}

func TestGenerateProof_WireShape(t *testing.T) {
	proofJSON := NewGenerator("deadbeef").GenerateProof("0x1234")

	assert.True(t, strings.HasPrefix(proofJSON, `{"contract_address":"0x1234","proof_hash":"`))
	assert.Contains(t, proofJSON, `","timestamp":`)
	assert.False(t, strings.HasSuffix(proofJSON, "\n"))

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(proofJSON), &fields))
	assert.Len(t, fields, 3)
}

func TestGenerateProof_NoHTMLEscaping(t *testing.T) {
	proofJSON := NewGenerator("00").GenerateProof("<a&b>")
	assert.Contains(t, proofJSON, `"contract_address":"<a&b>"`)
}

func TestVerifyProof_RoundTrip(t *testing.T) {
	challenges := []string{"", "00", "deadbeef", "DEADBEEF", "not-hex", strings.Repeat("ab", 64)}
	addresses := []string{"", "0x1234", "0x000000000000000000000000000000000000dEaD", "合约地址"}

	for _, c := range challenges {
		generator := NewGenerator(c)
		for _, a := range addresses {
			assert.True(t, generator.VerifyProof(generator.GenerateProof(a)), "challenge=%q address=%q", c, a)
		}
	}
}

func TestVerifyProof_TamperedAddress(t *testing.T) {
	generator := NewGenerator("deadbeef")

	record, err := ParseRecord(generator.GenerateProof("0x1234"))
	require.NoError(t, err)

	record.ContractAddress = "0x5678"
	tampered, err := record.Encode()
	require.NoError(t, err)

	assert.False(t, generator.VerifyProof(tampered))
}

func TestVerifyProof_DifferentChallenge(t *testing.T) {
	proofJSON := NewGenerator("deadbeef").GenerateProof("0x1234")
	assert.False(t, NewGenerator("cafebabe").VerifyProof(proofJSON))
}

func TestVerifyProof_TimestampIgnored(t *testing.T) {
	generator := NewGenerator("deadbeef")
	record := generator.NewRecord("0x1234")

	record.Timestamp = 0
	stale, err := record.Encode()
	require.NoError(t, err)
	assert.True(t, generator.VerifyProof(stale))

	forged := `{"contract_address":"0x1234","proof_hash":"` + record.ProofHash + `","timestamp":18446744073709551615}`
	assert.True(t, generator.VerifyProof(forged))
}

func TestVerifyProof_MalformedInput(t *testing.T) {
	generator := NewGenerator("deadbeef")
	hash := generator.ProofHash("0x1234")

	tests := []struct {
		name  string
		input string
	}{
		{"空字符串", ""},
		{"非JSON", "not json"},
		{"null", "null"},
		{"数组", `["0x1234"]`},
		{"空对象", `{}`},
		{"缺少timestamp", `{"contract_address":"0x1234","proof_hash":"` + hash + `"}`},
		{"缺少proof_hash", `{"contract_address":"0x1234","timestamp":1}`},
		{"地址类型错误", `{"contract_address":1234,"proof_hash":"` + hash + `","timestamp":1}`},
		{"地址为null", `{"contract_address":null,"proof_hash":"` + hash + `","timestamp":1}`},
		{"时间戳为负数", `{"contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":-1}`},
		{"时间戳为小数", `{"contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":1.5}`},
		{"时间戳为字符串", `{"contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":"1"}`},
		{"字段名大小写不同", `{"Contract_Address":"0x1234","proof_hash":"` + hash + `","timestamp":1}`},
		{"尾部多余数据", `{"contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":1} x`},
		{"地址字段重复", `{"contract_address":"0xevil","contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":1}`},
		{"哈希字段重复", `{"contract_address":"0x1234","proof_hash":"00","proof_hash":"` + hash + `","timestamp":1}`},
		{"时间戳字段重复", `{"contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":1,"timestamp":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, generator.VerifyProof(tt.input))

			_, err := ParseRecord(tt.input)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestVerifyProof_UnknownFieldsIgnored(t *testing.T) {
	generator := NewGenerator("deadbeef")
	hash := generator.ProofHash("0x1234")

	input := `{"contract_address":"0x1234","proof_hash":"` + hash + `","timestamp":1,"extra":true}`
	assert.True(t, generator.VerifyProof(input))
}

func TestVerifyProof_DuplicateUnknownFieldsIgnored(t *testing.T) {
	generator := NewGenerator("deadbeef")
	hash := generator.ProofHash("0x1234")

	input := `{"extra":1,"contract_address":"0x1234","extra":2,"proof_hash":"` + hash + `","timestamp":1}`
	assert.True(t, generator.VerifyProof(input))
}

func TestGenerateProof_InvalidUTF8Address(t *testing.T) {
	generator := NewGenerator("deadbeef")
	address := "0x\xff\xfe12"

	proofJSON := generator.GenerateProof(address)
	assert.True(t, generator.VerifyProof(proofJSON))

	record, err := ParseRecord(proofJSON)
	require.NoError(t, err)
	assert.Equal(t, "0x\uFFFD\uFFFD12", record.ContractAddress)
	assert.Equal(t, generator.ProofHash(address), record.ProofHash)
	assert.Equal(t, generator.ProofHash("0x\uFFFD\uFFFD12"), record.ProofHash)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0x1234", NormalizeAddress("0x1234"))
	assert.Equal(t, "地址", NormalizeAddress("地址"))
	assert.Equal(t, "a\uFFFDb", NormalizeAddress("a\x80b"))
}

func TestVerifyProof_HashIsCaseSensitive(t *testing.T) {
	generator := NewGenerator("deadbeef")
	record := generator.NewRecord("0x1234")
	record.ProofHash = strings.ToUpper(record.ProofHash)

	assert.False(t, generator.Verify(record))
}

func TestVerify_NilRecord(t *testing.T) {
	assert.False(t, NewGenerator("00").Verify(nil))
}

func TestParseGenerator_Strict(t *testing.T) {
	_, err := ParseGenerator("zz")
	assert.Error(t, err)

	generator, err := ParseGenerator("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, NewGenerator("deadbeef").ProofHash("0x1234"), generator.ProofHash("0x1234"))
}

func TestNewGenerator_InvalidChallengeUsesEmpty(t *testing.T) {
	// 无效挑战值等价于空挑战值
	assert.Equal(t, NewGenerator("").ProofHash("0x1234"), NewGenerator("zz").ProofHash("0x1234"))
}
