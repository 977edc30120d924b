package bytecode

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestNewAnalyzer_SimpleBytecode(t *testing.T) {
	analyzer := NewAnalyzer("6080604052")

	assert.Equal(t, 5, analyzer.Length())
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, analyzer.ExtractOpcodes())
	assert.Equal(t, "12c1c6c1622ef139f7be5e75d22b0af0c26c294582e9a761716a7444d64bff39", analyzer.Hash())
	assert.Equal(t, `["has_runtime_code"]`, analyzer.DetectPatterns())
	assert.InDelta(t, 1.9219280948873623, analyzer.Entropy(), 1e-12)
}

func TestNewAnalyzer_InvalidHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"非十六进制字符", "60zz"},
		{"奇数长度", "608"},
		{"0x前缀", "0x6080"},
		{"空白字符", "60 80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := NewAnalyzer(tt.input)

			assert.Equal(t, 0, analyzer.Length())
			assert.Equal(t, emptySHA256, analyzer.Hash())
			assert.Equal(t, "[]", analyzer.DetectPatterns())
			assert.Equal(t, 0.0, analyzer.Entropy())
			assert.Empty(t, analyzer.ExtractOpcodes())
		})
	}
}

func TestNewAnalyzer_CaseInsensitive(t *testing.T) {
	lower := NewAnalyzer("deadbeef")
	upper := NewAnalyzer("DEADBEEF")

	assert.Equal(t, 4, upper.Length())
	assert.Equal(t, lower.Hash(), upper.Hash())
}

func TestHash_MatchesSHA256(t *testing.T) {
	inputs := []string{"", "00", "ff", "6080604052", strings.Repeat("ab", 1000)}

	for _, in := range inputs {
		raw, err := hex.DecodeString(in)
		require.NoError(t, err)
		sum := sha256.Sum256(raw)

		analyzer := NewAnalyzer(in)
		h := analyzer.Hash()
		assert.Equal(t, hex.EncodeToString(sum[:]), h)
		assert.Len(t, h, 64)
		assert.Equal(t, strings.ToLower(h), h)
		assert.Equal(t, h, NewAnalyzer(in).Hash())
	}
}

func TestCodeHash_Empty(t *testing.T) {
	analyzer := NewAnalyzer("")
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", analyzer.CodeHash())
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"空字节码", "", `[]`},
		{"普通代码", "6080604052", `["has_runtime_code"]`},
		{"包含selfdestruct", "6000ff", `["selfdestruct_present","has_runtime_code"]`},
		{"包含delegatecall", "f4", `["delegatecall_present","has_runtime_code"]`},
		{"两者都包含（顺序固定）", "f4ff", `["selfdestruct_present","delegatecall_present","has_runtime_code"]`},
		{"PUSH立即数中的0xff同样命中", "60ff", `["selfdestruct_present","has_runtime_code"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewAnalyzer(tt.input).DetectPatterns())
		})
	}
}

func TestPatterns_EmptyIsNotNil(t *testing.T) {
	patterns := NewAnalyzer("").Patterns()
	assert.NotNil(t, patterns)
	assert.Empty(t, patterns)
}

func TestEntropy(t *testing.T) {
	// 全部相同的字节
	assert.Equal(t, 0.0, NewAnalyzer(strings.Repeat("aa", 64)).Entropy())
	assert.Equal(t, 0.0, NewAnalyzer("00").Entropy())

	// 每个字节值出现一次
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.Equal(t, 8.0, FromBytes(all).Entropy())

	// 两个值各占一半
	assert.Equal(t, 1.0, NewAnalyzer("00ff00ff").Entropy())
}

func TestExtractOpcodes_ReturnsCopy(t *testing.T) {
	analyzer := NewAnalyzer("6080")
	ops := analyzer.ExtractOpcodes()
	ops[0] = 0xff

	assert.Equal(t, []byte{0x60, 0x80}, analyzer.ExtractOpcodes())
	assert.Equal(t, `["has_runtime_code"]`, analyzer.DetectPatterns())
}

func TestFromBytes_CopiesInput(t *testing.T) {
	raw := []byte{0x60, 0x80}
	analyzer := FromBytes(raw)
	raw[0] = 0xf4

	assert.Equal(t, NewAnalyzer("6080").Hash(), analyzer.Hash())
}

func TestParseAnalyzer_Strict(t *testing.T) {
	analyzer, err := ParseAnalyzer("6080604052")
	require.NoError(t, err)
	assert.Equal(t, 5, analyzer.Length())

	_, err = ParseAnalyzer("xyz")
	assert.ErrorIs(t, err, ErrInvalidHex)

	_, err = ParseHex("abc")
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestDecodeHex_NeverNil(t *testing.T) {
	assert.NotNil(t, DecodeHex("zz"))
	assert.Equal(t, []byte{0xde, 0xad}, DecodeHex("dead"))
}

func TestAnalyzer_ConcurrentReads(t *testing.T) {
	analyzer := NewAnalyzer("6080604052f4ff")
	expected := analyzer.Hash()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, expected, analyzer.Hash())
			assert.Len(t, analyzer.Patterns(), 3)
			_ = analyzer.Entropy()
		}()
	}
	wg.Wait()
}
