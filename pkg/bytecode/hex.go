package bytecode

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidHex 十六进制输入无效（严格模式）
var ErrInvalidHex = errors.New("无效的十六进制字节码")

// DecodeHex 解码十六进制字符串，任何无效输入都返回空字节切片
//
// 大小写不敏感；奇数长度、非十六进制字符以及 "0x" 前缀均视为无效。
func DecodeHex(s string) []byte {
	b, err := ParseHex(s)
	if err != nil {
		return []byte{}
	}
	return b
}

// ParseHex 严格解码十六进制字符串
func ParseHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}
