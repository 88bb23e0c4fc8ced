// Package rlp 提供规范化的递归长度前缀（RLP）编解码
//
// RLP 是节点记录的规范二进制格式：同一逻辑内容必须产生唯一的
// 字节表示，否则签名校验无法成立。因此解码端不仅解析结构，
// 还强制校验最小长度编码——任何非规范形式都会被拒绝。
package rlp

// ============================================================================
//                              类型定义
// ============================================================================

// Kind 表示一个 RLP 元素的种类
type Kind int

const (
	// KindByte 单字节（值小于 0x80，编码为其自身）
	KindByte Kind = iota

	// KindString 字节串
	KindString

	// KindList 列表
	KindList
)

// String 返回种类的字符串表示
func (k Kind) String() string {
	switch k {
	case KindByte:
		return "byte"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// RLP 编码阈值常量
const (
	// shortThreshold 短编码的最大负载长度
	shortThreshold = 55

	// singleByteMax 可编码为自身的最大单字节值
	singleByteMax = 0x7f
)

// ============================================================================
//                              编码
// ============================================================================

// AppendString 将字节串 s 以 RLP 形式追加到 dst
//
// 单字节且值小于 0x80 时编码为其自身，其余情况带长度头。
func AppendString(dst, s []byte) []byte {
	if len(s) == 1 && s[0] <= singleByteMax {
		return append(dst, s[0])
	}
	dst = appendHeader(dst, 0x80, len(s))
	return append(dst, s...)
}

// AppendUint64 将无符号整数 v 以最小大端形式追加到 dst
//
// 零编码为空字节串（0x80），无前导零字节。
func AppendUint64(dst []byte, v uint64) []byte {
	switch {
	case v == 0:
		return append(dst, 0x80)
	case v <= singleByteMax:
		return append(dst, byte(v))
	default:
		return AppendString(dst, intBytes(v))
	}
}

// WrapList 为列表负载 payload 添加列表头，返回完整的列表编码
func WrapList(payload []byte) []byte {
	out := appendHeader(nil, 0xc0, len(payload))
	return append(out, payload...)
}

// appendHeader 追加长度头
//
// base 为 0x80（字节串）或 0xc0（列表）。
func appendHeader(dst []byte, base byte, size int) []byte {
	if size <= shortThreshold {
		return append(dst, base+byte(size))
	}
	sz := intBytes(uint64(size))
	dst = append(dst, base+shortThreshold+byte(len(sz)))
	return append(dst, sz...)
}

// intBytes 返回 v 的最小大端字节表示（v > 0）
func intBytes(v uint64) []byte {
	n := 0
	for t := v; t > 0; t >>= 8 {
		n++
	}
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// ============================================================================
//                              解码
// ============================================================================

// Split 解析 buf 开头的一个 RLP 元素
//
// 返回元素种类、元素内容（不含头）以及剩余字节。
// 所有非规范形式（非最小长度头、截断输入）均返回错误。
func Split(buf []byte) (k Kind, content, rest []byte, err error) {
	if len(buf) == 0 {
		return 0, nil, nil, ErrEmptyInput
	}

	b0 := buf[0]
	switch {
	case b0 <= singleByteMax:
		// 单字节，编码为其自身
		return KindByte, buf[:1], buf[1:], nil

	case b0 <= 0xb7:
		// 短字节串
		size := int(b0 - 0x80)
		content, rest, err = cut(buf[1:], size)
		if err != nil {
			return 0, nil, nil, err
		}
		// 单字节且值小于 0x80 必须编码为其自身
		if size == 1 && content[0] <= singleByteMax {
			return 0, nil, nil, ErrCanonSize
		}
		return KindString, content, rest, nil

	case b0 <= 0xbf:
		// 长字节串
		size, tail, err := longSize(buf[1:], int(b0-0xb7))
		if err != nil {
			return 0, nil, nil, err
		}
		content, rest, err = cut(tail, size)
		if err != nil {
			return 0, nil, nil, err
		}
		return KindString, content, rest, nil

	case b0 <= 0xf7:
		// 短列表
		content, rest, err = cut(buf[1:], int(b0-0xc0))
		if err != nil {
			return 0, nil, nil, err
		}
		return KindList, content, rest, nil

	default:
		// 长列表
		size, tail, err := longSize(buf[1:], int(b0-0xf7))
		if err != nil {
			return 0, nil, nil, err
		}
		content, rest, err = cut(tail, size)
		if err != nil {
			return 0, nil, nil, err
		}
		return KindList, content, rest, nil
	}
}

// SplitString 解析一个字节串元素，列表返回错误
func SplitString(buf []byte) (content, rest []byte, err error) {
	k, content, rest, err := Split(buf)
	if err != nil {
		return nil, nil, err
	}
	if k == KindList {
		return nil, nil, ErrExpectedString
	}
	return content, rest, nil
}

// SplitList 解析一个列表元素，返回列表负载
func SplitList(buf []byte) (payload, rest []byte, err error) {
	k, payload, rest, err := Split(buf)
	if err != nil {
		return nil, nil, err
	}
	if k != KindList {
		return nil, nil, ErrExpectedList
	}
	return payload, rest, nil
}

// SplitUint64 解析一个规范整数元素
//
// 整数以最小大端形式编码：零为空字节串，无前导零，最多 8 字节。
func SplitUint64(buf []byte) (v uint64, rest []byte, err error) {
	content, rest, err := SplitString(buf)
	if err != nil {
		return 0, nil, err
	}
	switch {
	case len(content) > 8:
		return 0, nil, ErrUintOverflow
	case len(content) > 0 && content[0] == 0:
		return 0, nil, ErrCanonInt
	}
	for _, b := range content {
		v = v<<8 | uint64(b)
	}
	return v, rest, nil
}

// SplitRaw 解析一个元素并返回其完整编码（含头）
//
// 用于保留不透明值的原始字节，保证重新编码与输入逐字节一致。
func SplitRaw(buf []byte) (item, rest []byte, err error) {
	_, _, rest, err = Split(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:len(buf)-len(rest)], rest, nil
}

// longSize 解析长编码的长度字段
//
// lenOfLen 为长度字段自身的字节数（1-8）。
// 长度字段不得有前导零，且表示的长度必须大于 55，
// 否则应使用短编码——两者都是规范性错误。
func longSize(buf []byte, lenOfLen int) (size int, rest []byte, err error) {
	if len(buf) < lenOfLen {
		return 0, nil, ErrTruncated
	}
	if buf[0] == 0 {
		return 0, nil, ErrCanonSize
	}
	var v uint64
	for _, b := range buf[:lenOfLen] {
		v = v<<8 | uint64(b)
	}
	if v <= shortThreshold {
		return 0, nil, ErrCanonSize
	}
	if v > uint64(maxInt) {
		return 0, nil, ErrTruncated
	}
	return int(v), buf[lenOfLen:], nil
}

// cut 从 buf 切出 size 字节的内容
func cut(buf []byte, size int) (content, rest []byte, err error) {
	if len(buf) < size {
		return nil, nil, ErrTruncated
	}
	return buf[:size], buf[size:], nil
}

const maxInt = int(^uint(0) >> 1)
