package rlp

import "errors"

// 解码错误定义
var (
	// ErrEmptyInput 输入为空
	ErrEmptyInput = errors.New("rlp: empty input")

	// ErrTruncated 输入被截断（声明长度超过剩余字节）
	ErrTruncated = errors.New("rlp: input truncated")

	// ErrCanonSize 非规范的长度编码
	ErrCanonSize = errors.New("rlp: non-canonical size")

	// ErrCanonInt 非规范的整数编码（前导零）
	ErrCanonInt = errors.New("rlp: non-canonical integer")

	// ErrUintOverflow 整数超出 uint64 范围
	ErrUintOverflow = errors.New("rlp: integer overflows uint64")

	// ErrExpectedString 期望字节串，得到列表
	ErrExpectedString = errors.New("rlp: expected string")

	// ErrExpectedList 期望列表，得到字节串
	ErrExpectedList = errors.New("rlp: expected list")
)
