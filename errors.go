package enr

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 解码相关错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrMalformedEncoding 记录编码非规范或被截断
	ErrMalformedEncoding = errors.New("malformed record encoding")

	// ErrUnknownIdentityScheme 无法识别的身份方案（id 键缺失或值未知）
	ErrUnknownIdentityScheme = errors.New("unknown identity scheme")

	// ErrInvalidSignature 签名校验失败
	ErrInvalidSignature = errors.New("invalid record signature")

	// ErrRecordTooLarge 记录编码超过大小上限
	ErrRecordTooLarge = errors.New("record too large")

	// ────────────────────────────────────────────────────────────────────────
	// 密钥与变更相关错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidKeyMaterial 密钥字节不构成有效的标量或种子
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrKeyMismatch 签名密钥与记录当前公钥不匹配
	ErrKeyMismatch = errors.New("signing key does not match record public key")

	// ErrSequenceNotIncreasing 显式设置的序列号未严格递增
	ErrSequenceNotIncreasing = errors.New("sequence number not increasing")
)
