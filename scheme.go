package enr

import (
	"crypto/ed25519"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// ════════════════════════════════════════════════════════════════════════════
//                              身份方案
// ════════════════════════════════════════════════════════════════════════════

// IDv4 "v4" 身份方案标识
//
// 记录的 "id" 键固定为此值；secp256k1 与 ed25519 两个变体
// 共用同一方案标识，通过公钥键名区分。
const IDv4 = "v4"

// 记录中公钥键名
const (
	// PairKeyID "id" 键
	PairKeyID = "id"

	// PairKeySecp256k1 secp256k1 压缩公钥键
	PairKeySecp256k1 = "secp256k1"

	// PairKeyEd25519 ed25519 公钥键
	PairKeyEd25519 = "ed25519"
)

// KeyType 密钥类型
//
// 封闭的身份方案变体集合：每个变体自带密钥长度、公钥表示
// 与签名/验证行为，对字节缓冲区做纯函数运算。
type KeyType int

const (
	// KeyTypeSecp256k1 secp256k1 密钥（"v4" 方案，以太坊兼容）
	KeyTypeSecp256k1 KeyType = 1

	// KeyTypeEd25519 Ed25519 密钥
	KeyTypeEd25519 KeyType = 2
)

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeSecp256k1:
		return "secp256k1"
	case KeyTypeEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// PairKey 返回此密钥类型在记录中存放公钥材料的键名
func (kt KeyType) PairKey() string {
	switch kt {
	case KeyTypeSecp256k1:
		return PairKeySecp256k1
	case KeyTypeEd25519:
		return PairKeyEd25519
	default:
		return ""
	}
}

// 各变体密钥尺寸常量
const (
	// SecretSize 私钥标量/种子大小（两个变体一致，32 字节）
	SecretSize = 32

	// Secp256k1PublicKeySize secp256k1 压缩公钥大小（33 字节）
	Secp256k1PublicKeySize = 33

	// Ed25519PublicKeySize ed25519 公钥大小（32 字节）
	Ed25519PublicKeySize = ed25519.PublicKeySize

	// SignatureSize 签名大小（两个变体一致，64 字节）
	SignatureSize = 64
)

// ============================================================================
//                              摘要与节点标识符
// ============================================================================

// keccak256 计算 Keccak-256 哈希
func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// contentDigest 计算待签名摘要
//
// 摘要始终是规范编码 (seq, pairs)（不含签名）的 Keccak-256 哈希。
func contentDigest(content []byte) []byte {
	return keccak256(content)
}

// nodeIDFromPublicKey 从公钥派生节点标识符
//
// 哈希对象是各方案的规范公钥表示：
//   - secp256k1: 未压缩点的 x‖y（64 字节）
//   - ed25519:   原始公钥（32 字节）
func nodeIDFromPublicKey(kt KeyType, pub []byte) (NodeID, error) {
	var id NodeID
	switch kt {
	case KeyTypeSecp256k1:
		pk, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return id, fmt.Errorf("%w: bad secp256k1 public key: %v", ErrMalformedEncoding, err)
		}
		copy(id[:], keccak256(pk.SerializeUncompressed()[1:]))
		return id, nil

	case KeyTypeEd25519:
		if len(pub) != Ed25519PublicKeySize {
			return id, fmt.Errorf("%w: bad ed25519 public key length %d", ErrMalformedEncoding, len(pub))
		}
		copy(id[:], keccak256(pub))
		return id, nil

	default:
		return id, ErrUnknownIdentityScheme
	}
}

// ============================================================================
//                              签名验证
// ============================================================================

// verifySignature 用公钥验证摘要签名
//
// 签名格式为 64 字节：secp256k1 为 R‖S，ed25519 为标准签名。
func verifySignature(kt KeyType, pub, digest, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}

	switch kt {
	case KeyTypeSecp256k1:
		pk, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return false
		}
		var r, s secp256k1.ModNScalar
		if overflow := r.SetByteSlice(sig[:32]); overflow {
			return false
		}
		if overflow := s.SetByteSlice(sig[32:]); overflow {
			return false
		}
		if r.IsZero() || s.IsZero() {
			return false
		}
		return ecdsa.NewSignature(&r, &s).Verify(digest, pk)

	case KeyTypeEd25519:
		if len(pub) != Ed25519PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub), digest, sig)

	default:
		return false
	}
}

// validatePublicKey 校验公钥字节是否为该变体的合法公钥表示
func validatePublicKey(kt KeyType, pub []byte) error {
	switch kt {
	case KeyTypeSecp256k1:
		if _, err := secp256k1.ParsePubKey(pub); err != nil {
			return fmt.Errorf("%w: bad secp256k1 public key: %v", ErrMalformedEncoding, err)
		}
		return nil
	case KeyTypeEd25519:
		if len(pub) != Ed25519PublicKeySize {
			return fmt.Errorf("%w: bad ed25519 public key length %d", ErrMalformedEncoding, len(pub))
		}
		return nil
	default:
		return ErrUnknownIdentityScheme
	}
}
