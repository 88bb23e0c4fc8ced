package enr

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ════════════════════════════════════════════════════════════════════════════
//                              SigningKey
// ════════════════════════════════════════════════════════════════════════════

// SigningKey 持有一种身份方案的私钥材料
//
// 由创建者独占，绝不进入记录的编码输出。
// 内部为封闭的带标签变体：keyType 决定哪个字段有效。
type SigningKey struct {
	keyType KeyType
	secp    *secp256k1.PrivateKey // keyType == KeyTypeSecp256k1
	ed      ed25519.PrivateKey    // keyType == KeyTypeEd25519
}

// Generate 用系统加密安全随机源生成签名密钥
func Generate(kt KeyType) (*SigningKey, error) {
	return GenerateWithReader(kt, rand.Reader)
}

// GenerateWithReader 用指定随机源生成签名密钥
//
// 随机源作为参数注入而非环境全局量，便于测试时使用确定性源。
func GenerateWithReader(kt KeyType, src io.Reader) (*SigningKey, error) {
	switch kt {
	case KeyTypeSecp256k1:
		priv, err := secp256k1.GeneratePrivateKeyFromRand(src)
		if err != nil {
			return nil, err
		}
		return &SigningKey{keyType: kt, secp: priv}, nil

	case KeyTypeEd25519:
		_, priv, err := ed25519.GenerateKey(src)
		if err != nil {
			return nil, err
		}
		return &SigningKey{keyType: kt, ed: priv}, nil

	default:
		return nil, ErrUnknownIdentityScheme
	}
}

// NewSigningKey 从 32 字节私钥材料构造签名密钥
//
// secp256k1 要求字节构成 [1, n-1] 内的标量，
// ed25519 将字节视为种子。不满足时返回 ErrInvalidKeyMaterial。
func NewSigningKey(kt KeyType, secret []byte) (*SigningKey, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeyMaterial, SecretSize, len(secret))
	}

	switch kt {
	case KeyTypeSecp256k1:
		var scalar secp256k1.ModNScalar
		if overflow := scalar.SetByteSlice(secret); overflow {
			return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKeyMaterial)
		}
		if scalar.IsZero() {
			return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKeyMaterial)
		}
		return &SigningKey{keyType: kt, secp: secp256k1.NewPrivateKey(&scalar)}, nil

	case KeyTypeEd25519:
		return &SigningKey{keyType: kt, ed: ed25519.NewKeyFromSeed(secret)}, nil

	default:
		return nil, ErrUnknownIdentityScheme
	}
}

// KeyType 返回密钥类型
func (k *SigningKey) KeyType() KeyType {
	return k.keyType
}

// PublicKey 返回公钥的记录内表示
//
// secp256k1 为 33 字节压缩点，ed25519 为 32 字节原始编码。
func (k *SigningKey) PublicKey() []byte {
	switch k.keyType {
	case KeyTypeSecp256k1:
		return k.secp.PubKey().SerializeCompressed()
	case KeyTypeEd25519:
		pub := k.ed.Public().(ed25519.PublicKey)
		out := make([]byte, len(pub))
		copy(out, pub)
		return out
	default:
		return nil
	}
}

// NodeID 返回由公钥派生的节点标识符
func (k *SigningKey) NodeID() NodeID {
	id, _ := nodeIDFromPublicKey(k.keyType, k.PublicKey())
	return id
}

// Sign 对 32 字节摘要签名
//
// secp256k1 使用 RFC 6979 确定性 ECDSA，输出 R‖S（64 字节）；
// ed25519 按其原生约定对摘要签名。
func (k *SigningKey) Sign(digest []byte) ([]byte, error) {
	switch k.keyType {
	case KeyTypeSecp256k1:
		sig := ecdsa.Sign(k.secp, digest)
		r, s := sig.R(), sig.S()
		rb, sb := r.Bytes(), s.Bytes()
		out := make([]byte, SignatureSize)
		copy(out[:32], rb[:])
		copy(out[32:], sb[:])
		return out, nil

	case KeyTypeEd25519:
		return ed25519.Sign(k.ed, digest), nil

	default:
		return nil, ErrUnknownIdentityScheme
	}
}

// Secret 返回 32 字节私钥材料（标量或种子）
//
// 仅供调用方自行保管密钥使用，切勿写入记录。
func (k *SigningKey) Secret() []byte {
	switch k.keyType {
	case KeyTypeSecp256k1:
		return k.secp.Serialize()
	case KeyTypeEd25519:
		seed := make([]byte, ed25519.SeedSize)
		copy(seed, k.ed.Seed())
		return seed
	default:
		return nil
	}
}

// Matches 判断公钥字节是否与此签名密钥对应
//
// 使用常量时间比较以防止时序攻击。
func (k *SigningKey) Matches(kt KeyType, pub []byte) bool {
	if kt != k.keyType {
		return false
	}
	return subtle.ConstantTimeCompare(k.PublicKey(), pub) == 1
}

// Builder 返回一个空的记录构建器
func (k *SigningKey) Builder() *Builder {
	return NewBuilder()
}
