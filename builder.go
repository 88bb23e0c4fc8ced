package enr

import (
	"fmt"
	"net"

	"github.com/dep2p/go-enr/pkg/lib/rlp"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Builder
// ════════════════════════════════════════════════════════════════════════════

// Builder 在首次签名前累积键值对
//
// 纯累积结构，链式调用无顺序要求，Build 不消耗构建器：
// 同一构建器用不同密钥 Build 两次会得到两条独立签名的记录。
type Builder struct {
	pairs map[string][]byte // 值为完整 RLP 编码
	err   error             // 首个累积错误，在 Build 时返回
}

// NewBuilder 创建空的记录构建器
func NewBuilder() *Builder {
	return &Builder{pairs: make(map[string][]byte)}
}

// Set 累积一个字节串键值对
//
// id 与公钥键由 Build 写入，不允许手动设置。
func (b *Builder) Set(key string, value []byte) *Builder {
	if isReservedKey(key) {
		b.fail(fmt.Errorf("enr: pair %q cannot be set directly", key))
		return b
	}
	b.pairs[key] = rlp.AppendString(nil, value)
	return b
}

// IP4 累积 IPv4 地址
func (b *Builder) IP4(ip net.IP) *Builder {
	v4 := ip.To4()
	if v4 == nil {
		b.fail(fmt.Errorf("enr: %v is not an IPv4 address", ip))
		return b
	}
	b.pairs[PairKeyIP4] = rlp.AppendString(nil, v4)
	return b
}

// IP6 累积 IPv6 地址
func (b *Builder) IP6(ip net.IP) *Builder {
	v6 := ip.To16()
	if v6 == nil {
		b.fail(fmt.Errorf("enr: %v is not an IP address", ip))
		return b
	}
	b.pairs[PairKeyIP6] = rlp.AppendString(nil, v6)
	return b
}

// TCP4 累积 IPv4 TCP 端口
func (b *Builder) TCP4(port uint16) *Builder {
	return b.port(PairKeyTCP4, port)
}

// TCP6 累积 IPv6 TCP 端口
func (b *Builder) TCP6(port uint16) *Builder {
	return b.port(PairKeyTCP6, port)
}

// UDP4 累积 IPv4 UDP 端口
func (b *Builder) UDP4(port uint16) *Builder {
	return b.port(PairKeyUDP4, port)
}

// UDP6 累积 IPv6 UDP 端口
func (b *Builder) UDP6(port uint16) *Builder {
	return b.port(PairKeyUDP6, port)
}

// port 端口以最小大端整数形式编码
func (b *Builder) port(key string, port uint16) *Builder {
	b.pairs[key] = rlp.AppendUint64(nil, uint64(port))
	return b
}

// fail 记住首个累积错误
func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build 用签名密钥产出初始记录
//
// 写入 id 键与由 sk 派生的公钥键，序列号置 1，签名并返回。
// 构建器自身不被修改。
func (b *Builder) Build(sk *SigningKey) (*Record, error) {
	if b.err != nil {
		return nil, b.err
	}

	pairs := make([]pair, 0, len(b.pairs)+2)
	for k, v := range b.pairs {
		item := make([]byte, len(v))
		copy(item, v)
		pairs = setPair(pairs, k, item)
	}
	pub := sk.PublicKey()
	pairs = setPair(pairs, PairKeyID, rlp.AppendString(nil, []byte(IDv4)))
	pairs = setPair(pairs, sk.KeyType().PairKey(), rlp.AppendString(nil, pub))

	const initialSeq = 1
	sig, raw, err := signRecord(sk, initialSeq, pairs)
	if err != nil {
		return nil, err
	}

	nodeID, err := nodeIDFromPublicKey(sk.KeyType(), pub)
	if err != nil {
		return nil, err
	}

	return &Record{
		seq:     initialSeq,
		pairs:   pairs,
		sig:     sig,
		keyType: sk.KeyType(),
		raw:     raw,
		nodeID:  nodeID,
	}, nil
}
