package enr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net"
	"strings"

	"github.com/dep2p/go-enr/pkg/lib/rlp"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Record
// ════════════════════════════════════════════════════════════════════════════

// MaxEncodedSize 记录编码的大小上限（字节）
//
// 300 字节是同类系统的互操作约定而非结构本身的逻辑要求，
// 因此作为可配置策略暴露。编码签名与解码两侧都强制执行。
var MaxEncodedSize = 300

// TextPrefix 文本形式的前缀
const TextPrefix = "enr:"

// 常用键名
const (
	// PairKeyIP4 IPv4 地址键（4 字节大端）
	PairKeyIP4 = "ip"

	// PairKeyIP6 IPv6 地址键（16 字节）
	PairKeyIP6 = "ip6"

	// PairKeyTCP4 IPv4 TCP 端口键
	PairKeyTCP4 = "tcp"

	// PairKeyTCP6 IPv6 TCP 端口键
	PairKeyTCP6 = "tcp6"

	// PairKeyUDP4 IPv4 UDP 端口键
	PairKeyUDP4 = "udp"

	// PairKeyUDP6 IPv6 UDP 端口键
	PairKeyUDP6 = "udp6"
)

// Record 签名的、带版本的自描述节点记录
//
// 内容为按键字节序严格升序存放的键值对，加上序列号与签名。
// 每次成功变更都会重新编码、重新签名并递增序列号；
// 变更采用先构造后替换的方式，失败时记录保持原状。
type Record struct {
	seq     uint64
	pairs   []pair // 始终按键升序
	sig     []byte
	keyType KeyType
	raw     []byte // 完整规范编码（含签名）
	nodeID  NodeID
}

// Pair 记录中的一个键值对
//
// Value 为该值的完整 RLP 编码（含头），保证非字节串值
// 也能逐字节往返。
type Pair struct {
	Key   string
	Value []byte
}

// pair 内部键值对，v 为值的完整 RLP 编码
type pair struct {
	k string
	v []byte
}

// ============================================================================
//                              解码构造
// ============================================================================

// Decode 从规范字节解码记录
//
// 解码即校验：非规范编码返回 ErrMalformedEncoding，
// 未知身份方案返回 ErrUnknownIdentityScheme，
// 签名不合法返回 ErrInvalidSignature——绝不返回未验证的记录。
func Decode(input []byte) (*Record, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedEncoding)
	}
	if len(input) > MaxEncodedSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrRecordTooLarge, len(input), MaxEncodedSize)
	}

	// 先拷贝再解析：签名与键值对切片均指向记录自有的缓冲区，
	// 调用方之后改写 input 不影响已验证的内容
	raw := make([]byte, len(input))
	copy(raw, input)

	payload, rest, err := rlp.SplitList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after record", ErrMalformedEncoding, len(rest))
	}

	// [signature, seq, k1, v1, k2, v2, ...]
	sig, tail, err := rlp.SplitString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature element: %v", ErrMalformedEncoding, err)
	}
	seq, tail, err := rlp.SplitUint64(tail)
	if err != nil {
		return nil, fmt.Errorf("%w: bad sequence element: %v", ErrMalformedEncoding, err)
	}

	var pairs []pair
	for len(tail) > 0 {
		kb, t, err := rlp.SplitString(tail)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pair key: %v", ErrMalformedEncoding, err)
		}
		key := string(kb)
		if n := len(pairs); n > 0 {
			switch {
			case key == pairs[n-1].k:
				return nil, fmt.Errorf("%w: duplicate pair key %q", ErrMalformedEncoding, key)
			case key < pairs[n-1].k:
				return nil, fmt.Errorf("%w: pair keys not sorted at %q", ErrMalformedEncoding, key)
			}
		}
		if len(t) == 0 {
			return nil, fmt.Errorf("%w: pair key %q has no value", ErrMalformedEncoding, key)
		}
		item, t, err := rlp.SplitRaw(t)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pair value for %q: %v", ErrMalformedEncoding, key, err)
		}
		pairs = append(pairs, pair{k: key, v: item})
		tail = t
	}

	// 由 id 键重新派生身份方案
	idVal, ok := pairContent(pairs, PairKeyID)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q pair", ErrUnknownIdentityScheme, PairKeyID)
	}
	if string(idVal) != IDv4 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentityScheme, string(idVal))
	}
	var kt KeyType
	switch {
	case hasPair(pairs, PairKeySecp256k1):
		kt = KeyTypeSecp256k1
	case hasPair(pairs, PairKeyEd25519):
		kt = KeyTypeEd25519
	default:
		return nil, fmt.Errorf("%w: no public key pair", ErrUnknownIdentityScheme)
	}
	pub, _ := pairContent(pairs, kt.PairKey())
	if err := validatePublicKey(kt, pub); err != nil {
		return nil, err
	}

	// 对与输入逐字节一致的内容编码验证签名
	digest := contentDigest(rlp.WrapList(contentPayload(seq, pairs)))
	if !verifySignature(kt, pub, digest, sig) {
		return nil, ErrInvalidSignature
	}

	nodeID, err := nodeIDFromPublicKey(kt, pub)
	if err != nil {
		return nil, err
	}

	return &Record{
		seq:     seq,
		pairs:   pairs,
		sig:     sig,
		keyType: kt,
		raw:     raw,
		nodeID:  nodeID,
	}, nil
}

// Parse 从 base64url 文本解码记录
//
// 接受带或不带 "enr:" 前缀的无填充 base64url 文本。
func Parse(text string) (*Record, error) {
	text = strings.TrimPrefix(text, TextPrefix)
	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", ErrMalformedEncoding, err)
	}
	return Decode(raw)
}

// ============================================================================
//                              读取访问
// ============================================================================

// Seq 返回序列号
func (r *Record) Seq() uint64 {
	return r.seq
}

// NodeID 返回节点标识符
func (r *Record) NodeID() NodeID {
	return r.nodeID
}

// KeyType 返回治理此记录的密钥类型
func (r *Record) KeyType() KeyType {
	return r.keyType
}

// IdentityScheme 返回 id 键的值（如 "v4"）
func (r *Record) IdentityScheme() string {
	v, _ := pairContent(r.pairs, PairKeyID)
	return string(v)
}

// PublicKey 返回公钥的记录内表示
func (r *Record) PublicKey() []byte {
	pub, _ := pairContent(r.pairs, r.keyType.PairKey())
	out := make([]byte, len(pub))
	copy(out, pub)
	return out
}

// Signature 返回当前签名的副本
func (r *Record) Signature() []byte {
	out := make([]byte, len(r.sig))
	copy(out, r.sig)
	return out
}

// Get 返回键对应的字节串值
//
// 键不存在或值不是字节串时返回 ok=false，不报错。
func (r *Record) Get(key string) ([]byte, bool) {
	v, ok := pairContent(r.pairs, key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Keys 返回全部键（升序）
func (r *Record) Keys() []string {
	keys := make([]string, len(r.pairs))
	for i, p := range r.pairs {
		keys[i] = p.k
	}
	return keys
}

// Pairs 返回全部键值对（升序，值为完整 RLP 编码）
func (r *Record) Pairs() []Pair {
	out := make([]Pair, len(r.pairs))
	for i, p := range r.pairs {
		v := make([]byte, len(p.v))
		copy(v, p.v)
		out[i] = Pair{Key: p.k, Value: v}
	}
	return out
}

// IP4 返回 IPv4 地址
//
// 键缺失或存储字节不是 4 字节时返回 ok=false。
func (r *Record) IP4() (net.IP, bool) {
	return r.ipPair(PairKeyIP4, net.IPv4len)
}

// IP6 返回 IPv6 地址
func (r *Record) IP6() (net.IP, bool) {
	return r.ipPair(PairKeyIP6, net.IPv6len)
}

// TCP4 返回 IPv4 TCP 端口
func (r *Record) TCP4() (uint16, bool) {
	return r.portPair(PairKeyTCP4)
}

// TCP6 返回 IPv6 TCP 端口
func (r *Record) TCP6() (uint16, bool) {
	return r.portPair(PairKeyTCP6)
}

// UDP4 返回 IPv4 UDP 端口
func (r *Record) UDP4() (uint16, bool) {
	return r.portPair(PairKeyUDP4)
}

// UDP6 返回 IPv6 UDP 端口
func (r *Record) UDP6() (uint16, bool) {
	return r.portPair(PairKeyUDP6)
}

// ipPair 解析地址键，长度不符时按缺失处理
func (r *Record) ipPair(key string, size int) (net.IP, bool) {
	v, ok := pairContent(r.pairs, key)
	if !ok || len(v) != size {
		return nil, false
	}
	ip := make(net.IP, size)
	copy(ip, v)
	return ip, true
}

// portPair 解析端口键，非规范整数或超出 uint16 时按缺失处理
func (r *Record) portPair(key string) (uint16, bool) {
	p, ok := findPair(r.pairs, key)
	if !ok {
		return 0, false
	}
	v, rest, err := rlp.SplitUint64(p.v)
	if err != nil || len(rest) > 0 || v > 0xffff {
		return 0, false
	}
	return uint16(v), true
}

// ============================================================================
//                              编码输出
// ============================================================================

// Bytes 返回完整规范编码（含签名）的副本
func (r *Record) Bytes() []byte {
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

// String 返回带 "enr:" 前缀的无填充 base64url 文本
func (r *Record) String() string {
	return TextPrefix + base64.RawURLEncoding.EncodeToString(r.raw)
}

// Equal 判断两条记录是否相等
//
// 相等定义为完整规范编码（含签名）逐字节一致。
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(r.raw, other.raw)
}

// ============================================================================
//                              变更协议
// ============================================================================

// Set 写入或覆盖一个字节串键值对，重新签名并递增序列号
//
// id 与公钥键不可通过 Set 修改。
func (r *Record) Set(key string, value []byte, sk *SigningKey) error {
	if isReservedKey(key) {
		return fmt.Errorf("enr: pair %q cannot be set directly", key)
	}
	return r.mutate(sk, r.seq+1, func(ps []pair) []pair {
		return setPair(ps, key, rlp.AppendString(nil, value))
	})
}

// Remove 删除一个键值对，重新签名并递增序列号
//
// id 与公钥键不可删除；删除不存在的键同样走完整变更协议。
func (r *Record) Remove(key string, sk *SigningKey) error {
	if isReservedKey(key) {
		return fmt.Errorf("enr: pair %q cannot be removed", key)
	}
	return r.mutate(sk, r.seq+1, func(ps []pair) []pair {
		return removePair(ps, key)
	})
}

// SetIP4 设置 IPv4 地址
func (r *Record) SetIP4(ip net.IP, sk *SigningKey) error {
	v4 := ip.To4()
	if v4 == nil {
		return fmt.Errorf("enr: %v is not an IPv4 address", ip)
	}
	return r.mutate(sk, r.seq+1, func(ps []pair) []pair {
		return setPair(ps, PairKeyIP4, rlp.AppendString(nil, v4))
	})
}

// SetIP6 设置 IPv6 地址
func (r *Record) SetIP6(ip net.IP, sk *SigningKey) error {
	v6 := ip.To16()
	if v6 == nil {
		return fmt.Errorf("enr: %v is not an IP address", ip)
	}
	return r.mutate(sk, r.seq+1, func(ps []pair) []pair {
		return setPair(ps, PairKeyIP6, rlp.AppendString(nil, v6))
	})
}

// SetTCP4 设置 IPv4 TCP 端口
func (r *Record) SetTCP4(port uint16, sk *SigningKey) error {
	return r.setPort(PairKeyTCP4, port, sk)
}

// SetTCP6 设置 IPv6 TCP 端口
func (r *Record) SetTCP6(port uint16, sk *SigningKey) error {
	return r.setPort(PairKeyTCP6, port, sk)
}

// SetUDP4 设置 IPv4 UDP 端口
func (r *Record) SetUDP4(port uint16, sk *SigningKey) error {
	return r.setPort(PairKeyUDP4, port, sk)
}

// SetUDP6 设置 IPv6 UDP 端口
func (r *Record) SetUDP6(port uint16, sk *SigningKey) error {
	return r.setPort(PairKeyUDP6, port, sk)
}

// setPort 端口以最小大端整数形式编码
func (r *Record) setPort(key string, port uint16, sk *SigningKey) error {
	return r.mutate(sk, r.seq+1, func(ps []pair) []pair {
		return setPair(ps, key, rlp.AppendUint64(nil, uint64(port)))
	})
}

// SetSeq 显式设置序列号
//
// 序列号必须严格大于当前值，否则返回 ErrSequenceNotIncreasing。
func (r *Record) SetSeq(seq uint64, sk *SigningKey) error {
	return r.mutate(sk, seq, func(ps []pair) []pair { return ps })
}

// mutate 执行变更协议
//
// 先校验签名密钥与记录公钥一致，新序列号必须严格大于当前值
// （当前值为 uint64 上限时任何递增都会在此被拒绝），
// 再在本地副本上应用变更、编码并重新签名，
// 全部成功后才一次性替换记录状态。
func (r *Record) mutate(sk *SigningKey, seq uint64, apply func([]pair) []pair) error {
	pub, _ := pairContent(r.pairs, r.keyType.PairKey())
	if !sk.Matches(r.keyType, pub) {
		return ErrKeyMismatch
	}
	if seq <= r.seq {
		return fmt.Errorf("%w: %d <= current %d", ErrSequenceNotIncreasing, seq, r.seq)
	}

	pairs := apply(clonePairs(r.pairs))
	sig, raw, err := signRecord(sk, seq, pairs)
	if err != nil {
		return err
	}

	r.seq = seq
	r.pairs = pairs
	r.sig = sig
	r.raw = raw
	return nil
}

// ============================================================================
//                              编码与签名
// ============================================================================

// contentPayload 构造列表负载 [seq, k1, v1, ...]（不含列表头）
func contentPayload(seq uint64, pairs []pair) []byte {
	payload := rlp.AppendUint64(nil, seq)
	for _, p := range pairs {
		payload = rlp.AppendString(payload, []byte(p.k))
		payload = append(payload, p.v...)
	}
	return payload
}

// signRecord 编码内容、签名并产出完整记录编码
//
// 摘要是内容列表 [seq, k1, v1, ...] 规范编码的 Keccak-256，
// 完整编码为 [signature, seq, k1, v1, ...]。
func signRecord(sk *SigningKey, seq uint64, pairs []pair) (sig, raw []byte, err error) {
	payload := contentPayload(seq, pairs)
	sig, err = sk.Sign(contentDigest(rlp.WrapList(payload)))
	if err != nil {
		return nil, nil, err
	}

	outer := rlp.AppendString(nil, sig)
	outer = append(outer, payload...)
	raw = rlp.WrapList(outer)
	if len(raw) > MaxEncodedSize {
		return nil, nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrRecordTooLarge, len(raw), MaxEncodedSize)
	}
	return sig, raw, nil
}

// ============================================================================
//                              键值对操作
// ============================================================================

// isReservedKey id 与公钥键由签名流程维护，不允许直接改写
func isReservedKey(key string) bool {
	return key == PairKeyID || key == PairKeySecp256k1 || key == PairKeyEd25519
}

// findPair 二分定位键值对
func findPair(ps []pair, key string) (pair, bool) {
	lo, hi := 0, len(ps)
	for lo < hi {
		mid := (lo + hi) / 2
		if ps[mid].k < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(ps) && ps[lo].k == key {
		return ps[lo], true
	}
	return pair{}, false
}

// pairContent 返回键对应值的字节串内容
func pairContent(ps []pair, key string) ([]byte, bool) {
	p, ok := findPair(ps, key)
	if !ok {
		return nil, false
	}
	content, rest, err := rlp.SplitString(p.v)
	if err != nil || len(rest) > 0 {
		return nil, false
	}
	return content, true
}

// hasPair 判断键是否存在
func hasPair(ps []pair, key string) bool {
	_, ok := findPair(ps, key)
	return ok
}

// setPair 按键序插入或覆盖，保持升序不变量
func setPair(ps []pair, key string, item []byte) []pair {
	for i, p := range ps {
		switch {
		case p.k == key:
			ps[i].v = item
			return ps
		case p.k > key:
			ps = append(ps, pair{})
			copy(ps[i+1:], ps[i:])
			ps[i] = pair{k: key, v: item}
			return ps
		}
	}
	return append(ps, pair{k: key, v: item})
}

// removePair 删除键值对，键不存在时为空操作
func removePair(ps []pair, key string) []pair {
	for i, p := range ps {
		if p.k == key {
			return append(ps[:i], ps[i+1:]...)
		}
	}
	return ps
}

// clonePairs 深拷贝键值对切片
func clonePairs(ps []pair) []pair {
	out := make([]pair, len(ps))
	for i, p := range ps {
		v := make([]byte, len(p.v))
		copy(v, p.v)
		out[i] = pair{k: p.k, v: v}
	}
	return out
}
