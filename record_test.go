package enr

import (
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-enr/pkg/lib/rlp"
)

// newTestRecord 构建一条标准测试记录（ip 127.0.0.1, udp 30303）
func newTestRecord(t *testing.T, kt KeyType) (*Record, *SigningKey) {
	t.Helper()
	key, err := Generate(kt)
	require.NoError(t, err)

	record, err := key.Builder().
		IP4(net.ParseIP("127.0.0.1")).
		UDP4(30303).
		Build(key)
	require.NoError(t, err)
	return record, key
}

// encodeTestRecord 手工组装一条记录编码（用于构造非法输入）
func encodeTestRecord(sig []byte, seq uint64, pairs [][2][]byte) []byte {
	payload := rlp.AppendString(nil, sig)
	payload = rlp.AppendUint64(payload, seq)
	for _, kv := range pairs {
		payload = rlp.AppendString(payload, kv[0])
		payload = append(payload, kv[1]...)
	}
	return rlp.WrapList(payload)
}

// str 字节串值的 RLP 编码
func str(v []byte) []byte {
	return rlp.AppendString(nil, v)
}

// TestRecord_BuildScenario 测试构建场景：秘钥新建 + ip/udp 字段
func TestRecord_BuildScenario(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)

	assert.Equal(t, uint64(1), record.Seq())
	assert.Equal(t, IDv4, record.IdentityScheme())
	assert.Equal(t, key.PublicKey(), record.PublicKey())
	assert.Equal(t, key.NodeID(), record.NodeID())

	// get("ip") 返回 127.0.0.1 的 4 字节大端形式
	ip, ok := record.Get(PairKeyIP4)
	require.True(t, ok)
	assert.Equal(t, []byte{127, 0, 0, 1}, ip)

	// 从 base64 文本解码回等价记录
	decoded, err := Parse(record.String())
	require.NoError(t, err)
	assert.True(t, record.Equal(decoded))

	t.Log("✅ Record 构建场景测试通过")
}

// TestRecord_RoundTrip 测试两种方案的编码往返
func TestRecord_RoundTrip(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeSecp256k1, KeyTypeEd25519} {
		t.Run(kt.String(), func(t *testing.T) {
			record, _ := newTestRecord(t, kt)

			decoded, err := Decode(record.Bytes())
			require.NoError(t, err)
			assert.True(t, record.Equal(decoded))
			assert.Equal(t, record.Seq(), decoded.Seq())
			assert.Equal(t, record.NodeID(), decoded.NodeID())
			assert.Equal(t, record.Signature(), decoded.Signature())
			assert.Equal(t, record.Keys(), decoded.Keys())
		})
	}
}

// TestRecord_MutationIncrementsSeq 测试变更递增序列号并保持签名有效
func TestRecord_MutationIncrementsSeq(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)
	require.Equal(t, uint64(1), record.Seq())

	require.NoError(t, record.SetIP4(net.ParseIP("10.0.0.1"), key))
	assert.Equal(t, uint64(2), record.Seq())

	require.NoError(t, record.SetTCP4(30303, key))
	assert.Equal(t, uint64(3), record.Seq())

	require.NoError(t, record.SetUDP6(9001, key))
	assert.Equal(t, uint64(4), record.Seq())

	require.NoError(t, record.SetIP6(net.ParseIP("::1"), key))
	assert.Equal(t, uint64(5), record.Seq())

	// 变更后仍可解码且逐项一致
	decoded, err := Decode(record.Bytes())
	require.NoError(t, err)
	assert.True(t, record.Equal(decoded))

	ip, ok := decoded.IP4()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip.String())
	tcp, ok := decoded.TCP4()
	require.True(t, ok)
	assert.Equal(t, uint16(30303), tcp)

	t.Log("✅ 变更协议测试通过")
}

// TestRecord_TwoSetIP4 测试两次 SetIP4 各自递增且产生不同的有效签名
func TestRecord_TwoSetIP4(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)

	require.NoError(t, record.SetIP4(net.ParseIP("10.0.0.1"), key))
	sig1 := record.Signature()
	seq1 := record.Seq()

	require.NoError(t, record.SetIP4(net.ParseIP("10.0.0.2"), key))
	sig2 := record.Signature()

	assert.Equal(t, seq1+1, record.Seq())
	assert.NotEqual(t, sig1, sig2)

	_, err := Decode(record.Bytes())
	assert.NoError(t, err)
}

// TestRecord_KeyMismatch 测试错误密钥的变更被拒绝且记录保持原状
func TestRecord_KeyMismatch(t *testing.T) {
	record, _ := newTestRecord(t, KeyTypeSecp256k1)
	otherKey, err := Generate(KeyTypeSecp256k1)
	require.NoError(t, err)
	edKey, err := Generate(KeyTypeEd25519)
	require.NoError(t, err)

	before := record.Bytes()

	assert.ErrorIs(t, record.SetIP4(net.ParseIP("10.0.0.1"), otherKey), ErrKeyMismatch)
	assert.ErrorIs(t, record.Set("foo", []byte{1}, otherKey), ErrKeyMismatch)
	assert.ErrorIs(t, record.SetSeq(100, otherKey), ErrKeyMismatch)
	assert.ErrorIs(t, record.SetTCP4(1, edKey), ErrKeyMismatch)

	// 记录逐字节不变
	assert.Equal(t, before, record.Bytes())
	assert.Equal(t, uint64(1), record.Seq())

	t.Log("✅ KeyMismatch 测试通过")
}

// TestRecord_DecodeDetachedFromInput 测试解码后的记录与输入缓冲区解耦
func TestRecord_DecodeDetachedFromInput(t *testing.T) {
	record, _ := newTestRecord(t, KeyTypeSecp256k1)

	input := record.Bytes()
	decoded, err := Decode(input)
	require.NoError(t, err)

	// 调用方复用缓冲区：已验证的内容不得随之改变
	for i := range input {
		input[i] = 0xff
	}

	ip, ok := decoded.Get(PairKeyIP4)
	require.True(t, ok)
	assert.Equal(t, []byte{127, 0, 0, 1}, ip)
	assert.Equal(t, record.Signature(), decoded.Signature())
	assert.True(t, record.Equal(decoded))

	// 重新编码仍可通过完整校验
	_, err = Decode(decoded.Bytes())
	assert.NoError(t, err)

	t.Log("✅ 解码缓冲区解耦测试通过")
}

// TestRecord_SeqOverflow 测试序列号达到上限后不会回绕
func TestRecord_SeqOverflow(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)

	require.NoError(t, record.SetSeq(math.MaxUint64, key))
	before := record.Bytes()

	// 任何隐式递增都会回绕为 0，必须被拒绝
	assert.ErrorIs(t, record.SetIP4(net.ParseIP("10.0.0.1"), key), ErrSequenceNotIncreasing)
	assert.ErrorIs(t, record.Set("foo", []byte{1}, key), ErrSequenceNotIncreasing)
	assert.ErrorIs(t, record.Remove("foo", key), ErrSequenceNotIncreasing)

	assert.Equal(t, uint64(math.MaxUint64), record.Seq())
	assert.Equal(t, before, record.Bytes())
}

// TestRecord_SetSeq 测试显式序列号必须严格递增
func TestRecord_SetSeq(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)

	require.NoError(t, record.SetSeq(42, key))
	assert.Equal(t, uint64(42), record.Seq())

	// 相等与回退都被拒绝
	assert.ErrorIs(t, record.SetSeq(42, key), ErrSequenceNotIncreasing)
	assert.ErrorIs(t, record.SetSeq(7, key), ErrSequenceNotIncreasing)
	assert.Equal(t, uint64(42), record.Seq())

	// 序列号在编码往返后保留
	decoded, err := Decode(record.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), decoded.Seq())
}

// TestRecord_SetAndRemove 测试自定义键值对的写入与删除
func TestRecord_SetAndRemove(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)

	require.NoError(t, record.Set("mykey", []byte{1, 2, 3}, key))
	v, ok := record.Get("mykey")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)

	require.NoError(t, record.Remove("mykey", key))
	_, ok = record.Get("mykey")
	assert.False(t, ok)

	// id 与公钥键不可直接改写
	assert.Error(t, record.Set(PairKeyID, []byte("v5"), key))
	assert.Error(t, record.Set(PairKeySecp256k1, []byte{1}, key))
	assert.Error(t, record.Remove(PairKeyID, key))
	assert.Error(t, record.Remove(PairKeySecp256k1, key))
}

// TestRecord_TamperDetection 测试篡改编码字节后解码失败
func TestRecord_TamperDetection(t *testing.T) {
	record, _ := newTestRecord(t, KeyTypeSecp256k1)

	// 翻转末字节（udp 端口内容）
	tampered := record.Bytes()
	tampered[len(tampered)-1] ^= 0x01
	_, err := Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// 翻转序列号（紧跟签名元素之后）
	tampered = record.Bytes()
	tampered[2+1+64] ^= 0x01 // 列表头 2 字节 + 签名头 2 字节 + 签名 64 字节，此处改动签名尾部
	_, err = Decode(tampered)
	assert.Error(t, err)

	t.Log("✅ 篡改检测测试通过")
}

// TestRecord_CanonicalOrdering 测试插入顺序不影响编码字节
func TestRecord_CanonicalOrdering(t *testing.T) {
	key, err := Generate(KeyTypeSecp256k1)
	require.NoError(t, err)

	r1, err := NewBuilder().
		IP4(net.ParseIP("10.0.0.1")).
		UDP4(9000).
		TCP4(9001).
		Set("zebra", []byte{1}).
		Build(key)
	require.NoError(t, err)

	r2, err := NewBuilder().
		Set("zebra", []byte{1}).
		TCP4(9001).
		UDP4(9000).
		IP4(net.ParseIP("10.0.0.1")).
		Build(key)
	require.NoError(t, err)

	// secp256k1 签名为确定性 ECDSA，内容一致则编码一致
	assert.Equal(t, r1.Bytes(), r2.Bytes())

	// 键按字节序升序
	assert.Equal(t, []string{"id", "ip", "secp256k1", "tcp", "udp", "zebra"}, r1.Keys())
}

// TestRecord_DecodeErrors 测试各类非法输入的错误分类
func TestRecord_DecodeErrors(t *testing.T) {
	validKey, err := Generate(KeyTypeSecp256k1)
	require.NoError(t, err)
	pub := str(validKey.PublicKey())
	sig := make([]byte, SignatureSize)

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := Decode(nil)
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("NotAList", func(t *testing.T) {
		_, err := Decode([]byte{0x82, 0x01, 0x02})
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("TrailingBytes", func(t *testing.T) {
		record, _ := newTestRecord(t, KeyTypeSecp256k1)
		_, err := Decode(append(record.Bytes(), 0x00))
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("OddPairs", func(t *testing.T) {
		// 列表末尾是孤立的键
		payload := rlp.AppendString(nil, sig)
		payload = rlp.AppendUint64(payload, 1)
		payload = rlp.AppendString(payload, []byte("id"))
		_, err := Decode(rlp.WrapList(payload))
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("DuplicateKeys", func(t *testing.T) {
		raw := encodeTestRecord(sig, 1, [][2][]byte{
			{[]byte("id"), str([]byte("v4"))},
			{[]byte("id"), str([]byte("v4"))},
		})
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("UnsortedKeys", func(t *testing.T) {
		raw := encodeTestRecord(sig, 1, [][2][]byte{
			{[]byte("ip"), str([]byte{10, 0, 0, 1})},
			{[]byte("id"), str([]byte("v4"))},
		})
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("NonCanonicalSeq", func(t *testing.T) {
		payload := rlp.AppendString(nil, sig)
		payload = append(payload, 0x81, 0x05) // 本应编码为 0x05
		payload = rlp.AppendString(payload, []byte("id"))
		payload = append(payload, str([]byte("v4"))...)
		_, err := Decode(rlp.WrapList(payload))
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Run("UnknownScheme", func(t *testing.T) {
		raw := encodeTestRecord(sig, 1, [][2][]byte{
			{[]byte("id"), str([]byte("v5"))},
			{[]byte("secp256k1"), pub},
		})
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrUnknownIdentityScheme)
	})

	t.Run("MissingID", func(t *testing.T) {
		raw := encodeTestRecord(sig, 1, [][2][]byte{
			{[]byte("secp256k1"), pub},
		})
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrUnknownIdentityScheme)
	})

	t.Run("MissingPublicKey", func(t *testing.T) {
		raw := encodeTestRecord(sig, 1, [][2][]byte{
			{[]byte("id"), str([]byte("v4"))},
		})
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrUnknownIdentityScheme)
	})

	t.Run("BadSignature", func(t *testing.T) {
		raw := encodeTestRecord(sig, 1, [][2][]byte{
			{[]byte("id"), str([]byte("v4"))},
			{[]byte("secp256k1"), pub},
		})
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("BadBase64", func(t *testing.T) {
		_, err := Parse("not-a-valid-enr!!!")
		assert.ErrorIs(t, err, ErrMalformedEncoding)
	})

	t.Log("✅ 解码错误分类测试通过")
}

// TestRecord_TooLarge 测试大小上限策略
func TestRecord_TooLarge(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)
	before := record.Bytes()

	// 变更后超限：记录保持原状
	err := record.Set("big", make([]byte, MaxEncodedSize), key)
	assert.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Equal(t, before, record.Bytes())
	assert.Equal(t, uint64(1), record.Seq())

	// 构建时超限
	_, err = NewBuilder().Set("big", make([]byte, MaxEncodedSize)).Build(key)
	assert.ErrorIs(t, err, ErrRecordTooLarge)

	// 解码超限输入
	_, err = Decode(make([]byte, MaxEncodedSize+1))
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

// TestRecord_SoftAccessors 测试类型化访问器的软失败语义
func TestRecord_SoftAccessors(t *testing.T) {
	record, key := newTestRecord(t, KeyTypeSecp256k1)

	// 缺失键
	_, ok := record.IP6()
	assert.False(t, ok)
	_, ok = record.TCP6()
	assert.False(t, ok)
	_, ok = record.Get("nonexistent")
	assert.False(t, ok)

	// 形状不符：3 字节的 "ip6" 值
	require.NoError(t, record.Set(PairKeyIP6, []byte{1, 2, 3}, key))
	_, ok = record.IP6()
	assert.False(t, ok)

	// 存在的键正常返回
	udp, ok := record.UDP4()
	require.True(t, ok)
	assert.Equal(t, uint16(30303), udp)
}

// TestRecord_PairsSorted 测试 Pairs 返回升序键值对
func TestRecord_PairsSorted(t *testing.T) {
	record, _ := newTestRecord(t, KeyTypeSecp256k1)

	pairs := record.Pairs()
	require.NotEmpty(t, pairs)
	for i := 1; i < len(pairs); i++ {
		assert.Less(t, pairs[i-1].Key, pairs[i].Key)
	}

	keys := record.Keys()
	assert.Contains(t, keys, PairKeyID)
	assert.Contains(t, keys, PairKeySecp256k1)
}
