package enr

import "encoding/hex"

// NodeIDSize 节点标识符大小（32 字节）
const NodeIDSize = 32

// NodeID 节点标识符
//
// 由身份方案对公钥的规范表示做一次性哈希得到，
// 用于在网络中寻址和识别记录的所有者。
type NodeID [NodeIDSize]byte

// Bytes 返回节点标识符的字节副本
func (id NodeID) Bytes() []byte {
	b := make([]byte, NodeIDSize)
	copy(b, id[:])
	return b
}

// String 返回十六进制表示
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// NodeIDFromBytes 从 32 字节切片构造节点标识符
func NodeIDFromBytes(b []byte) (NodeID, bool) {
	var id NodeID
	if len(b) != NodeIDSize {
		return id, false
	}
	copy(id[:], b)
	return id, true
}
