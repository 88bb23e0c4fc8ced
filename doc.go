// Package enr 提供签名的、带版本的自描述节点记录
//
// 节点记录（ENR）是去中心化网络中节点间交换的紧凑二进制结构，
// 用于公布网络地址与公开身份，无需可信第三方即可验证。
//
// # 核心概念
//
// 围绕四个核心概念构建：
//
//   - Record: 键值内容 + 序列号 + 签名，读写都强制规范编码与方案约束
//   - SigningKey: 持有一种身份方案的私钥，负责公钥派生与签名
//   - Builder: 首次签名前的键值累积器
//   - 身份方案: {secp256k1 "v4", ed25519} 封闭变体集，
//     派生节点标识符并完成签名/验证
//
// # 快速开始
//
//	import "github.com/dep2p/go-enr"
//
//	// 1. 生成签名密钥
//	key, err := enr.Generate(enr.KeyTypeSecp256k1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// 2. 构建记录
//	record, err := key.Builder().
//	    IP4(net.ParseIP("127.0.0.1")).
//	    UDP4(30303).
//	    Build(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// 3. 编码与解码
//	text := record.String() // "enr:..."
//	decoded, err := enr.Parse(text)
//
//	// 4. 变更（重新签名并递增序列号）
//	err = record.SetTCP4(30303, key)
//
// # 不变量
//
// 键值对始终按键字节序严格升序编码；签名覆盖不含签名的
// 规范编码 (seq, pairs)；每次成功变更序列号严格递增；
// 解码必须通过签名验证，否则整体失败。
//
// 本包为同步纯计算核心，不做网络 I/O。单条记录的变更
// 需要调用方保证排他写；并发读取彼此安全。
package enr
