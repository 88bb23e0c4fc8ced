// Package lib 包含基础设施工具库
//
// 本目录包含与记录核心无关的通用工具库：
//
//   - rlp: 规范 RLP 编解码原语
//   - keystore: 签名密钥的文件系统存储
//   - log: 日志封装
//
// 记录类型与签名流程本身位于模块根包。
package lib
