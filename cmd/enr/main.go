// Package main 提供 enr 命令行入口
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	enr "github.com/dep2p/go-enr"
	"github.com/dep2p/go-enr/pkg/lib/keystore"
	"github.com/dep2p/go-enr/pkg/lib/log"
)

var logger = log.Logger("enr/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 子命令
// ═══════════════════════════════════════════════════════════════════════════
//
//	enr keygen  -type secp256k1|ed25519 -id <name> [-password <pw>]
//	enr build   -id <name> [-ip4 A] [-udp4 N] [-tcp4 N] [-kv name=hex] ...
//	enr inspect <enr:...|->
//	enr update  -id <name> -enr <enr:...> [字段参数] [-seq N]
//
// 密钥目录取 -keystore 参数，缺省为环境变量 ENR_KEYSTORE，
// 再缺省为 ./keys。
// ═══════════════════════════════════════════════════════════════════════════

const (
	envKeystore     = "ENR_KEYSTORE"
	defaultKeystore = "keys"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return nil
	}

	switch os.Args[1] {
	case "keygen":
		return cmdKeygen(os.Args[2:])
	case "build":
		return cmdBuild(os.Args[2:])
	case "inspect":
		return cmdInspect(os.Args[2:])
	case "update":
		return cmdUpdate(os.Args[2:])
	case "help", "-help", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("未知子命令 %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Println(`enr - 节点记录工具

用法:
  enr keygen  -type secp256k1|ed25519 -id <name> [-password <pw>]   生成签名密钥
  enr build   -id <name> [字段参数]                                  构建并签名记录
  enr inspect <enr:...|->                                            解码并校验记录
  enr update  -id <name> -enr <enr:...> [字段参数] [-seq N]          变更并重新签名

字段参数:
  -ip4 A  -ip6 A  -tcp4 N  -tcp6 N  -udp4 N  -udp6 N  -kv name=hex（可重复）`)
}

// ─────────────────────────────────────────────────────────────────────────
// keygen
// ─────────────────────────────────────────────────────────────────────────

func cmdKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	keyType := fs.String("type", "secp256k1", "密钥类型 (secp256k1/ed25519)")
	id := fs.String("id", "default", "密钥名称")
	ksDir := fs.String("keystore", keystoreDir(), "密钥目录")
	password := fs.String("password", "", "加密口令（为空则明文存储）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kt, err := parseKeyType(*keyType)
	if err != nil {
		return err
	}

	key, err := enr.Generate(kt)
	if err != nil {
		return fmt.Errorf("生成密钥失败: %w", err)
	}

	ks, err := keystore.NewFSKeystore(*ksDir, []byte(*password))
	if err != nil {
		return err
	}
	if err := ks.Put(*id, key); err != nil {
		return fmt.Errorf("存储密钥失败: %w", err)
	}

	logger.Info("已生成签名密钥", "id", *id, "type", kt.String(), "dir", *ksDir)
	fmt.Printf("密钥:   %s (%s)\n", *id, kt)
	fmt.Printf("公钥:   %s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Printf("节点ID: %s\n", key.NodeID())
	return nil
}

// ─────────────────────────────────────────────────────────────────────────
// build
// ─────────────────────────────────────────────────────────────────────────

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	id := fs.String("id", "default", "密钥名称")
	ksDir := fs.String("keystore", keystoreDir(), "密钥目录")
	password := fs.String("password", "", "密钥口令")
	fields := bindFieldFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := loadKey(*ksDir, *password, *id)
	if err != nil {
		return err
	}

	builder := key.Builder()
	if err := fields.applyToBuilder(builder); err != nil {
		return err
	}

	record, err := builder.Build(key)
	if err != nil {
		return fmt.Errorf("构建记录失败: %w", err)
	}

	logger.Debug("已构建记录", "nodeID", record.NodeID().String(), "size", len(record.Bytes()))
	fmt.Println(record.String())
	return nil
}

// ─────────────────────────────────────────────────────────────────────────
// inspect
// ─────────────────────────────────────────────────────────────────────────

func cmdInspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("用法: enr inspect <enr:...|->")
	}

	text := args[0]
	if text == "-" {
		// 从标准输入读取
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("标准输入为空")
		}
		text = strings.TrimSpace(scanner.Text())
	}

	record, err := enr.Parse(text)
	if err != nil {
		return fmt.Errorf("解码失败: %w", err)
	}

	fmt.Printf("节点ID: %s\n", record.NodeID())
	fmt.Printf("方案:   %s (%s)\n", record.IdentityScheme(), record.KeyType())
	fmt.Printf("序列号: %d\n", record.Seq())
	fmt.Printf("公钥:   %s\n", hex.EncodeToString(record.PublicKey()))
	if ip, ok := record.IP4(); ok {
		fmt.Printf("ip:     %s\n", ip)
	}
	if ip, ok := record.IP6(); ok {
		fmt.Printf("ip6:    %s\n", ip)
	}
	if p, ok := record.TCP4(); ok {
		fmt.Printf("tcp:    %d\n", p)
	}
	if p, ok := record.TCP6(); ok {
		fmt.Printf("tcp6:   %d\n", p)
	}
	if p, ok := record.UDP4(); ok {
		fmt.Printf("udp:    %d\n", p)
	}
	if p, ok := record.UDP6(); ok {
		fmt.Printf("udp6:   %d\n", p)
	}
	fmt.Printf("大小:   %d 字节\n", len(record.Bytes()))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────
// update
// ─────────────────────────────────────────────────────────────────────────

func cmdUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "default", "密钥名称")
	ksDir := fs.String("keystore", keystoreDir(), "密钥目录")
	password := fs.String("password", "", "密钥口令")
	enrText := fs.String("enr", "", "待变更的记录文本")
	seq := fs.Uint64("seq", 0, "显式设置序列号（0 = 不设置）")
	fields := bindFieldFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *enrText == "" {
		return fmt.Errorf("缺少 -enr 参数")
	}

	key, err := loadKey(*ksDir, *password, *id)
	if err != nil {
		return err
	}

	record, err := enr.Parse(*enrText)
	if err != nil {
		return fmt.Errorf("解码失败: %w", err)
	}

	if err := fields.applyToRecord(record, key); err != nil {
		return err
	}
	if *seq != 0 {
		if err := record.SetSeq(*seq, key); err != nil {
			return err
		}
	}

	logger.Debug("已变更记录", "nodeID", record.NodeID().String(), "seq", record.Seq())
	fmt.Println(record.String())
	return nil
}

// ─────────────────────────────────────────────────────────────────────────
// 字段参数
// ─────────────────────────────────────────────────────────────────────────

// fieldFlags 各子命令共享的记录字段参数
type fieldFlags struct {
	ip4, ip6               *string
	tcp4, tcp6, udp4, udp6 *uint
	kv                     kvFlags
}

// kvFlags 可重复的 -kv name=hex 参数
type kvFlags []string

func (f *kvFlags) String() string { return strings.Join(*f, ",") }

func (f *kvFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func bindFieldFlags(fs *flag.FlagSet) *fieldFlags {
	f := &fieldFlags{
		ip4:  fs.String("ip4", "", "IPv4 地址"),
		ip6:  fs.String("ip6", "", "IPv6 地址"),
		tcp4: fs.Uint("tcp4", 0, "IPv4 TCP 端口"),
		tcp6: fs.Uint("tcp6", 0, "IPv6 TCP 端口"),
		udp4: fs.Uint("udp4", 0, "IPv4 UDP 端口"),
		udp6: fs.Uint("udp6", 0, "IPv6 UDP 端口"),
	}
	fs.Var(&f.kv, "kv", "自定义键值对 name=hex（可重复）")
	return f
}

// applyToBuilder 将字段参数累积到构建器
func (f *fieldFlags) applyToBuilder(b *enr.Builder) error {
	if *f.ip4 != "" {
		ip := net.ParseIP(*f.ip4)
		if ip == nil {
			return fmt.Errorf("无效的 IPv4 地址 %q", *f.ip4)
		}
		b.IP4(ip)
	}
	if *f.ip6 != "" {
		ip := net.ParseIP(*f.ip6)
		if ip == nil {
			return fmt.Errorf("无效的 IPv6 地址 %q", *f.ip6)
		}
		b.IP6(ip)
	}
	if *f.tcp4 != 0 {
		b.TCP4(uint16(*f.tcp4))
	}
	if *f.tcp6 != 0 {
		b.TCP6(uint16(*f.tcp6))
	}
	if *f.udp4 != 0 {
		b.UDP4(uint16(*f.udp4))
	}
	if *f.udp6 != 0 {
		b.UDP6(uint16(*f.udp6))
	}
	for _, kv := range f.kv {
		key, value, err := parseKV(kv)
		if err != nil {
			return err
		}
		b.Set(key, value)
	}
	return nil
}

// applyToRecord 将字段参数逐个应用到记录（每项递增序列号）
func (f *fieldFlags) applyToRecord(r *enr.Record, key *enr.SigningKey) error {
	if *f.ip4 != "" {
		ip := net.ParseIP(*f.ip4)
		if ip == nil {
			return fmt.Errorf("无效的 IPv4 地址 %q", *f.ip4)
		}
		if err := r.SetIP4(ip, key); err != nil {
			return err
		}
	}
	if *f.ip6 != "" {
		ip := net.ParseIP(*f.ip6)
		if ip == nil {
			return fmt.Errorf("无效的 IPv6 地址 %q", *f.ip6)
		}
		if err := r.SetIP6(ip, key); err != nil {
			return err
		}
	}
	if *f.tcp4 != 0 {
		if err := r.SetTCP4(uint16(*f.tcp4), key); err != nil {
			return err
		}
	}
	if *f.tcp6 != 0 {
		if err := r.SetTCP6(uint16(*f.tcp6), key); err != nil {
			return err
		}
	}
	if *f.udp4 != 0 {
		if err := r.SetUDP4(uint16(*f.udp4), key); err != nil {
			return err
		}
	}
	if *f.udp6 != 0 {
		if err := r.SetUDP6(uint16(*f.udp6), key); err != nil {
			return err
		}
	}
	for _, kv := range f.kv {
		k, v, err := parseKV(kv)
		if err != nil {
			return err
		}
		if err := r.Set(k, v, key); err != nil {
			return err
		}
	}
	return nil
}

// parseKV 解析 name=hex 形式的键值对
func parseKV(s string) (string, []byte, error) {
	name, hexVal, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("无效的键值对 %q（期望 name=hex）", s)
	}
	value, err := hex.DecodeString(hexVal)
	if err != nil {
		return "", nil, fmt.Errorf("键 %q 的值不是十六进制: %w", name, err)
	}
	return name, value, nil
}

// ─────────────────────────────────────────────────────────────────────────
// 辅助函数
// ─────────────────────────────────────────────────────────────────────────

// keystoreDir 返回密钥目录缺省值（环境变量优先）
func keystoreDir() string {
	if v := os.Getenv(envKeystore); v != "" {
		return v
	}
	return defaultKeystore
}

// parseKeyType 解析密钥类型名称
func parseKeyType(s string) (enr.KeyType, error) {
	switch strings.ToLower(s) {
	case "secp256k1", "v4":
		return enr.KeyTypeSecp256k1, nil
	case "ed25519":
		return enr.KeyTypeEd25519, nil
	default:
		return 0, fmt.Errorf("未知密钥类型 %q", s)
	}
}

// loadKey 从密钥目录加载签名密钥
func loadKey(dir, password, id string) (*enr.SigningKey, error) {
	ks, err := keystore.NewFSKeystore(dir, []byte(password))
	if err != nil {
		return nil, err
	}
	key, err := ks.Get(id)
	if err != nil {
		return nil, fmt.Errorf("加载密钥 %q 失败: %w", id, err)
	}
	return key, nil
}
