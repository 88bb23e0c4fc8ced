// Package keystore 提供签名密钥的文件系统存储
//
// 密钥材料绝不进入记录编码，但节点需要在重启间保持同一身份，
// 因此以独立文件保存 32 字节私钥材料（标量或种子），可选口令加密。
package keystore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/crypto/argon2"

	enr "github.com/dep2p/go-enr"
)

// ============================================================================
//                              密钥文件格式
// ============================================================================

// 密钥文件格式：
//
//   ┌────────────────────────────────────────────────────────────┐
//   │  Magic:     "GO-ENR-KEY"  (10 bytes)                       │
//   │  Version:   uint8                                          │
//   │  Type:      uint8 (enr.KeyType)                            │
//   │  Encrypted: uint8 (0=否, 1=是)                              │
//   │  Data:      32 字节私钥材料或加密数据                        │
//   └────────────────────────────────────────────────────────────┘
//
//   加密数据格式：
//   ┌────────────────────────────────────────────────────────────┐
//   │  Salt:       16 bytes                                      │
//   │  Nonce:      12 bytes                                      │
//   │  Ciphertext: 变长（AES-GCM 加密）                           │
//   └────────────────────────────────────────────────────────────┘

const (
	keyFileMagic   = "GO-ENR-KEY"
	keyFileVersion = 1
	keyFileExt     = ".key"

	// 加密参数
	saltSize  = 16
	nonceSize = 12

	// Argon2 参数
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// ============================================================================
//                              Keystore 接口
// ============================================================================

// Keystore 密钥存储接口
type Keystore interface {
	// Has 检查是否存在指定 ID 的密钥
	Has(id string) (bool, error)

	// Put 存储签名密钥
	Put(id string, key *enr.SigningKey) error

	// Get 获取签名密钥
	Get(id string) (*enr.SigningKey, error)

	// Delete 删除密钥
	Delete(id string) error

	// List 列出所有密钥 ID
	List() ([]string, error)
}

// ============================================================================
//                              文件系统密钥存储
// ============================================================================

// FSKeystore 基于文件系统的密钥存储
type FSKeystore struct {
	dir      string
	password []byte // 可选：用于加密存储
}

// 确保实现接口
var _ Keystore = (*FSKeystore)(nil)

// NewFSKeystore 创建文件系统密钥存储
//
// 参数：
//   - dir: 存储目录
//   - password: 加密口令（为空则明文存储）
func NewFSKeystore(dir string, password []byte) (*FSKeystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FSKeystore{
		dir:      dir,
		password: password,
	}, nil
}

// Has 检查是否存在指定 ID 的密钥
func (ks *FSKeystore) Has(id string) (bool, error) {
	_, err := os.Stat(ks.keyPath(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// Put 存储签名密钥
//
// 同名密钥已存在时返回 ErrKeyExists，不覆盖。
func (ks *FSKeystore) Put(id string, key *enr.SigningKey) error {
	exists, err := ks.Has(id)
	if err != nil {
		return err
	}
	if exists {
		return ErrKeyExists
	}

	data, err := ks.encodeKey(key)
	if err != nil {
		return err
	}
	return os.WriteFile(ks.keyPath(id), data, 0600)
}

// Get 获取签名密钥
func (ks *FSKeystore) Get(id string) (*enr.SigningKey, error) {
	data, err := os.ReadFile(ks.keyPath(id))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return ks.decodeKey(data)
}

// Delete 删除密钥
func (ks *FSKeystore) Delete(id string) error {
	err := os.Remove(ks.keyPath(id))
	if os.IsNotExist(err) {
		return ErrKeyNotFound
	}
	return err
}

// List 列出所有密钥 ID
func (ks *FSKeystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == keyFileExt {
			ids = append(ids, entry.Name()[:len(entry.Name())-len(keyFileExt)])
		}
	}
	return ids, nil
}

// LoadAll 加载全部签名密钥
//
// 逐个加载 List 返回的密钥，单个文件损坏不中断整体加载，
// 失败项以聚合错误的形式一并返回。
func (ks *FSKeystore) LoadAll() (map[string]*enr.SigningKey, error) {
	ids, err := ks.List()
	if err != nil {
		return nil, err
	}

	keys := make(map[string]*enr.SigningKey, len(ids))
	var errs error
	for _, id := range ids {
		key, err := ks.Get(id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("key %q: %w", id, err))
			continue
		}
		keys[id] = key
	}
	return keys, errs
}

// keyPath 返回密钥文件路径
func (ks *FSKeystore) keyPath(id string) string {
	return filepath.Join(ks.dir, id+keyFileExt)
}

// ============================================================================
//                              编码与解码
// ============================================================================

// encodeKey 编码密钥（可选加密）
func (ks *FSKeystore) encodeKey(key *enr.SigningKey) ([]byte, error) {
	secret := key.Secret()
	if secret == nil {
		return nil, ErrInvalidKeyFile
	}

	var buf bytes.Buffer
	buf.WriteString(keyFileMagic)
	buf.WriteByte(keyFileVersion)
	buf.WriteByte(byte(key.KeyType()))

	if len(ks.password) > 0 {
		buf.WriteByte(1) // encrypted = true
		encrypted, err := encryptData(secret, ks.password)
		if err != nil {
			return nil, err
		}
		buf.Write(encrypted)
	} else {
		buf.WriteByte(0) // encrypted = false
		buf.Write(secret)
	}

	return buf.Bytes(), nil
}

// decodeKey 解码密钥
func (ks *FSKeystore) decodeKey(data []byte) (*enr.SigningKey, error) {
	if len(data) < len(keyFileMagic)+3 {
		return nil, ErrInvalidKeyFile
	}
	if string(data[:len(keyFileMagic)]) != keyFileMagic {
		return nil, ErrInvalidKeyFile
	}

	offset := len(keyFileMagic)
	version := data[offset]
	if version != keyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidKeyFile, version)
	}
	offset++

	keyType := enr.KeyType(data[offset])
	offset++
	encrypted := data[offset] == 1
	offset++

	secret := data[offset:]
	if encrypted {
		if len(ks.password) == 0 {
			return nil, ErrInvalidPassword
		}
		var err error
		secret, err = decryptData(secret, ks.password)
		if err != nil {
			return nil, err
		}
	}

	return enr.NewSigningKey(keyType, secret)
}

// ============================================================================
//                              加密辅助函数
// ============================================================================

// encryptData 使用 AES-GCM 加密数据
//
// 输出为 salt || nonce || ciphertext，密钥由 argon2id 从口令派生。
func encryptData(plaintext, password []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, saltSize+nonceSize+len(ciphertext))
	copy(result[:saltSize], salt)
	copy(result[saltSize:saltSize+nonceSize], nonce)
	copy(result[saltSize+nonceSize:], ciphertext)
	return result, nil
}

// decryptData 使用 AES-GCM 解密数据
func decryptData(data, password []byte) ([]byte, error) {
	if len(data) < saltSize+nonceSize {
		return nil, ErrDecryptionFailed
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	key := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
