package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enr "github.com/dep2p/go-enr"
)

// TestFSKeystore_PutGet 测试两种密钥类型的存取往返
func TestFSKeystore_PutGet(t *testing.T) {
	ks, err := NewFSKeystore(t.TempDir(), nil)
	require.NoError(t, err)

	for _, kt := range []enr.KeyType{enr.KeyTypeSecp256k1, enr.KeyTypeEd25519} {
		t.Run(kt.String(), func(t *testing.T) {
			key, err := enr.Generate(kt)
			require.NoError(t, err)

			id := "node-" + kt.String()
			require.NoError(t, ks.Put(id, key))

			loaded, err := ks.Get(id)
			require.NoError(t, err)
			assert.Equal(t, key.KeyType(), loaded.KeyType())
			assert.Equal(t, key.Secret(), loaded.Secret())
			assert.Equal(t, key.PublicKey(), loaded.PublicKey())
			assert.Equal(t, key.NodeID(), loaded.NodeID())
		})
	}

	t.Log("✅ 密钥存取往返测试通过")
}

// TestFSKeystore_Encrypted 测试口令加密的存取往返
func TestFSKeystore_Encrypted(t *testing.T) {
	dir := t.TempDir()
	password := []byte("correct horse battery staple")

	ks, err := NewFSKeystore(dir, password)
	require.NoError(t, err)

	key, err := enr.Generate(enr.KeyTypeSecp256k1)
	require.NoError(t, err)
	require.NoError(t, ks.Put("default", key))

	loaded, err := ks.Get("default")
	require.NoError(t, err)
	assert.Equal(t, key.Secret(), loaded.Secret())

	// 错误口令无法解密
	wrongKS, err := NewFSKeystore(dir, []byte("wrong"))
	require.NoError(t, err)
	_, err = wrongKS.Get("default")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	// 无口令打开加密文件
	plainKS, err := NewFSKeystore(dir, nil)
	require.NoError(t, err)
	_, err = plainKS.Get("default")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	t.Log("✅ 加密存储测试通过")
}

// TestFSKeystore_PutExisting 测试同名密钥不可覆盖
func TestFSKeystore_PutExisting(t *testing.T) {
	ks, err := NewFSKeystore(t.TempDir(), nil)
	require.NoError(t, err)

	key, err := enr.Generate(enr.KeyTypeSecp256k1)
	require.NoError(t, err)
	require.NoError(t, ks.Put("node", key))

	other, err := enr.Generate(enr.KeyTypeSecp256k1)
	require.NoError(t, err)
	assert.ErrorIs(t, ks.Put("node", other), ErrKeyExists)

	// 原密钥未被改动
	loaded, err := ks.Get("node")
	require.NoError(t, err)
	assert.Equal(t, key.Secret(), loaded.Secret())
}

// TestFSKeystore_HasDeleteList 测试存在性检查、删除与列表
func TestFSKeystore_HasDeleteList(t *testing.T) {
	ks, err := NewFSKeystore(t.TempDir(), nil)
	require.NoError(t, err)

	ok, err := ks.Has("node")
	require.NoError(t, err)
	assert.False(t, ok)

	key, err := enr.Generate(enr.KeyTypeEd25519)
	require.NoError(t, err)
	require.NoError(t, ks.Put("node-a", key))
	require.NoError(t, ks.Put("node-b", key))

	ok, err = ks.Has("node-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := ks.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"node-a", "node-b"}, ids)

	require.NoError(t, ks.Delete("node-a"))
	ok, err = ks.Has("node-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// 删除不存在的密钥
	assert.ErrorIs(t, ks.Delete("node-a"), ErrKeyNotFound)
	_, err = ks.Get("node-a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// TestFSKeystore_LoadAll 测试批量加载聚合单个文件的失败
func TestFSKeystore_LoadAll(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewFSKeystore(dir, nil)
	require.NoError(t, err)

	k1, err := enr.Generate(enr.KeyTypeSecp256k1)
	require.NoError(t, err)
	k2, err := enr.Generate(enr.KeyTypeEd25519)
	require.NoError(t, err)
	require.NoError(t, ks.Put("good-1", k1))
	require.NoError(t, ks.Put("good-2", k2))

	// 写入损坏的密钥文件
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.key"), []byte("junk"), 0600))

	keys, err := ks.LoadAll()
	assert.ErrorIs(t, err, ErrInvalidKeyFile)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "good-1")
	assert.Contains(t, keys, "good-2")

	t.Log("✅ 批量加载测试通过")
}

// TestFSKeystore_CorruptFiles 测试各类损坏文件的错误分类
func TestFSKeystore_CorruptFiles(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewFSKeystore(dir, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("x")},
		{"bad magic", append([]byte("NOT-A-KEY!"), 1, 1, 0)},
		{"bad version", append([]byte("GO-ENR-KEY"), 99, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.key"), tt.data, 0600))
			_, err := ks.Get("bad")
			assert.ErrorIs(t, err, ErrInvalidKeyFile)
			require.NoError(t, os.Remove(filepath.Join(dir, "bad.key")))
		})
	}
}
