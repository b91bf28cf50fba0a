package keystore

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"

	"golang.org/x/crypto/pbkdf2"
)

// 与离线封装工具 (cmd/keywrap) 保持一致的派生参数
const (
	pbkdf2Iterations = 100000
	derivedKeyLen    = 32 // AES-256
	saltLen          = 16
)

// encryptedStrategy 本地口令加密的私钥
// blob 格式: saltHex:ivHex:cipherHex，key = PBKDF2-SHA256(password, salt)
type encryptedStrategy struct {
	cfg config.EncryptedKeystoreConfig
}

func newEncryptedStrategy(cfg config.EncryptedKeystoreConfig) *encryptedStrategy {
	return &encryptedStrategy{cfg: cfg}
}

func (s *encryptedStrategy) Name() string {
	return "encrypted"
}

func (s *encryptedStrategy) SecurityLevel() Level {
	return LevelMedium
}

func (s *encryptedStrategy) Resolve(ctx context.Context) ([]byte, error) {
	plain, err := DecryptKeyBlob(s.cfg.Blob, s.cfg.Password)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to decrypt local key blob", err)
	}
	return plain, nil
}

// DecryptKeyBlob 解密 salt:iv:cipher 格式的密钥封装
func DecryptKeyBlob(blob, password string) ([]byte, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed blob: expected salt:iv:cipher, got %d parts", len(parts))
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed salt: %w", err)
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("malformed ciphertext: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes", aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	return pkcs7Unpad(plain)
}

// EncryptKeyBlob 将私钥封装成 salt:iv:cipher 格式，供 cmd/keywrap 使用
func EncryptKeyBlob(plain []byte, password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext)), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding (wrong password?)")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding (wrong password?)")
		}
	}
	return data[:len(data)-padding], nil
}

var _ Strategy = (*encryptedStrategy)(nil)
