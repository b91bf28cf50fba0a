package keystore

import (
	"context"
	"testing"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"

	"github.com/stretchr/testify/assert"
)

func fullConfig() *config.KeystoreConfig {
	return &config.KeystoreConfig{
		PrivateKey: "deadbeef",
		Encrypted: config.EncryptedKeystoreConfig{
			Blob:     "aa:bb:cc",
			Password: "pw",
		},
		KMS: config.KMSKeystoreConfig{
			Region:     "us-east-1",
			KeyID:      "key-1",
			Ciphertext: "YmxvYg==",
		},
		Vault: config.VaultKeystoreConfig{
			Addr:  "http://vault:8200",
			Token: "token",
			Path:  "secret/faucet",
			Field: "private_key",
		},
		Multisig: config.MultisigKeystoreConfig{
			CosignerKey: "deadbeef",
			Peers:       []string{"http://peer1", "http://peer2"},
			Threshold:   2,
		},
	}
}

func TestSelectPriorityOrder(t *testing.T) {
	cfg := fullConfig()

	t.Run("multisig wins over everything", func(t *testing.T) {
		s, err := Select(cfg, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "multisig", s.Name())
		assert.Equal(t, LevelEnterprise, s.SecurityLevel())
	})

	t.Run("vault wins when multisig absent", func(t *testing.T) {
		cfg.Multisig.CosignerKey = ""
		s, err := Select(cfg, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "vault", s.Name())
		assert.Equal(t, LevelEnterprise, s.SecurityLevel())
	})

	t.Run("kms wins when vault absent", func(t *testing.T) {
		cfg.Vault.Addr = ""
		s, err := Select(cfg, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "kms", s.Name())
		assert.Equal(t, LevelHigh, s.SecurityLevel())
	})

	t.Run("encrypted wins when kms absent", func(t *testing.T) {
		cfg.KMS.KeyID = ""
		s, err := Select(cfg, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "encrypted", s.Name())
		assert.Equal(t, LevelMedium, s.SecurityLevel())
	})

	t.Run("plaintext is the last resort", func(t *testing.T) {
		cfg.Encrypted.Blob = ""
		s, err := Select(cfg, "dev")
		assert.NoError(t, err)
		assert.Equal(t, "plaintext", s.Name())
		assert.Equal(t, LevelLow, s.SecurityLevel())
	})

	t.Run("nothing configured is a configuration error", func(t *testing.T) {
		cfg.PrivateKey = ""
		_, err := Select(cfg, "dev")
		assert.Error(t, err)
		assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
	})
}

func TestPlaintextRefusesProduction(t *testing.T) {
	cfg := &config.KeystoreConfig{PrivateKey: "deadbeef"}

	_, err := Select(cfg, "prod")
	assert.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))

	_, err = Select(cfg, "production")
	assert.Error(t, err)
}

func TestPlaintextResolve(t *testing.T) {
	cfg := &config.KeystoreConfig{PrivateKey: "deadbeef"}
	s, err := Select(cfg, "dev")
	assert.NoError(t, err)

	secret, err := s.Resolve(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("deadbeef"), secret)
}

func TestEncryptedKeyBlobRoundTrip(t *testing.T) {
	key := []byte("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")

	blob, err := EncryptKeyBlob(key, "correct horse battery staple")
	assert.NoError(t, err)

	plain, err := DecryptKeyBlob(blob, "correct horse battery staple")
	assert.NoError(t, err)
	assert.Equal(t, key, plain)
}

func TestDecryptKeyBlobWrongPassword(t *testing.T) {
	blob, err := EncryptKeyBlob([]byte("secret-key"), "right")
	assert.NoError(t, err)

	// 错口令大概率触发 padding 校验失败；即便侥幸通过也绝不能解出原文
	plain, err := DecryptKeyBlob(blob, "wrong")
	if err == nil {
		assert.NotEqual(t, []byte("secret-key"), plain)
	}
}

func TestDecryptKeyBlobMalformed(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"too few parts", "aabb:ccdd"},
		{"too many parts", "aa:bb:cc:dd"},
		{"non-hex salt", "zz:00112233445566778899aabbccddeeff:00112233445566778899aabbccddeeff"},
		{"short iv", "aabb:ccdd:00112233445566778899aabbccddeeff"},
		{"empty ciphertext", "aabbccdd:00112233445566778899aabbccddeeff:"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecryptKeyBlob(tc.blob, "pw")
			assert.Error(t, err)
		})
	}
}

func TestEncryptedStrategyResolve(t *testing.T) {
	blob, err := EncryptKeyBlob([]byte("deadbeef"), "pw")
	assert.NoError(t, err)

	cfg := &config.KeystoreConfig{
		Encrypted: config.EncryptedKeystoreConfig{Blob: blob, Password: "pw"},
	}
	s, err := Select(cfg, "prod") // encrypted 在生产环境是允许的
	assert.NoError(t, err)
	assert.Equal(t, "encrypted", s.Name())

	secret, err := s.Resolve(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("deadbeef"), secret)
}
