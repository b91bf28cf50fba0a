package keystore

import (
	"context"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"
)

// Level 密钥策略的安全等级，仅用于启动日志和上报，不参与任何逻辑分支
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelEnterprise
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelEnterprise:
		return "ENTERPRISE"
	default:
		return "UNKNOWN"
	}
}

// Strategy 签名密钥获取策略
type Strategy interface {
	// Name 策略名称
	Name() string

	// SecurityLevel 安全等级
	SecurityLevel() Level

	// Resolve 获取签名私钥（hex 字符串的字节形式）
	Resolve(ctx context.Context) ([]byte, error)
}

// Select 按固定优先级选出唯一一个可用策略：
// multisig > vault > kms > encrypted > plaintext，一个都没配则报配置错误。
func Select(cfg *config.KeystoreConfig, env string) (Strategy, error) {
	switch {
	case cfg.Multisig.CosignerKey != "":
		return newMultisigStrategy(cfg.Multisig), nil
	case cfg.Vault.Addr != "" && cfg.Vault.Token != "" && cfg.Vault.Path != "":
		return newVaultStrategy(cfg.Vault), nil
	case cfg.KMS.KeyID != "" && cfg.KMS.Ciphertext != "":
		return newKMSStrategy(cfg.KMS), nil
	case cfg.Encrypted.Blob != "" && cfg.Encrypted.Password != "":
		return newEncryptedStrategy(cfg.Encrypted), nil
	case cfg.PrivateKey != "":
		return newPlaintextStrategy(cfg.PrivateKey, env)
	default:
		return nil, errs.New(errs.KindConfiguration, "no signing key configured")
	}
}
