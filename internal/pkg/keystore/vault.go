package keystore

import (
	"context"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"

	vault "github.com/hashicorp/vault/api"
)

// vaultStrategy 从外部 secret 存储读取私钥
type vaultStrategy struct {
	cfg config.VaultKeystoreConfig
}

func newVaultStrategy(cfg config.VaultKeystoreConfig) *vaultStrategy {
	return &vaultStrategy{cfg: cfg}
}

func (s *vaultStrategy) Name() string {
	return "vault"
}

func (s *vaultStrategy) SecurityLevel() Level {
	return LevelEnterprise
}

func (s *vaultStrategy) Resolve(ctx context.Context) ([]byte, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = s.cfg.Addr

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to create vault client", err)
	}
	client.SetToken(s.cfg.Token)

	secret, err := client.Logical().ReadWithContext(ctx, s.cfg.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "vault read failed", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, errs.Newf(errs.KindConfiguration, "vault path %s has no data", s.cfg.Path)
	}

	data := secret.Data
	// KV v2 把实际内容嵌在 data 字段里
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[s.cfg.Field].(string)
	if !ok || value == "" {
		return nil, errs.Newf(errs.KindConfiguration, "vault secret at %s has no field %q", s.cfg.Path, s.cfg.Field)
	}

	return []byte(value), nil
}

var _ Strategy = (*vaultStrategy)(nil)
