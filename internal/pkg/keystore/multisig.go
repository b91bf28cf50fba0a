package keystore

import (
	"context"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/logger"

	"go.uber.org/zap"
)

// multisigStrategy 多签协同模式：本服务只持有自己那份 co-signer 私钥，
// 收集其余签名由外部协调服务完成，这里不涉及
type multisigStrategy struct {
	cfg config.MultisigKeystoreConfig
}

func newMultisigStrategy(cfg config.MultisigKeystoreConfig) *multisigStrategy {
	return &multisigStrategy{cfg: cfg}
}

func (s *multisigStrategy) Name() string {
	return "multisig"
}

func (s *multisigStrategy) SecurityLevel() Level {
	return LevelEnterprise
}

func (s *multisigStrategy) Resolve(ctx context.Context) ([]byte, error) {
	if logger.Log != nil {
		logger.Log.Info("multisig co-signer mode",
			zap.Int("peers", len(s.cfg.Peers)),
			zap.Int("threshold", s.cfg.Threshold),
		)
	}
	return []byte(s.cfg.CosignerKey), nil
}

var _ Strategy = (*multisigStrategy)(nil)
