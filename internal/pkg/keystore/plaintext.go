package keystore

import (
	"context"
	"token_faucet/pkg/errs"
	"token_faucet/pkg/logger"
)

// plaintextStrategy 明文私钥，仅限开发/测试环境
type plaintextStrategy struct {
	key string
}

func newPlaintextStrategy(key, env string) (*plaintextStrategy, error) {
	if env == "prod" || env == "production" {
		return nil, errs.New(errs.KindConfiguration, "plaintext private key is not allowed in production")
	}
	return &plaintextStrategy{key: key}, nil
}

func (s *plaintextStrategy) Name() string {
	return "plaintext"
}

func (s *plaintextStrategy) SecurityLevel() Level {
	return LevelLow
}

func (s *plaintextStrategy) Resolve(ctx context.Context) ([]byte, error) {
	if logger.Log != nil {
		logger.Log.Warn("INSECURE: signing key is configured in plaintext, do not use this outside development")
	}
	return []byte(s.key), nil
}

var _ Strategy = (*plaintextStrategy)(nil)
