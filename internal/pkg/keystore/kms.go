package keystore

import (
	"context"
	"encoding/base64"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// kmsStrategy 云 KMS 解密托管的密文
type kmsStrategy struct {
	cfg config.KMSKeystoreConfig
}

func newKMSStrategy(cfg config.KMSKeystoreConfig) *kmsStrategy {
	return &kmsStrategy{cfg: cfg}
}

func (s *kmsStrategy) Name() string {
	return "kms"
}

func (s *kmsStrategy) SecurityLevel() Level {
	return LevelHigh
}

func (s *kmsStrategy) Resolve(ctx context.Context) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(s.cfg.Ciphertext)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "kms ciphertext is not valid base64", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to load AWS config", err)
	}

	client := kms.NewFromConfig(awsCfg)
	out, err := client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: blob,
		KeyId:          &s.cfg.KeyID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "kms decrypt failed", err)
	}

	return out.Plaintext, nil
}

var _ Strategy = (*kmsStrategy)(nil)
