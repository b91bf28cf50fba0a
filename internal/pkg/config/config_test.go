package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{
		JWT: JWTConfig{Secret: "0123456789abcdef0123456789abcdef", Expire: 24},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "faucet",
			DBName: "faucet",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Chain: ChainConfig{
			RPCURLs:          []string{"http://localhost:8545"},
			ChainID:          1337,
			TokenContract:    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			TokenDecimals:    18,
			TokenAmount:      "100000000000000000000",
			NativeAmount:     "100000000000000000",
			GasMarginPercent: 20,
		},
	}
}

func TestValidateAcceptsBaseConfig(t *testing.T) {
	cfg := baseConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty jwt secret", func(c *Config) { c.JWT.Secret = "" }},
		{"default jwt secret", func(c *Config) { c.JWT.Secret = "your_super_secret_key" }},
		{"short jwt secret", func(c *Config) { c.JWT.Secret = "tooshort" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing redis", func(c *Config) { c.Redis.Addr = "" }},
		{"no rpc urls", func(c *Config) { c.Chain.RPCURLs = nil }},
		{"zero chain id", func(c *Config) { c.Chain.ChainID = 0 }},
		{"bad token contract", func(c *Config) { c.Chain.TokenContract = "not-an-address" }},
		{"token amount not integer", func(c *Config) { c.Chain.TokenAmount = "1.5" }},
		{"token amount in display units", func(c *Config) { c.Chain.TokenAmount = "100 tokens" }},
		{"native amount empty", func(c *Config) { c.Chain.NativeAmount = "" }},
		{"negative gas margin", func(c *Config) { c.Chain.GasMarginPercent = -5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestIsProduction(t *testing.T) {
	cfg := baseConfig()
	assert.False(t, cfg.IsProduction())

	cfg.App.Env = "prod"
	assert.True(t, cfg.IsProduction())

	cfg.App.Env = "production"
	assert.True(t, cfg.IsProduction())

	cfg.App.Env = "dev"
	assert.False(t, cfg.IsProduction())
}
