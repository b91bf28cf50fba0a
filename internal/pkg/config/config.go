package config

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppConfig      `mapstructure:"app"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Faucet   FaucetConfig   `mapstructure:"faucet"`
	Keystore KeystoreConfig `mapstructure:"keystore"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// ChainConfig 链接入配置；金额一律是 base unit 的十进制字符串
type ChainConfig struct {
	RPCURLs          []string `mapstructure:"rpc_urls"`
	ChainID          int64    `mapstructure:"chain_id"`
	TokenContract    string   `mapstructure:"token_contract"`
	TokenDecimals    int      `mapstructure:"token_decimals"`
	TokenAmount      string   `mapstructure:"token_amount"`
	NativeAmount     string   `mapstructure:"native_amount"`
	GasMarginPercent int64    `mapstructure:"gas_margin_percent"` // 预估 gas 价上浮百分比
	ConfirmTimeout   int64    `mapstructure:"confirm_timeout"`    // 秒；0 表示不等确认
}

type FaucetConfig struct {
	EnforceUniqueRecipient bool   `mapstructure:"enforce_unique_recipient"`
	CodePattern            string `mapstructure:"code_pattern"`
}

// KeystoreConfig 五种互斥的签名密钥来源，按 multisig > vault > kms > encrypted > plaintext 取第一个命中的
type KeystoreConfig struct {
	PrivateKey string                  `mapstructure:"private_key"`
	Encrypted  EncryptedKeystoreConfig `mapstructure:"encrypted"`
	KMS        KMSKeystoreConfig       `mapstructure:"kms"`
	Vault      VaultKeystoreConfig     `mapstructure:"vault"`
	Multisig   MultisigKeystoreConfig  `mapstructure:"multisig"`
}

type EncryptedKeystoreConfig struct {
	Blob     string `mapstructure:"blob"` // salt:iv:cipher，全部 hex
	Password string `mapstructure:"password"`
}

type KMSKeystoreConfig struct {
	Region     string `mapstructure:"region"`
	KeyID      string `mapstructure:"key_id"`
	Ciphertext string `mapstructure:"ciphertext"` // base64
}

type VaultKeystoreConfig struct {
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"`
	Path  string `mapstructure:"path"`
	Field string `mapstructure:"field"`
}

type MultisigKeystoreConfig struct {
	CosignerKey string   `mapstructure:"cosigner_key"`
	Peers       []string `mapstructure:"peers"`
	Threshold   int      `mapstructure:"threshold"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if len(c.Chain.RPCURLs) == 0 {
		return errors.New("at least one chain RPC URL is required")
	}
	if c.Chain.ChainID <= 0 {
		return errors.New("chain_id must be positive")
	}
	if !isHexAddress(c.Chain.TokenContract) {
		return fmt.Errorf("token_contract %q is not a valid address", c.Chain.TokenContract)
	}
	if _, ok := new(big.Int).SetString(c.Chain.TokenAmount, 10); !ok {
		return fmt.Errorf("token_amount %q is not a base-unit integer", c.Chain.TokenAmount)
	}
	if _, ok := new(big.Int).SetString(c.Chain.NativeAmount, 10); !ok {
		return fmt.Errorf("native_amount %q is not a base-unit integer", c.Chain.NativeAmount)
	}
	if c.Chain.GasMarginPercent < 0 {
		return errors.New("gas_margin_percent must not be negative")
	}

	return nil
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 24)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("chain.token_decimals", 18)
	viper.SetDefault("chain.gas_margin_percent", 20)
	viper.SetDefault("chain.confirm_timeout", 60)
	viper.SetDefault("faucet.enforce_unique_recipient", true)
	viper.SetDefault("faucet.code_pattern", "^[A-Za-z0-9._-]{4,64}$")
	viper.SetDefault("keystore.vault.field", "private_key")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if rpcURLs := os.Getenv("CHAIN_RPC_URLS"); rpcURLs != "" {
		GlobalConfig.Chain.RPCURLs = strings.Split(rpcURLs, ",")
	}
	// 密钥相关的敏感项只建议通过环境变量注入
	if pk := os.Getenv("FAUCET_PRIVATE_KEY"); pk != "" {
		GlobalConfig.Keystore.PrivateKey = pk
	}
	if blob := os.Getenv("FAUCET_ENCRYPTED_KEY"); blob != "" {
		GlobalConfig.Keystore.Encrypted.Blob = blob
	}
	if pw := os.Getenv("FAUCET_KEY_PASSWORD"); pw != "" {
		GlobalConfig.Keystore.Encrypted.Password = pw
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		GlobalConfig.Keystore.Vault.Token = token
	}

	// 验证配置
	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
