package main

import (
	"context"
	"log"
	"time"

	_ "token_faucet/internal/domain/claim"
	_ "token_faucet/internal/domain/code"
	"token_faucet/internal/pkg/chain"
	"token_faucet/internal/pkg/config"
	"token_faucet/internal/pkg/keystore"
	"token_faucet/internal/pkg/middleware"
	"token_faucet/internal/pkg/registry"
	"token_faucet/pkg/database"
	"token_faucet/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger.Init(config.GlobalConfig.App.Env)
	defer logger.Sync()

	// 没有可用的签名密钥就不该接任何流量，这里直接 fatal
	strategy, err := keystore.Select(&config.GlobalConfig.Keystore, config.GlobalConfig.App.Env)
	if err != nil {
		log.Fatalf("Key resolution failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	secret, err := strategy.Resolve(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to resolve signing key via %s strategy: %v", strategy.Name(), err)
	}

	logger.Log.Info("signing key resolved",
		zap.String("strategy", strategy.Name()),
		zap.String("security_level", strategy.SecurityLevel().String()),
	)

	chainClient, err := chain.New(config.GlobalConfig.Chain, secret, logger.Log)
	if err != nil {
		log.Fatalf("Failed to initialize chain client: %v", err)
	}
	defer chainClient.Close()

	logger.Log.Info("chain client ready",
		zap.String("account", chainClient.Account().Hex()),
		zap.Int("rpc_endpoints", len(config.GlobalConfig.Chain.RPCURLs)),
	)

	db := database.InitDatabase()
	rdb := database.InitRedis()

	gin.SetMode(config.GlobalConfig.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware())
	router.Use(cors.Default())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	moduleCtx := &registry.ModuleContext{
		DB:     db,
		Redis:  rdb,
		Router: router,
		Chain:  chainClient,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		log.Fatalf("Failed to initialize modules: %v", err)
	}

	addr := ":" + config.GlobalConfig.Server.Port
	logger.Log.Info("faucet server starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
