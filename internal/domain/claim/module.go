package claim

import (
	"token_faucet/internal/domain/claim/handler"
	"token_faucet/internal/domain/claim/service"
	codeRepository "token_faucet/internal/domain/code/repository"
	codeService "token_faucet/internal/domain/code/service"
	"token_faucet/internal/pkg/config"
	"token_faucet/internal/pkg/middleware"
	"token_faucet/internal/pkg/registry"
	"token_faucet/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ClaimModule 结算编排模块（对外领取接口）
type ClaimModule struct{}

func init() {
	registry.Register(&ClaimModule{})
}

func (m *ClaimModule) Name() string {
	return "claim"
}

func (m *ClaimModule) Priority() int {
	return 20 // 在 code 模块之后
}

func (m *ClaimModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入；台账按模块各自构造，共享同一个 *gorm.DB
	repo := codeRepository.NewCodeRepository(ctx.DB)
	codes, err := codeService.NewCodeService(repo, ctx.Redis, config.GlobalConfig.Faucet.CodePattern)
	if err != nil {
		return err
	}

	svc, err := service.NewClaimService(codes, ctx.Chain,
		config.GlobalConfig.Chain, config.GlobalConfig.Faucet, logger.Log)
	if err != nil {
		return err
	}
	h := handler.NewClaimHandler(svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, h)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.ClaimHandler) {
	r.POST("/claim", middleware.RateLimitMiddleware(), h.Claim)
	r.GET("/status", h.Status)
	r.GET("/health", h.Health)
}
