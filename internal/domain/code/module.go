package code

import (
	"token_faucet/internal/domain/code/handler"
	"token_faucet/internal/domain/code/repository"
	"token_faucet/internal/domain/code/service"
	"token_faucet/internal/pkg/config"
	"token_faucet/internal/pkg/middleware"
	"token_faucet/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CodeModule 兑换码台账模块（管理端）
type CodeModule struct{}

func init() {
	registry.Register(&CodeModule{})
}

func (m *CodeModule) Name() string {
	return "code"
}

func (m *CodeModule) Priority() int {
	return 10
}

func (m *CodeModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	repo := repository.NewCodeRepository(ctx.DB)
	svc, err := service.NewCodeService(repo, ctx.Redis, config.GlobalConfig.Faucet.CodePattern)
	if err != nil {
		return err
	}
	h := handler.NewCodeHandler(svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, h)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CodeHandler) {
	// 管理端全部要求管理员身份
	admin := r.Group("/admin/codes")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/", h.CreateCode)
		admin.GET("/", h.ListCodes)
		admin.DELETE("/:id", h.DeactivateCode)
		admin.GET("/:id/history", h.UsageHistory)
	}
}
