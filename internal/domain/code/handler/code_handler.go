package handler

import (
	"errors"
	"net/http"
	"token_faucet/internal/domain/code/service"
	"token_faucet/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CodeHandler struct {
	service service.CodeService
}

func NewCodeHandler(service service.CodeService) *CodeHandler {
	return &CodeHandler{service: service}
}

type CreateCodeInput struct {
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
	MaxUses     *int   `json:"maxUses"` // 缺省 = 不限次数
}

func (h *CodeHandler) CreateCode(c *gin.Context) {
	var input CreateCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.InvalidParam(c, err.Error())
		return
	}

	createdBy := c.GetString("subject")
	code, err := h.service.CreateCode(input.Code, input.Description, createdBy, input.MaxUses)
	if err != nil {
		response.InvalidParam(c, err.Error())
		return
	}

	response.Success(c, code)
}

func (h *CodeHandler) ListCodes(c *gin.Context) {
	stats, err := h.service.ListActiveWithStats()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, stats)
}

func (h *CodeHandler) DeactivateCode(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeactivateCode(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrCodeNotFound, "Code not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, "Code deactivated")
}

func (h *CodeHandler) UsageHistory(c *gin.Context) {
	id := c.Param("id")
	records, err := h.service.UsageHistory(id)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, records)
}
