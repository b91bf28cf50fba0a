package handler

import (
	"net/http"
	"token_faucet/internal/domain/claim/service"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"

	"github.com/gin-gonic/gin"
)

type ClaimHandler struct {
	service service.ClaimService
}

func NewClaimHandler(service service.ClaimService) *ClaimHandler {
	return &ClaimHandler{service: service}
}

// ClaimInput 这里只做 JSON 结构校验，业务层再做格式/策略校验
type ClaimInput struct {
	SecretCode       string `json:"secretCode" binding:"required"`
	RecipientAddress string `json:"recipientAddress" binding:"required"`
}

// ClaimResponse 对外固定的回包结构
type ClaimResponse struct {
	Success               bool   `json:"success"`
	Message               string `json:"message"`
	TokenTransactionHash  string `json:"tokenTransactionHash,omitempty"`
	NativeTransactionHash string `json:"nativeTransactionHash,omitempty"`
	TokenAmount           string `json:"tokenAmount,omitempty"`
	NativeAmount          string `json:"nativeAmount,omitempty"`
}

func (h *ClaimHandler) Claim(c *gin.Context) {
	var input ClaimInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ClaimResponse{
			Success: false,
			Message: "secretCode and recipientAddress are required",
		})
		return
	}

	result, err := h.service.Process(c.Request.Context(), service.ClaimRequest{
		SecretCode:       input.SecretCode,
		RecipientAddress: input.RecipientAddress,
		ClientIP:         c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
	})
	if err != nil {
		status := httpStatusFor(err)
		c.JSON(status, ClaimResponse{
			Success: false,
			Message: errs.UserMessage(err, config.GlobalConfig.IsProduction()),
		})
		return
	}

	c.JSON(http.StatusOK, ClaimResponse{
		Success:               true,
		Message:               "Claim processed successfully",
		TokenTransactionHash:  result.TokenTxHash,
		NativeTransactionHash: result.NativeTxHash,
		TokenAmount:           result.TokenAmount,
		NativeAmount:          result.NativeAmount,
	})
}

// httpStatusFor 业务失败一律 400，系统故障一律 500
func httpStatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindInvalidCode, errs.KindAlreadyClaimed, errs.KindInsufficientBalance:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *ClaimHandler) Status(c *gin.Context) {
	report, err := h.service.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to gather status"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ClaimHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
