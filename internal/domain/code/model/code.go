package model

import (
	"encoding/json"
	baseModel "token_faucet/pkg/model"
)

// SecretCode 可兑换的密码定义
type SecretCode struct {
	baseModel.BaseModel
	Code        string `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Description string `gorm:"type:varchar(255)" json:"description"`
	MaxUses     *int   `json:"maxUses"`                           // nil = 不限次数
	CurrentUses int    `gorm:"not null;default:0" json:"currentUses"` // 只增不减，仅在成功记录时递增
	IsActive    bool   `gorm:"not null;default:true" json:"isActive"`
	CreatedBy   string `gorm:"type:varchar(64)" json:"createdBy"`
}

// Exhausted 是否已用尽
func (c *SecretCode) Exhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// RemainingUses 剩余次数；不限次数返回 nil
func (c *SecretCode) RemainingUses() *int {
	if c.MaxUses == nil {
		return nil
	}
	r := *c.MaxUses - c.CurrentUses
	if r < 0 {
		r = 0
	}
	return &r
}

// UsageRecord 每次领取尝试（含失败）都落一条，只插入不修改，作为审计线索
type UsageRecord struct {
	baseModel.BaseModel
	CodeID           string          `gorm:"type:uuid;index;not null" json:"codeId"`
	RecipientAddress string          `gorm:"type:varchar(42);index;not null" json:"recipientAddress"` // 统一小写
	TokenTxHash      *string         `gorm:"type:varchar(66)" json:"tokenTxHash"`
	NativeTxHash     *string         `gorm:"type:varchar(66)" json:"nativeTxHash"`
	TokenAmount      *string         `gorm:"type:varchar(80)" json:"tokenAmount"`  // base unit 十进制字符串
	NativeAmount     *string         `gorm:"type:varchar(80)" json:"nativeAmount"` // base unit 十进制字符串
	ClientIP         string          `gorm:"type:varchar(45)" json:"clientIp"`
	UserAgent        string          `gorm:"type:varchar(255)" json:"userAgent"`
	Status           string          `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	ErrorMessage     *string         `json:"errorMessage"`
	Metadata         json.RawMessage `gorm:"type:jsonb" json:"metadata"`
}

// 领取记录状态
const (
	UsageStatusPending   = "pending"
	UsageStatusCompleted = "completed"
	UsageStatusFailed    = "failed"
)

// 校验失败原因，原样透给调用方
const (
	ReasonNotFound  = "code not found"
	ReasonInactive  = "code is no longer active"
	ReasonExhausted = "code has reached maximum uses"
)

// CodeStats 管理端列表用的统计视图
type CodeStats struct {
	SecretCode
	CompletedCount int64 `json:"completedCount"`
	FailedCount    int64 `json:"failedCount"`
}
