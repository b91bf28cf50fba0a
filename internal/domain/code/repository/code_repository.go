package repository

import (
	"errors"
	"strings"
	"token_faucet/internal/domain/code/model"

	"gorm.io/gorm"
)

// ErrCodeExhausted 条件更新没有命中任何行：并发领取把最后一次名额抢走了
var ErrCodeExhausted = errors.New(model.ReasonExhausted)

// ErrRecipientClaimed completed 插入撞上收款地址唯一索引：
// 同一钱包的并发请求有一个先落账了
var ErrRecipientClaimed = errors.New("recipient already has a completed claim")

type CodeRepository interface {
	Create(code *model.SecretCode) error
	GetByID(id string) (*model.SecretCode, error)
	GetByCode(code string) (*model.SecretCode, error)

	// Validate 单条原子查询校验：存在 + 激活 + 未用尽。
	// 只读、无副作用；名额的最终独占在 RecordUsage 的条件更新里保证
	Validate(code string) (*model.SecretCode, error)

	// HasRecipientCompleted 该地址（小写归一后）是否已有成功领取记录
	HasRecipientCompleted(address string) (bool, error)

	// RecordUsage 插入领取记录；status=completed 时在同一事务里做
	// 条件自增 current_uses，没抢到名额整个事务回滚并返回 ErrCodeExhausted
	RecordUsage(record *model.UsageRecord) error

	ListActiveWithStats() ([]model.CodeStats, error)
	Deactivate(id string) error
	UsageHistory(codeID string) ([]model.UsageRecord, error)
	CompletedCount() (int64, error)
	Ping() error
}

type codeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) CodeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) Create(code *model.SecretCode) error {
	return r.db.Create(code).Error
}

func (r *codeRepository) GetByID(id string) (*model.SecretCode, error) {
	var code model.SecretCode
	if err := r.db.First(&code, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *codeRepository) GetByCode(codeStr string) (*model.SecretCode, error) {
	var code model.SecretCode
	if err := r.db.First(&code, "code = ?", codeStr).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *codeRepository) Validate(codeStr string) (*model.SecretCode, error) {
	var code model.SecretCode
	err := r.db.
		Where("code = ? AND is_active = ? AND (max_uses IS NULL OR current_uses < max_uses)", codeStr, true).
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *codeRepository) HasRecipientCompleted(address string) (bool, error) {
	var count int64
	err := r.db.Model(&model.UsageRecord{}).
		Where("recipient_address = ? AND status = ?", strings.ToLower(address), model.UsageStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

// consumeUse 乐观锁式条件自增，current_uses 永远不会越过 max_uses。
// 读出来再写回去的做法有竞态，这里必须用单条 UPDATE
func consumeUse(tx *gorm.DB, codeID string) error {
	result := tx.Model(&model.SecretCode{}).
		Where("id = ? AND is_active = ? AND (max_uses IS NULL OR current_uses < max_uses)", codeID, true).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeExhausted
	}
	return nil
}

func (r *codeRepository) RecordUsage(record *model.UsageRecord) error {
	record.RecipientAddress = strings.ToLower(record.RecipientAddress)

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			// completed 记录的部分唯一索引是收款地址独占的最后防线，
			// 预检之后仍可能被并发请求抢先
			if record.Status == model.UsageStatusCompleted && errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrRecipientClaimed
			}
			return err
		}
		if record.Status == model.UsageStatusCompleted {
			if err := consumeUse(tx, record.CodeID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *codeRepository) ListActiveWithStats() ([]model.CodeStats, error) {
	var codes []model.SecretCode
	if err := r.db.Where("is_active = ?", true).Order("created_at DESC").Find(&codes).Error; err != nil {
		return nil, err
	}

	stats := make([]model.CodeStats, 0, len(codes))
	for _, code := range codes {
		var completed, failed int64
		if err := r.db.Model(&model.UsageRecord{}).
			Where("code_id = ? AND status = ?", code.ID, model.UsageStatusCompleted).
			Count(&completed).Error; err != nil {
			return nil, err
		}
		if err := r.db.Model(&model.UsageRecord{}).
			Where("code_id = ? AND status = ?", code.ID, model.UsageStatusFailed).
			Count(&failed).Error; err != nil {
			return nil, err
		}
		stats = append(stats, model.CodeStats{
			SecretCode:     code,
			CompletedCount: completed,
			FailedCount:    failed,
		})
	}
	return stats, nil
}

// Deactivate 软停用；兑换码从不物理删除，审计需要
func (r *codeRepository) Deactivate(id string) error {
	result := r.db.Model(&model.SecretCode{}).
		Where("id = ?", id).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *codeRepository) UsageHistory(codeID string) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	err := r.db.
		Where("code_id = ?", codeID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

func (r *codeRepository) CompletedCount() (int64, error) {
	var count int64
	err := r.db.Model(&model.UsageRecord{}).
		Where("status = ?", model.UsageStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *codeRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
