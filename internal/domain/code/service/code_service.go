package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
	"token_faucet/internal/domain/code/model"
	"token_faucet/internal/domain/code/repository"
	baseModel "token_faucet/pkg/model"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ValidationResult 校验结论；Valid=false 时 Reason 给出原样透传的原因
type ValidationResult struct {
	Valid         bool
	Code          *model.SecretCode
	RemainingUses *int
	Reason        string
}

type CodeService interface {
	// ValidateCode 只读校验，无副作用；重复调用已用尽的码永远返回 Valid=false
	ValidateCode(ctx context.Context, code string) (*ValidationResult, error)
	HasRecipientCompleted(address string) (bool, error)
	RecordUsage(record *model.UsageRecord) error
	MatchesPolicy(code string) bool

	CreateCode(code, description, createdBy string, maxUses *int) (*model.SecretCode, error)
	DeactivateCode(id string) error
	ListActiveWithStats() ([]model.CodeStats, error)
	UsageHistory(codeID string) ([]model.UsageRecord, error)
	CompletedCount() (int64, error)
	LedgerHealthy() bool
}

type codeService struct {
	repo         repository.CodeRepository
	rdb          *redis.Client
	codePattern  *regexp.Regexp
	exhaustedMap sync.Map // 本地负缓存：已用尽的码，省一次数据库往返
}

func NewCodeService(repo repository.CodeRepository, rdb *redis.Client, codePattern string) (CodeService, error) {
	re, err := regexp.Compile(codePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid code pattern %q: %w", codePattern, err)
	}
	return &codeService{
		repo:        repo,
		rdb:         rdb,
		codePattern: re,
	}, nil
}

func (s *codeService) MatchesPolicy(code string) bool {
	return s.codePattern.MatchString(code)
}

func exhaustedKey(code string) string {
	return "faucet:exhausted:" + code
}

// markExhausted 负缓存仅是加速手段，数据库的条件更新才是唯一权威；
// Redis 被清空也不影响正确性。缓存值是 code ID，命中缓存的
// 失败请求仍然能关联到码做审计落账
func (s *codeService) markExhausted(ctx context.Context, code, codeID string) {
	s.exhaustedMap.Store(code, codeID)
	if s.rdb != nil {
		s.rdb.SetEx(ctx, exhaustedKey(code), codeID, 10*time.Minute)
	}
}

func (s *codeService) knownExhausted(ctx context.Context, code string) (string, bool) {
	if v, ok := s.exhaustedMap.Load(code); ok {
		return v.(string), true
	}
	if s.rdb != nil {
		if id, err := s.rdb.Get(ctx, exhaustedKey(code)).Result(); err == nil && id != "" {
			return id, true
		}
	}
	return "", false
}

func (s *codeService) ValidateCode(ctx context.Context, codeStr string) (*ValidationResult, error) {
	if id, ok := s.knownExhausted(ctx, codeStr); ok {
		// 和未命中缓存的路径一样带上码记录，调用方照常落失败审计
		return &ValidationResult{
			Valid: false,
			Code: &model.SecretCode{
				BaseModel: baseModel.BaseModel{ID: id},
				Code:      codeStr,
			},
			Reason: model.ReasonExhausted,
		}, nil
	}

	code, err := s.repo.Validate(codeStr)
	if err == nil {
		return &ValidationResult{
			Valid:         true,
			Code:          code,
			RemainingUses: code.RemainingUses(),
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 条件查询没命中，再查一次裸记录区分具体原因
	existing, lookupErr := s.repo.GetByCode(codeStr)
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return &ValidationResult{Valid: false, Reason: model.ReasonNotFound}, nil
	}
	if lookupErr != nil {
		return nil, lookupErr
	}

	if !existing.IsActive {
		return &ValidationResult{Valid: false, Code: existing, Reason: model.ReasonInactive}, nil
	}
	s.markExhausted(ctx, codeStr, existing.ID)
	return &ValidationResult{Valid: false, Code: existing, Reason: model.ReasonExhausted}, nil
}

func (s *codeService) HasRecipientCompleted(address string) (bool, error) {
	return s.repo.HasRecipientCompleted(address)
}

func (s *codeService) RecordUsage(record *model.UsageRecord) error {
	return s.repo.RecordUsage(record)
}

func (s *codeService) CreateCode(codeStr, description, createdBy string, maxUses *int) (*model.SecretCode, error) {
	if !s.MatchesPolicy(codeStr) {
		return nil, fmt.Errorf("code %q does not match the configured format policy", codeStr)
	}
	if maxUses != nil && *maxUses < 1 {
		return nil, fmt.Errorf("max_uses must be at least 1")
	}

	code := &model.SecretCode{
		Code:        codeStr,
		Description: description,
		MaxUses:     maxUses,
		IsActive:    true,
		CreatedBy:   createdBy,
	}
	if err := s.repo.Create(code); err != nil {
		return nil, err
	}
	return code, nil
}

func (s *codeService) DeactivateCode(id string) error {
	return s.repo.Deactivate(id)
}

func (s *codeService) ListActiveWithStats() ([]model.CodeStats, error) {
	return s.repo.ListActiveWithStats()
}

func (s *codeService) UsageHistory(codeID string) ([]model.UsageRecord, error) {
	return s.repo.UsageHistory(codeID)
}

func (s *codeService) CompletedCount() (int64, error) {
	return s.repo.CompletedCount()
}

func (s *codeService) LedgerHealthy() bool {
	return s.repo.Ping() == nil
}
