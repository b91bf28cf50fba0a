package service

import (
	"context"
	"testing"
	"token_faucet/internal/domain/code/model"
	baseModel "token_faucet/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockCodeRepository 台账仓储的 Mock
type MockCodeRepository struct {
	mock.Mock
}

func (m *MockCodeRepository) Create(code *model.SecretCode) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockCodeRepository) GetByID(id string) (*model.SecretCode, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SecretCode), args.Error(1)
}

func (m *MockCodeRepository) GetByCode(code string) (*model.SecretCode, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SecretCode), args.Error(1)
}

func (m *MockCodeRepository) Validate(code string) (*model.SecretCode, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SecretCode), args.Error(1)
}

func (m *MockCodeRepository) HasRecipientCompleted(address string) (bool, error) {
	args := m.Called(address)
	return args.Bool(0), args.Error(1)
}

func (m *MockCodeRepository) RecordUsage(record *model.UsageRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockCodeRepository) ListActiveWithStats() ([]model.CodeStats, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CodeStats), args.Error(1)
}

func (m *MockCodeRepository) Deactivate(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockCodeRepository) UsageHistory(codeID string) ([]model.UsageRecord, error) {
	args := m.Called(codeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UsageRecord), args.Error(1)
}

func (m *MockCodeRepository) CompletedCount() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCodeRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

const testPattern = "^[A-Za-z0-9._-]{4,64}$"

func newTestCodeService(t *testing.T, repo *MockCodeRepository) CodeService {
	t.Helper()
	// Redis 传 nil：负缓存退化为进程内 map，正确性不受影响
	svc, err := NewCodeService(repo, nil, testPattern)
	assert.NoError(t, err)
	return svc
}

func TestNewCodeServiceRejectsBadPattern(t *testing.T) {
	_, err := NewCodeService(new(MockCodeRepository), nil, "([")
	assert.Error(t, err)
}

func TestMatchesPolicy(t *testing.T) {
	svc := newTestCodeService(t, new(MockCodeRepository))

	assert.True(t, svc.MatchesPolicy("WELCOME2024"))
	assert.True(t, svc.MatchesPolicy("promo.code_v2-final"))
	assert.False(t, svc.MatchesPolicy("abc"))           // 太短
	assert.False(t, svc.MatchesPolicy("has space"))     // 非法字符
	assert.False(t, svc.MatchesPolicy("emoji☃ok")) // 非法字符
	assert.False(t, svc.MatchesPolicy(""))
}

func TestValidateCodeValid(t *testing.T) {
	repo := new(MockCodeRepository)
	maxUses := 10
	code := &model.SecretCode{
		BaseModel:   baseModel.BaseModel{ID: "code-1"},
		Code:        "WELCOME2024",
		MaxUses:     &maxUses,
		CurrentUses: 3,
		IsActive:    true,
	}
	repo.On("Validate", "WELCOME2024").Return(code, nil)

	svc := newTestCodeService(t, repo)
	vr, err := svc.ValidateCode(context.Background(), "WELCOME2024")

	assert.NoError(t, err)
	assert.True(t, vr.Valid)
	assert.Equal(t, "code-1", vr.Code.ID)
	assert.NotNil(t, vr.RemainingUses)
	assert.Equal(t, 7, *vr.RemainingUses)
}

func TestValidateCodeUnlimited(t *testing.T) {
	repo := new(MockCodeRepository)
	code := &model.SecretCode{
		BaseModel:   baseModel.BaseModel{ID: "code-1"},
		Code:        "PARTY",
		CurrentUses: 100,
		IsActive:    true,
	}
	repo.On("Validate", "PARTY").Return(code, nil)

	svc := newTestCodeService(t, repo)
	vr, err := svc.ValidateCode(context.Background(), "PARTY")

	assert.NoError(t, err)
	assert.True(t, vr.Valid)
	assert.Nil(t, vr.RemainingUses)
}

func TestValidateCodeNotFound(t *testing.T) {
	repo := new(MockCodeRepository)
	repo.On("Validate", "NOPE").Return(nil, gorm.ErrRecordNotFound)
	repo.On("GetByCode", "NOPE").Return(nil, gorm.ErrRecordNotFound)

	svc := newTestCodeService(t, repo)
	vr, err := svc.ValidateCode(context.Background(), "NOPE")

	assert.NoError(t, err)
	assert.False(t, vr.Valid)
	assert.Nil(t, vr.Code)
	assert.Equal(t, model.ReasonNotFound, vr.Reason)
}

func TestValidateCodeInactive(t *testing.T) {
	repo := new(MockCodeRepository)
	existing := &model.SecretCode{
		BaseModel: baseModel.BaseModel{ID: "code-1"},
		Code:      "RETIRED",
		IsActive:  false,
	}
	repo.On("Validate", "RETIRED").Return(nil, gorm.ErrRecordNotFound)
	repo.On("GetByCode", "RETIRED").Return(existing, nil)

	svc := newTestCodeService(t, repo)
	vr, err := svc.ValidateCode(context.Background(), "RETIRED")

	assert.NoError(t, err)
	assert.False(t, vr.Valid)
	assert.Equal(t, model.ReasonInactive, vr.Reason)
	assert.NotNil(t, vr.Code)
}

func TestValidateCodeExhaustedHitsNegativeCache(t *testing.T) {
	repo := new(MockCodeRepository)
	maxUses := 2
	existing := &model.SecretCode{
		BaseModel:   baseModel.BaseModel{ID: "code-1"},
		Code:        "USEDUP",
		MaxUses:     &maxUses,
		CurrentUses: 2,
		IsActive:    true,
	}
	// 第一次走数据库并写入负缓存，第二次不应再有任何仓储调用
	repo.On("Validate", "USEDUP").Return(nil, gorm.ErrRecordNotFound).Once()
	repo.On("GetByCode", "USEDUP").Return(existing, nil).Once()

	svc := newTestCodeService(t, repo)

	vr, err := svc.ValidateCode(context.Background(), "USEDUP")
	assert.NoError(t, err)
	assert.False(t, vr.Valid)
	assert.Equal(t, model.ReasonExhausted, vr.Reason)
	assert.NotNil(t, vr.Code)
	assert.Equal(t, "code-1", vr.Code.ID)

	// 命中缓存的那次同样要带回码记录，调用方的失败审计依赖 code ID
	vr, err = svc.ValidateCode(context.Background(), "USEDUP")
	assert.NoError(t, err)
	assert.False(t, vr.Valid)
	assert.Equal(t, model.ReasonExhausted, vr.Reason)
	assert.NotNil(t, vr.Code)
	assert.Equal(t, "code-1", vr.Code.ID)
	assert.Equal(t, "USEDUP", vr.Code.Code)

	repo.AssertExpectations(t)
}

func TestCreateCode(t *testing.T) {
	repo := new(MockCodeRepository)
	repo.On("Create", mock.MatchedBy(func(c *model.SecretCode) bool {
		return c.Code == "NEWCODE" && c.IsActive && c.CreatedBy == "admin"
	})).Return(nil)

	svc := newTestCodeService(t, repo)
	maxUses := 5
	code, err := svc.CreateCode("NEWCODE", "launch promo", "admin", &maxUses)

	assert.NoError(t, err)
	assert.Equal(t, "NEWCODE", code.Code)
	repo.AssertExpectations(t)
}

func TestCreateCodeRejectsPolicyViolation(t *testing.T) {
	repo := new(MockCodeRepository)
	svc := newTestCodeService(t, repo)

	_, err := svc.CreateCode("no spaces allowed", "", "admin", nil)
	assert.Error(t, err)

	zero := 0
	_, err = svc.CreateCode("VALIDCODE", "", "admin", &zero)
	assert.Error(t, err)

	repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestLedgerHealthy(t *testing.T) {
	repo := new(MockCodeRepository)
	repo.On("Ping").Return(nil)

	svc := newTestCodeService(t, repo)
	assert.True(t, svc.LedgerHealthy())
}
