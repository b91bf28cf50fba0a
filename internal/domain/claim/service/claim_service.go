package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	codeModel "token_faucet/internal/domain/code/model"
	codeRepo "token_faucet/internal/domain/code/repository"
	codeService "token_faucet/internal/domain/code/service"
	"token_faucet/internal/pkg/chain"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"
	"token_faucet/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChainClient 编排器消费的链客户端子集，方便测试替换
type ChainClient interface {
	Account() common.Address
	IsConnected(ctx context.Context) bool
	TokenBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateTransferGas(ctx context.Context, kind chain.TransferKind, to common.Address, amount *big.Int) (uint64, error)
	TransferToken(ctx context.Context, to common.Address, amount *big.Int) (string, error)
	TransferNative(ctx context.Context, to common.Address, amount *big.Int) (string, error)
	WaitMined(ctx context.Context, hash string) (bool, error)
}

// ClaimRequest 一次领取请求；Gateway 已做过 JSON 结构校验
type ClaimRequest struct {
	SecretCode       string
	RecipientAddress string
	ClientIP         string
	UserAgent        string
}

// ClaimResult 成功领取的回执
type ClaimResult struct {
	TokenTxHash  string
	NativeTxHash string
	TokenAmount  string
	NativeAmount string
}

// StatusReport GET /status 的内容
type StatusReport struct {
	IsConnected    bool   `json:"isConnected"`
	AccountAddress string `json:"accountAddress"`
	TokenBalance   string `json:"tokenBalance"`
	NativeBalance  string `json:"nativeBalance"`
	TokenDisplay   string `json:"tokenBalanceDisplay"`
	NativeDisplay  string `json:"nativeBalanceDisplay"`
	ProcessedCount int64  `json:"processedCount"`
	LedgerHealthy  bool   `json:"ledgerHealthy"`
}

type ClaimService interface {
	Process(ctx context.Context, req ClaimRequest) (*ClaimResult, error)
	Status(ctx context.Context) (*StatusReport, error)
}

type claimService struct {
	codes codeService.CodeService
	chain ChainClient
	log   *zap.Logger

	tokenAmount    *big.Int
	nativeAmount   *big.Int
	tokenDecimals  int
	gasMargin      int64
	confirmTimeout int64
	enforceUnique  bool
}

func NewClaimService(codes codeService.CodeService, chainClient ChainClient, chainCfg config.ChainConfig, faucetCfg config.FaucetConfig, log *zap.Logger) (ClaimService, error) {
	tokenAmount, ok := new(big.Int).SetString(chainCfg.TokenAmount, 10)
	if !ok {
		return nil, errs.Newf(errs.KindConfiguration, "token_amount %q is not a base-unit integer", chainCfg.TokenAmount)
	}
	nativeAmount, ok := new(big.Int).SetString(chainCfg.NativeAmount, 10)
	if !ok {
		return nil, errs.Newf(errs.KindConfiguration, "native_amount %q is not a base-unit integer", chainCfg.NativeAmount)
	}

	return &claimService{
		codes:          codes,
		chain:          chainClient,
		log:            log,
		tokenAmount:    tokenAmount,
		nativeAmount:   nativeAmount,
		tokenDecimals:  chainCfg.TokenDecimals,
		gasMargin:      chainCfg.GasMarginPercent,
		confirmTimeout: chainCfg.ConfirmTimeout,
		enforceUnique:  faucetCfg.EnforceUniqueRecipient,
	}, nil
}

// Process 每个请求的状态机：
// RECEIVED -> CODE_VALIDATED -> BALANCE_CHECKED -> TOKEN_SENT -> NATIVE_SENT -> RECORDED
// 任何一步失败都落一条 failed 记录（入参校验失败除外，那时还没碰台账）
func (s *claimService) Process(ctx context.Context, req ClaimRequest) (result *ClaimResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "completed"
		if err != nil {
			outcome = outcomeLabel(err)
		}
		metrics.Default.RecordClaim(outcome, time.Since(start))
	}()

	// 入参校验，不碰台账也不碰链
	if !s.codes.MatchesPolicy(req.SecretCode) {
		return nil, errs.New(errs.KindValidation, "secret code has invalid format")
	}
	recipient, err := NormalizeRecipient(req.RecipientAddress)
	if err != nil {
		return nil, err
	}

	// RECEIVED -> CODE_VALIDATED
	vr, err := s.codes.ValidateCode(ctx, req.SecretCode)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "code validation query failed", err)
	}
	if !vr.Valid {
		// 码存在但不可用时也要留审计记录
		if vr.Code != nil {
			s.recordFailure(vr.Code.ID, recipient, req, vr.Reason, nil, nil)
		}
		return nil, errs.New(errs.KindInvalidCode, vr.Reason)
	}
	code := vr.Code

	// 一个钱包只许领一次（可配置），独立于单码次数限制
	if s.enforceUnique {
		claimed, err := s.codes.HasRecipientCompleted(recipient.Hex())
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, "recipient lookup failed", err)
		}
		if claimed {
			s.recordFailure(code.ID, recipient, req, "recipient has already claimed", nil, nil)
			return nil, errs.New(errs.KindAlreadyClaimed, "this wallet has already claimed from the faucet")
		}
	}

	// CODE_VALIDATED -> BALANCE_CHECKED
	if err := s.checkBalances(ctx, recipient); err != nil {
		s.recordFailure(code.ID, recipient, req, err.Error(), nil, nil)
		return nil, err
	}

	// BALANCE_CHECKED -> TOKEN_SENT
	tokenHash, err := s.chain.TransferToken(ctx, recipient, s.tokenAmount)
	if err != nil {
		metrics.Default.RecordTransferSubmission("token", "failed")
		s.recordFailure(code.ID, recipient, req, err.Error(), nil, nil)
		return nil, errs.Wrap(errs.KindTransactionFailed, "token transfer failed", err)
	}
	metrics.Default.RecordTransferSubmission("token", "submitted")

	// TOKEN_SENT -> NATIVE_SENT
	// 这里失败就是真正的半途失败：代币已经出库，原生币没出。
	// 链上转账不可逆，不做自动回滚，把代币哈希留给运维人工处理
	nativeHash, err := s.chain.TransferNative(ctx, recipient, s.nativeAmount)
	if err != nil {
		metrics.Default.RecordTransferSubmission("native", "failed")
		metrics.Default.RecordPartialFailure()
		s.log.Error("partial failure: token sent but native transfer failed",
			zap.String("code_id", code.ID),
			zap.String("recipient", recipient.Hex()),
			zap.String("token_tx", tokenHash),
			zap.Error(err),
		)
		s.recordFailure(code.ID, recipient, req,
			fmt.Sprintf("native transfer failed after token transfer succeeded: %v", err),
			&tokenHash, nil)
		return nil, errs.Wrap(errs.KindTransactionFailed, "native transfer failed after token transfer succeeded", err)
	}
	metrics.Default.RecordTransferSubmission("native", "submitted")

	// NATIVE_SENT -> RECORDED：这一步才真正消耗名额
	tokenAmountStr := s.tokenAmount.String()
	nativeAmountStr := s.nativeAmount.String()
	record := &codeModel.UsageRecord{
		CodeID:           code.ID,
		RecipientAddress: recipient.Hex(),
		TokenTxHash:      &tokenHash,
		NativeTxHash:     &nativeHash,
		TokenAmount:      &tokenAmountStr,
		NativeAmount:     &nativeAmountStr,
		ClientIP:         req.ClientIP,
		UserAgent:        req.UserAgent,
		Status:           codeModel.UsageStatusCompleted,
	}
	if err := s.codes.RecordUsage(record); err != nil {
		if errors.Is(err, codeRepo.ErrCodeExhausted) {
			// 两个并发请求都过了预校验，名额被对方在落账时抢走。
			// 转账已经发出，把哈希留在失败记录里给运维
			s.log.Error("quota lost at record time, transfers already sent",
				zap.String("code_id", code.ID),
				zap.String("recipient", recipient.Hex()),
				zap.String("token_tx", tokenHash),
				zap.String("native_tx", nativeHash),
			)
			s.recordFailure(code.ID, recipient, req, codeModel.ReasonExhausted, &tokenHash, &nativeHash)
			return nil, errs.New(errs.KindInvalidCode, codeModel.ReasonExhausted)
		}
		if errors.Is(err, codeRepo.ErrRecipientClaimed) {
			// 同一钱包的并发请求抢先落了账，唯一索引把这边的 completed 拦下。
			// 性质上和名额竞态一样：转账已出，只能留痕
			s.log.Error("recipient uniqueness lost at record time, transfers already sent",
				zap.String("code_id", code.ID),
				zap.String("recipient", recipient.Hex()),
				zap.String("token_tx", tokenHash),
				zap.String("native_tx", nativeHash),
			)
			s.recordFailure(code.ID, recipient, req, "recipient has already claimed", &tokenHash, &nativeHash)
			return nil, errs.New(errs.KindAlreadyClaimed, "this wallet has already claimed from the faucet")
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to record completed usage", err)
	}

	s.log.Info("claim completed",
		zap.String("code", code.Code),
		zap.String("recipient", recipient.Hex()),
		zap.String("token_tx", tokenHash),
		zap.String("native_tx", nativeHash),
	)

	if s.confirmTimeout > 0 {
		go s.confirmTransfers(tokenHash, nativeHash)
	}

	return &ClaimResult{
		TokenTxHash:  tokenHash,
		NativeTxHash: nativeHash,
		TokenAmount:  tokenAmountStr,
		NativeAmount: nativeAmountStr,
	}, nil
}

// checkBalances 连通性 + 金库余额 + gas 预算校验。
// 原生币要覆盖发放额加两笔转账的 gas，gas 价按配置比例上浮，降低卡单概率
func (s *claimService) checkBalances(ctx context.Context, recipient common.Address) error {
	if !s.chain.IsConnected(ctx) {
		return errs.New(errs.KindNetwork, "blockchain network is unreachable")
	}

	account := s.chain.Account()

	tokenBalance, err := s.chain.TokenBalance(ctx, account)
	if err != nil {
		return err
	}
	if tokenBalance.Cmp(s.tokenAmount) < 0 {
		shortfall := new(big.Int).Sub(s.tokenAmount, tokenBalance)
		return errs.Newf(errs.KindInsufficientBalance,
			"insufficient token balance: need %s, have %s (short %s base units)",
			s.tokenAmount, tokenBalance, shortfall)
	}

	nativeBalance, err := s.chain.NativeBalance(ctx, account)
	if err != nil {
		return err
	}

	gasToken, err := s.chain.EstimateTransferGas(ctx, chain.TransferToken, recipient, s.tokenAmount)
	if err != nil {
		return err
	}
	gasNative, err := s.chain.EstimateTransferGas(ctx, chain.TransferNative, recipient, s.nativeAmount)
	if err != nil {
		return err
	}
	gasPrice, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}

	totalGas := new(big.Int).SetUint64(gasToken + gasNative)
	gasCost := new(big.Int).Mul(totalGas, gasPrice)
	gasCost.Mul(gasCost, big.NewInt(100+s.gasMargin))
	gasCost.Div(gasCost, big.NewInt(100))

	required := new(big.Int).Add(s.nativeAmount, gasCost)
	if nativeBalance.Cmp(required) < 0 {
		shortfall := new(big.Int).Sub(required, nativeBalance)
		return errs.Newf(errs.KindInsufficientBalance,
			"insufficient native balance: need %s (amount + gas), have %s (short %s base units)",
			required, nativeBalance, shortfall)
	}

	return nil
}

// recordFailure 失败也要落账；落账本身失败只能记日志，不能吞掉原错误
func (s *claimService) recordFailure(codeID string, recipient common.Address, req ClaimRequest, message string, tokenHash, nativeHash *string) {
	var metadata json.RawMessage
	if tokenHash != nil {
		m := map[string]string{"partial": "token_sent", "token_tx_hash": *tokenHash}
		if nativeHash != nil {
			m["partial"] = "both_sent_quota_lost"
			m["native_tx_hash"] = *nativeHash
		}
		metadata, _ = json.Marshal(m)
	}

	record := &codeModel.UsageRecord{
		CodeID:           codeID,
		RecipientAddress: recipient.Hex(),
		TokenTxHash:      tokenHash,
		NativeTxHash:     nativeHash,
		ClientIP:         req.ClientIP,
		UserAgent:        req.UserAgent,
		Status:           codeModel.UsageStatusFailed,
		ErrorMessage:     &message,
		Metadata:         metadata,
	}
	if err := s.codes.RecordUsage(record); err != nil {
		s.log.Error("failed to record failed usage",
			zap.String("code_id", codeID),
			zap.String("recipient", recipient.Hex()),
			zap.Error(err),
		)
	}
}

// confirmTransfers 出账后的有界确认，纯观测用：回执超时不是失败，
// 交易仍然是已提交待确认，不回写台账
func (s *claimService) confirmTransfers(tokenHash, nativeHash string) {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(2*s.confirmTimeout+10)*time.Second)
	defer cancel()

	for _, leg := range []struct {
		name string
		hash string
	}{
		{"token", tokenHash},
		{"native", nativeHash},
	} {
		mined, err := s.chain.WaitMined(ctx, leg.hash)
		switch {
		case err != nil:
			s.log.Warn("confirmation poll failed",
				zap.String("leg", leg.name),
				zap.String("hash", leg.hash),
				zap.Error(err),
			)
		case mined:
			s.log.Info("transfer confirmed",
				zap.String("leg", leg.name),
				zap.String("hash", leg.hash),
			)
		default:
			s.log.Warn("transfer not confirmed within timeout, still pending",
				zap.String("leg", leg.name),
				zap.String("hash", leg.hash),
			)
		}
	}
}

func (s *claimService) Status(ctx context.Context) (*StatusReport, error) {
	account := s.chain.Account()
	report := &StatusReport{
		AccountAddress: account.Hex(),
		IsConnected:    s.chain.IsConnected(ctx),
		LedgerHealthy:  s.codes.LedgerHealthy(),
	}

	// 状态报告是降级的：取不到的字段留空，但必须留下日志，
	// 否则"金库空了"和"查询挂了"在报告里无法区分
	if count, err := s.codes.CompletedCount(); err == nil {
		report.ProcessedCount = count
	} else {
		s.log.Warn("status: failed to count completed claims", zap.Error(err))
	}

	if !report.IsConnected {
		return report, nil
	}

	if tokenBalance, err := s.chain.TokenBalance(ctx, account); err == nil {
		report.TokenBalance = tokenBalance.String()
		report.TokenDisplay = formatBaseUnits(tokenBalance, s.tokenDecimals)
	} else {
		s.log.Warn("status: failed to fetch token balance", zap.Error(err))
	}
	if nativeBalance, err := s.chain.NativeBalance(ctx, account); err == nil {
		report.NativeBalance = nativeBalance.String()
		report.NativeDisplay = formatBaseUnits(nativeBalance, 18)
	} else {
		s.log.Warn("status: failed to fetch native balance", zap.Error(err))
	}

	return report, nil
}

// formatBaseUnits 只在展示层做人类可读换算，核心算术全程 big.Int
func formatBaseUnits(amount *big.Int, decimals int) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func outcomeLabel(err error) string {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return "validation_rejected"
	case errs.KindInvalidCode:
		return "invalid_code"
	case errs.KindAlreadyClaimed:
		return "already_claimed"
	case errs.KindInsufficientBalance:
		return "insufficient_balance"
	case errs.KindNetwork:
		return "network_error"
	case errs.KindTransactionFailed:
		return "transaction_failed"
	default:
		return "internal_error"
	}
}
