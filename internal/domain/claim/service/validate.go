package service

import (
	"strings"
	"token_faucet/pkg/errs"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeRecipient 校验并归一化收款地址。
// 要求严格的 0x + 40 位 hex；全零、全 F、单一重复字符这类
// 形似合法实则可疑的地址直接拒绝（策略选择，不是协议要求）
func NormalizeRecipient(addr string) (common.Address, error) {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return common.Address{}, errs.New(errs.KindValidation, "recipient address must be 0x followed by 40 hex characters")
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, errs.New(errs.KindValidation, "recipient address contains non-hex characters")
	}

	hexPart := strings.ToLower(addr[2:])
	if isDegenerate(hexPart) {
		return common.Address{}, errs.New(errs.KindValidation, "recipient address is a degenerate pattern")
	}

	// HexToAddress 内部做 checksum 归一化
	return common.HexToAddress(addr), nil
}

func isDegenerate(hexPart string) bool {
	first := hexPart[0]
	for i := 1; i < len(hexPart); i++ {
		if hexPart[i] != first {
			return false
		}
	}
	return true
}
