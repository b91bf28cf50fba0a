package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC-20 方法选择器，定死在这里而不是跑完整 ABI 解析：
// 水龙头只用到 balanceOf 和 transfer 两个方法
var (
	erc20BalanceOfID = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	erc20TransferID  = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
)

// balanceOfCall balanceOf(address) 的类型化请求
type balanceOfCall struct {
	Account common.Address
}

func (c balanceOfCall) Pack() []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, erc20BalanceOfID...)
	data = append(data, common.LeftPadBytes(c.Account.Bytes(), 32)...)
	return data
}

// transferCall transfer(address,uint256) 的类型化请求
type transferCall struct {
	To     common.Address
	Amount *big.Int
}

func (c transferCall) Pack() []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, erc20TransferID...)
	data = append(data, common.LeftPadBytes(c.To.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(c.Amount.Bytes(), 32)...)
	return data
}

// unpackUint256 解析单个 uint256 返回值
func unpackUint256(ret []byte) (*big.Int, error) {
	if len(ret) != 32 {
		return nil, fmt.Errorf("unexpected return length %d, want 32", len(ret))
	}
	return new(big.Int).SetBytes(ret), nil
}
