package chain

import (
	"context"
	"errors"
	"math/big"
	"time"
	"token_faucet/pkg/errs"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// 提交队列大小；签名账户的 nonce 是全局竞争资源，
// 所有交易提交都必须经过这条单协程队列串行化
const submitQueueSize = 64

type submitRequest struct {
	kind   TransferKind
	to     common.Address
	amount *big.Int
	ctx    context.Context
	reply  chan submitResult
}

type submitResult struct {
	hash string
	err  error
}

// submitLoop 签名账户的串行提交协程：取 nonce -> 构造 -> 签名 -> 广播。
// 并发请求在这里排队，避免两个请求拿到同一个 nonce
func (c *Client) submitLoop() {
	for req := range c.submitCh {
		hash, err := c.buildSignBroadcast(req.ctx, req.kind, req.to, req.amount)
		req.reply <- submitResult{hash: hash, err: err}
	}
}

// enqueueTransfer 把转账排进提交队列；队列满说明链上已经堵了，快速失败
func (c *Client) enqueueTransfer(ctx context.Context, kind TransferKind, to common.Address, amount *big.Int) (string, error) {
	req := submitRequest{
		kind:   kind,
		to:     to,
		amount: amount,
		ctx:    ctx,
		reply:  make(chan submitResult, 1),
	}

	select {
	case c.submitCh <- req:
	default:
		return "", errs.New(errs.KindNetwork, "transaction submission queue is full")
	}

	select {
	case res := <-req.reply:
		return res.hash, res.err
	case <-ctx.Done():
		// 交易可能仍会被提交协程发出去；调用方自行用 hash 轮询确认
		return "", errs.Wrap(errs.KindNetwork, "transfer submission cancelled", ctx.Err())
	}
}

func (c *Client) buildSignBroadcast(ctx context.Context, kind TransferKind, to common.Address, amount *big.Int) (string, error) {
	var (
		nonce    uint64
		gasPrice *big.Int
	)

	// nonce 和 gas 价属于只读调用，允许跨节点重试
	err := c.transport.read(ctx, "eth_getTransactionCount", func(ec *ethclient.Client) error {
		n, err := ec.PendingNonceAt(ctx, c.account)
		if err != nil {
			return err
		}
		nonce = n
		return nil
	})
	if err != nil {
		return "", err
	}

	err = c.transport.read(ctx, "eth_gasPrice", func(ec *ethclient.Client) error {
		p, err := ec.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		gasPrice = p
		return nil
	})
	if err != nil {
		return "", err
	}

	gasLimit, err := c.EstimateTransferGas(ctx, kind, to, amount)
	if err != nil {
		return "", err
	}

	var tx *types.Transaction
	switch kind {
	case TransferNative:
		tx = types.NewTransaction(nonce, to, amount, gasLimit, gasPrice, nil)
	case TransferToken:
		data := transferCall{To: to, Amount: amount}.Pack()
		tx = types.NewTransaction(nonce, c.tokenAddr, big.NewInt(0), gasLimit, gasPrice, data)
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", errs.Wrap(errs.KindTransactionFailed, "failed to sign transaction", err)
	}

	// 广播只跑一次：重发已签名交易虽然幂等，但换节点重发
	// 在 nonce 已被消费时会返回误导性的错误，这里保持语义简单
	err = c.transport.once(ctx, "eth_sendRawTransaction", func(ec *ethclient.Client) error {
		return ec.SendTransaction(ctx, signed)
	})
	if err != nil {
		return "", errs.Wrap(errs.KindTransactionFailed, "failed to broadcast transaction", err)
	}

	hash := signed.Hash().Hex()
	c.log.Info("transaction broadcast",
		zap.String("kind", string(kind)),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
		zap.Uint64("nonce", nonce),
		zap.String("hash", hash),
	)
	return hash, nil
}

// WaitMined 有界等待交易上链；超时不算失败，交易仍然是"已提交、未确认"
func (c *Client) WaitMined(ctx context.Context, hash string) (bool, error) {
	timeout := time.Duration(c.cfg.ConfirmTimeout) * time.Second
	if timeout <= 0 {
		return false, nil
	}

	deadline := time.Now().Add(timeout)
	txHash := common.HexToHash(hash)

	for time.Now().Before(deadline) {
		var mined bool
		err := c.transport.read(ctx, "eth_getTransactionReceipt", func(ec *ethclient.Client) error {
			receipt, err := ec.TransactionReceipt(ctx, txHash)
			if errors.Is(err, ethereum.NotFound) {
				// 还没打包，不算节点故障
				return nil
			}
			if err != nil {
				return err
			}
			mined = receipt != nil
			return nil
		})
		if err != nil {
			return false, err
		}
		if mined {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-time.After(2 * time.Second):
		}
	}
	return false, nil
}
