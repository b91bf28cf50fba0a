package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"
	"token_faucet/internal/pkg/config"
	"token_faucet/pkg/errs"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// TransferKind 转账种类：ERC-20 代币或链原生币
type TransferKind string

const (
	TransferToken  TransferKind = "token"
	TransferNative TransferKind = "native"
)

// Client 链客户端：多节点故障转移、余额/估 gas 查询、串行化的交易提交
type Client struct {
	cfg       config.ChainConfig
	key       *ecdsa.PrivateKey
	account   common.Address
	tokenAddr common.Address
	chainID   *big.Int
	transport *rankedTransport
	submitCh  chan submitRequest
	log       *zap.Logger
}

// New 用已解析出的签名私钥构造链客户端
func New(cfg config.ChainConfig, secret []byte, log *zap.Logger) (*Client, error) {
	keyHex := strings.TrimSpace(string(secret))
	keyHex = strings.TrimPrefix(keyHex, "0x")

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "signing key is not a valid private key", err)
	}

	transport, err := newRankedTransport(cfg.RPCURLs, log)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		key:       key,
		account:   crypto.PubkeyToAddress(key.PublicKey),
		tokenAddr: common.HexToAddress(cfg.TokenContract),
		chainID:   big.NewInt(cfg.ChainID),
		transport: transport,
		submitCh:  make(chan submitRequest, submitQueueSize),
		log:       log,
	}
	go c.submitLoop()

	return c, nil
}

// Account 签名账户地址
func (c *Client) Account() common.Address {
	return c.account
}

// IsConnected 任一节点能回应最新块高即认为在线
func (c *Client) IsConnected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.transport.read(ctx, "eth_blockNumber", func(ec *ethclient.Client) error {
		_, err := ec.BlockNumber(ctx)
		return err
	})
	return err == nil
}

// NativeBalance 原生币余额，base unit
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.transport.read(ctx, "eth_getBalance", func(ec *ethclient.Client) error {
		b, err := ec.BalanceAt(ctx, addr, nil)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// TokenBalance ERC-20 余额，base unit
func (c *Client) TokenBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	msg := ethereum.CallMsg{
		To:   &c.tokenAddr,
		Data: balanceOfCall{Account: addr}.Pack(),
	}

	var ret []byte
	err := c.transport.read(ctx, "eth_call", func(ec *ethclient.Client) error {
		out, err := ec.CallContract(ctx, msg, nil)
		if err != nil {
			return err
		}
		ret = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	balance, err := unpackUint256(ret)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "malformed balanceOf response", err)
	}
	return balance, nil
}

// SuggestGasPrice 当前建议 gas 价
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.transport.read(ctx, "eth_gasPrice", func(ec *ethclient.Client) error {
		p, err := ec.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return price, nil
}

// EstimateTransferGas 预估一笔转账的 gas 用量
func (c *Client) EstimateTransferGas(ctx context.Context, kind TransferKind, to common.Address, amount *big.Int) (uint64, error) {
	var msg ethereum.CallMsg
	switch kind {
	case TransferNative:
		msg = ethereum.CallMsg{
			From:  c.account,
			To:    &to,
			Value: amount,
		}
	case TransferToken:
		msg = ethereum.CallMsg{
			From: c.account,
			To:   &c.tokenAddr,
			Data: transferCall{To: to, Amount: amount}.Pack(),
		}
	default:
		return 0, errs.Newf(errs.KindInternal, "unknown transfer kind %q", kind)
	}

	var gas uint64
	err := c.transport.read(ctx, "eth_estimateGas", func(ec *ethclient.Client) error {
		g, err := ec.EstimateGas(ctx, msg)
		if err != nil {
			return err
		}
		gas = g
		return nil
	})
	if err != nil {
		return 0, err
	}
	return gas, nil
}

// TransferToken 发送 ERC-20 转账，立即返回交易哈希，不等确认
func (c *Client) TransferToken(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	return c.enqueueTransfer(ctx, TransferToken, to, amount)
}

// TransferNative 发送原生币转账，立即返回交易哈希，不等确认
func (c *Client) TransferNative(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	return c.enqueueTransfer(ctx, TransferNative, to, amount)
}

// Close 结束提交协程并关闭底层连接；关闭后不得再调用转账方法
func (c *Client) Close() {
	close(c.submitCh)
	c.transport.Close()
}
