package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"
	"token_faucet/pkg/errs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEndpointDemotionAndRecovery(t *testing.T) {
	ep := &endpoint{url: "http://node-a", healthy: true}

	// 单次失败只计数，不降级
	ep.recordFailure()
	_, failures, healthy := ep.snapshot()
	assert.Equal(t, 1, failures)
	assert.True(t, healthy)

	// 连续两次失败降级
	ep.recordFailure()
	_, failures, healthy = ep.snapshot()
	assert.Equal(t, 2, failures)
	assert.False(t, healthy)

	// 一次成功即恢复并清零失败计数
	ep.recordSuccess(80 * time.Millisecond)
	latency, failures, healthy := ep.snapshot()
	assert.Equal(t, 0, failures)
	assert.True(t, healthy)
	assert.Equal(t, 80*time.Millisecond, latency)
}

func TestEndpointLatencyEWMA(t *testing.T) {
	ep := &endpoint{url: "http://node-a", healthy: true}

	ep.recordSuccess(100 * time.Millisecond)
	ep.recordSuccess(20 * time.Millisecond)

	// (100*3 + 20) / 4 = 80
	latency, _, _ := ep.snapshot()
	assert.Equal(t, 80*time.Millisecond, latency)
}

func TestRankedOrdering(t *testing.T) {
	slow := &endpoint{url: "http://slow", healthy: true, latency: 500 * time.Millisecond}
	fast := &endpoint{url: "http://fast", healthy: true, latency: 20 * time.Millisecond}
	flaky := &endpoint{url: "http://flaky", healthy: true, latency: 10 * time.Millisecond, failures: 1}
	down := &endpoint{url: "http://down", healthy: false}

	tr := &rankedTransport{
		endpoints: []*endpoint{down, slow, flaky, fast},
		log:       zap.NewNop(),
	}

	ranked := tr.ranked()
	urls := make([]string, len(ranked))
	for i, ep := range ranked {
		urls[i] = ep.url
	}

	// 健康 > 连续失败少 > 延迟低；不健康的排最后
	assert.Equal(t, []string{"http://fast", "http://slow", "http://flaky", "http://down"}, urls)
}

func TestRankedDoesNotMutateOriginal(t *testing.T) {
	a := &endpoint{url: "http://a", healthy: false}
	b := &endpoint{url: "http://b", healthy: true}
	tr := &rankedTransport{endpoints: []*endpoint{a, b}, log: zap.NewNop()}

	tr.ranked()

	// 配置顺序保持不变，排序只发生在快照副本上
	assert.Equal(t, "http://a", tr.endpoints[0].url)
	assert.Equal(t, "http://b", tr.endpoints[1].url)
}

func TestReadRetriesAcrossEndpoints(t *testing.T) {
	a := &endpoint{url: "http://a", healthy: true}
	b := &endpoint{url: "http://b", healthy: true}
	tr := &rankedTransport{endpoints: []*endpoint{a, b}, log: zap.NewNop()}

	calls := 0
	err := tr.read(context.Background(), "eth_blockNumber", func(*ethclient.Client) error {
		calls++
		return errors.New("connection refused")
	})

	assert.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))
	assert.Equal(t, readAttempts, calls)

	// 两个节点都积累了失败计数
	_, fa, _ := a.snapshot()
	_, fb, _ := b.snapshot()
	assert.Equal(t, readAttempts, fa+fb)
}

func TestReadStopsOnFirstSuccess(t *testing.T) {
	a := &endpoint{url: "http://a", healthy: true}
	tr := &rankedTransport{endpoints: []*endpoint{a}, log: zap.NewNop()}

	calls := 0
	err := tr.read(context.Background(), "eth_gasPrice", func(*ethclient.Client) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestOnceNeverRetries(t *testing.T) {
	a := &endpoint{url: "http://a", healthy: true}
	b := &endpoint{url: "http://b", healthy: true}
	tr := &rankedTransport{endpoints: []*endpoint{a, b}, log: zap.NewNop()}

	// 广播失败绝不换节点重试，避免 nonce 被消费后的双花风险
	calls := 0
	broadcast := errors.New("nonce too low")
	err := tr.once(context.Background(), "eth_sendRawTransaction", func(*ethclient.Client) error {
		calls++
		return broadcast
	})

	assert.Equal(t, broadcast, err)
	assert.Equal(t, 1, calls)
}

func TestEnqueueTransferQueueFull(t *testing.T) {
	// 没有消费协程、零容量队列：入队必然走 default 分支快速失败
	c := &Client{submitCh: make(chan submitRequest)}

	_, err := c.enqueueTransfer(context.Background(), TransferToken,
		common.HexToAddress("0x00000000000000000000000000000000000000ff"), big.NewInt(1))

	assert.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))
}

func TestCloseStopsSubmitLoop(t *testing.T) {
	c := &Client{
		submitCh:  make(chan submitRequest),
		transport: &rankedTransport{stop: make(chan struct{}), log: zap.NewNop()},
	}

	done := make(chan struct{})
	go func() {
		c.submitLoop()
		close(done)
	}()

	c.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit loop still running after Close")
	}
}

func TestERC20Selectors(t *testing.T) {
	// 标准 ERC-20 四字节选择器
	assert.Equal(t, "70a08231", hex.EncodeToString(erc20BalanceOfID))
	assert.Equal(t, "a9059cbb", hex.EncodeToString(erc20TransferID))
}

func TestBalanceOfCallPack(t *testing.T) {
	account := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	data := balanceOfCall{Account: account}.Pack()

	assert.Len(t, data, 36)
	assert.Equal(t, erc20BalanceOfID, data[:4])
	assert.Equal(t, common.LeftPadBytes(account.Bytes(), 32), data[4:])
}

func TestTransferCallPack(t *testing.T) {
	to := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	amount, _ := new(big.Int).SetString("100000000000000000000", 10)
	data := transferCall{To: to, Amount: amount}.Pack()

	assert.Len(t, data, 68)
	assert.Equal(t, erc20TransferID, data[:4])
	assert.Equal(t, common.LeftPadBytes(to.Bytes(), 32), data[4:36])
	assert.Equal(t, common.LeftPadBytes(amount.Bytes(), 32), data[36:])
}

func TestUnpackUint256(t *testing.T) {
	t.Run("valid word", func(t *testing.T) {
		want, _ := new(big.Int).SetString("100000000000000000000", 10)
		ret := common.LeftPadBytes(want.Bytes(), 32)

		got, err := unpackUint256(ret)
		assert.NoError(t, err)
		assert.Zero(t, got.Cmp(want))
	})

	t.Run("zero balance", func(t *testing.T) {
		got, err := unpackUint256(make([]byte, 32))
		assert.NoError(t, err)
		assert.Zero(t, got.Sign())
	})

	t.Run("truncated response", func(t *testing.T) {
		_, err := unpackUint256(make([]byte, 20))
		assert.Error(t, err)
	})

	t.Run("empty response", func(t *testing.T) {
		_, err := unpackUint256(nil)
		assert.Error(t, err)
	})
}
