package chain

import (
	"context"
	"sort"
	"sync"
	"time"
	"token_faucet/pkg/errs"
	"token_faucet/pkg/metrics"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// 只读调用的重试参数；转账绝不重试（重发有双花风险）
const (
	readAttempts   = 3
	readBackoff    = 150 * time.Millisecond
	healthInterval = 30 * time.Second
)

// endpoint 单个 RPC 节点及其观测数据
type endpoint struct {
	url    string
	client *ethclient.Client

	mu       sync.Mutex
	latency  time.Duration // 最近一次成功调用的耗时（EWMA）
	failures int           // 连续失败计数，成功即清零
	healthy  bool
}

func (e *endpoint) recordSuccess(cost time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latency == 0 {
		e.latency = cost
	} else {
		// 简单 EWMA，新样本权重 1/4
		e.latency = (e.latency*3 + cost) / 4
	}
	e.failures = 0
	e.healthy = true
}

func (e *endpoint) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures++
	if e.failures >= 2 {
		e.healthy = false
	}
}

func (e *endpoint) snapshot() (time.Duration, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latency, e.failures, e.healthy
}

// rankedTransport 按观测到的可用性/延迟排序的多节点传输层
type rankedTransport struct {
	endpoints []*endpoint
	log       *zap.Logger
	stop      chan struct{}
}

func newRankedTransport(urls []string, log *zap.Logger) (*rankedTransport, error) {
	if len(urls) == 0 {
		return nil, errs.New(errs.KindConfiguration, "no RPC endpoints configured")
	}

	eps := make([]*endpoint, 0, len(urls))
	for _, url := range urls {
		client, err := ethclient.Dial(url)
		if err != nil {
			return nil, errs.Wrap(errs.KindNetwork, "failed to dial RPC endpoint "+url, err)
		}
		eps = append(eps, &endpoint{url: url, client: client, healthy: true})
	}

	t := &rankedTransport{
		endpoints: eps,
		log:       log,
		stop:      make(chan struct{}),
	}
	go t.healthLoop()
	return t, nil
}

// ranked 返回按健康度、连续失败数、延迟排序的节点快照
func (t *rankedTransport) ranked() []*endpoint {
	eps := make([]*endpoint, len(t.endpoints))
	copy(eps, t.endpoints)

	sort.SliceStable(eps, func(i, j int) bool {
		li, fi, hi := eps[i].snapshot()
		lj, fj, hj := eps[j].snapshot()
		if hi != hj {
			return hi
		}
		if fi != fj {
			return fi < fj
		}
		return li < lj
	})
	return eps
}

// read 只读调用：跨节点最多重试 readAttempts 次，带短退避
func (t *rankedTransport) read(ctx context.Context, method string, fn func(*ethclient.Client) error) error {
	var lastErr error
	eps := t.ranked()

	for attempt := 0; attempt < readAttempts; attempt++ {
		ep := eps[attempt%len(eps)]

		start := time.Now()
		err := fn(ep.client)
		cost := time.Since(start)
		metrics.Default.RecordRPCRequest(ep.url, method, cost)

		if err == nil {
			ep.recordSuccess(cost)
			return nil
		}

		ep.recordFailure()
		lastErr = err
		t.log.Warn("RPC read failed, trying next endpoint",
			zap.String("endpoint", ep.url),
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return errs.Wrap(errs.KindNetwork, "RPC call cancelled", ctx.Err())
		case <-time.After(readBackoff):
		}
	}

	return errs.Wrap(errs.KindNetwork, "all RPC endpoints failed", lastErr)
}

// once 写调用：只在当前最优节点上执行一次，失败就失败
func (t *rankedTransport) once(ctx context.Context, method string, fn func(*ethclient.Client) error) error {
	ep := t.ranked()[0]

	start := time.Now()
	err := fn(ep.client)
	cost := time.Since(start)
	metrics.Default.RecordRPCRequest(ep.url, method, cost)

	if err != nil {
		ep.recordFailure()
		return err
	}
	ep.recordSuccess(cost)
	return nil
}

// healthLoop 周期性探活，恢复被降级的节点
func (t *rankedTransport) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			for _, ep := range t.endpoints {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				start := time.Now()
				_, err := ep.client.BlockNumber(ctx)
				cancel()

				if err != nil {
					ep.recordFailure()
				} else {
					ep.recordSuccess(time.Since(start))
				}
				_, _, healthy := ep.snapshot()
				metrics.Default.SetEndpointHealthy(ep.url, healthy)
			}
		}
	}
}

// Close 停止探活并关闭所有连接
func (t *rankedTransport) Close() {
	close(t.stop)
	for _, ep := range t.endpoints {
		ep.client.Close()
	}
}
