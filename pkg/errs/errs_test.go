package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalidCode, KindOf(New(KindInvalidCode, "bad code")))
	assert.Equal(t, KindNetwork, KindOf(Wrap(KindNetwork, "rpc down", errors.New("dial tcp: refused"))))

	// 包一层 fmt 也能提取出分类
	wrapped := fmt.Errorf("handler: %w", New(KindAlreadyClaimed, "dup"))
	assert.Equal(t, KindAlreadyClaimed, KindOf(wrapped))

	// 未归类错误按内部错误处理
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindNetwork, "rpc call failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "rpc call failed: connection reset", err.Error())
	assert.Equal(t, "bare message", New(KindValidation, "bare message").Error())
}

func TestUserMessageSanitizesInProduction(t *testing.T) {
	// 内部细节（余额数字、节点地址）绝不能出现在生产回包里
	detailed := Newf(KindInsufficientBalance,
		"insufficient token balance: need 100000000000000000000, have 3")

	assert.Equal(t, "Service temporarily unavailable", UserMessage(detailed, true))
	assert.Contains(t, UserMessage(detailed, false), "need 100000000000000000000")

	assert.Equal(t, "Internal server error", UserMessage(errors.New("pq: deadlock detected"), true))
}
