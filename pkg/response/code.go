package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 请求校验错误 400xx
	ErrInvalidParam    = 40001
	ErrTokenInvalid    = 40002
	ErrNoPermission    = 40003
	ErrTooManyRequests = 40004

	// 兑换码模块错误 410xx
	ErrCodeNotFound   = 41001
	ErrCodeInactive   = 41002
	ErrCodeExhausted  = 41003
	ErrAlreadyClaimed = 41004

	// 链上结算错误 420xx
	ErrInsufficientBalance = 42001
	ErrNetworkUnavailable  = 42002
	ErrTransactionFailed   = 42003

	// 系统错误 500xx
	ErrServerInternal = 50001
)
