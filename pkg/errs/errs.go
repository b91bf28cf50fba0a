package errs

import (
	"errors"
	"fmt"
)

// Kind 错误分类，编排器把底层错误统一翻译到这套分类上
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCode
	KindAlreadyClaimed
	KindInsufficientBalance
	KindNetwork
	KindTransactionFailed
	KindConfiguration
)

// Error 带分类的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建指定分类的错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf 格式化版本
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并归类
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf 提取错误分类，未归类的一律按内部错误处理
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// 生产环境对外展示的脱敏文案，避免泄露余额、内部地址等细节
var sanitized = map[Kind]string{
	KindValidation:          "Invalid request parameters",
	KindInvalidCode:         "Invalid or expired code",
	KindAlreadyClaimed:      "This wallet has already claimed",
	KindInsufficientBalance: "Service temporarily unavailable",
	KindNetwork:             "Service temporarily unavailable",
	KindTransactionFailed:   "Transaction processing failed",
	KindConfiguration:       "Service misconfigured",
	KindInternal:            "Internal server error",
}

// UserMessage 返回对用户可见的文案；生产环境只返回脱敏分类文案
func UserMessage(err error, production bool) string {
	kind := KindOf(err)
	if production {
		return sanitized[kind]
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
