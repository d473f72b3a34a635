package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ErrDuplicate 唯一键冲突（首读自动创建的并发竞争场景）
var ErrDuplicate = errors.New("record already exists")

// ErrCacheMiss 缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// ValidationError 阈值校验错误
// 消息必须回显配置的边界值，前端直接展示，不得使用固定字面量。
type ValidationError struct {
	Field   string
	Value   int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%d): %s", e.Field, e.Value, e.Message)
}

// NewRangeValidationError 构建超出范围的校验错误（回显配置边界）
func NewRangeValidationError(field string, value, min, max int) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be within [%d,%d]", min, max),
	}
}

// TransientError 可重试的存储错误（超时、连接不可用等）
// 评估器在无法解析阈值时必须向调用方传播该错误，不得静默使用默认值。
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage error in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// WrapStorageError 将底层存储错误分类
// context 超时/取消归为 TransientError，其余原样返回（由调用方包装）。
func WrapStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
