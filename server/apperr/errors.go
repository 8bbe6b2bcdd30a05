// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType 错误类别
type ErrorType int

const (
	TypeSystem ErrorType = iota
	TypeValidation
	TypeNotFound
	TypeConflict
	TypeTransientIO
	TypePartialFailure
)

func (t ErrorType) String() string {
	switch t {
	case TypeValidation:
		return "validation"
	case TypeNotFound:
		return "not_found"
	case TypeConflict:
		return "conflict"
	case TypeTransientIO:
		return "transient_io"
	case TypePartialFailure:
		return "partial_failure"
	default:
		return "system"
	}
}

// AppError 业务层统一错误
type AppError struct {
	Type     ErrorType
	Code     string
	Message  string
	Internal error
	// FileURL 仅在 TypePartialFailure 时有值：已上传成功但未登记的文件引用
	FileURL string
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// Retryable 调用方是否可以重试
func (e *AppError) Retryable() bool {
	return e.Type == TypeTransientIO || e.Type == TypePartialFailure
}

func Validation(code, message string) *AppError {
	return &AppError{Type: TypeValidation, Code: code, Message: message}
}

func NotFound(code, message string) *AppError {
	return &AppError{Type: TypeNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *AppError {
	return &AppError{Type: TypeConflict, Code: code, Message: message}
}

// TransientIO 外部存储不可达、超时或传输层失败
func TransientIO(code, message string, err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		code = "TIMEOUT"
	} else if errors.Is(err, context.Canceled) {
		code = "CANCELED"
	}
	return &AppError{Type: TypeTransientIO, Code: code, Message: message, Internal: err}
}

// PartialFailure 文件已上传，但记录更新失败
func PartialFailure(code, message, fileURL string, err error) *AppError {
	return &AppError{Type: TypePartialFailure, Code: code, Message: message, Internal: err, FileURL: fileURL}
}

func System(code, message string, err error) *AppError {
	return &AppError{Type: TypeSystem, Code: code, Message: message, Internal: err}
}

// As 提取 AppError，非 AppError 时返回 nil
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Is 判断错误是否属于指定类别
func Is(err error, t ErrorType) bool {
	appErr := As(err)
	return appErr != nil && appErr.Type == t
}

// HTTPStatus 错误类别对应的 HTTP 状态码
func HTTPStatus(err error) int {
	appErr := As(err)
	if appErr == nil {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeTransientIO:
		return http.StatusServiceUnavailable
	case TypePartialFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
