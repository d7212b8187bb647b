package common

import (
	"errors"
	"fmt"
)

// AppError 应用级错误，带错误码方便上层归类处理
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 用错误码包装底层错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建不带底层原因的新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// CodeOf 提取错误链里的错误码，链上没有 AppError 时返回空串
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// 错误码常量
const (
	ErrCodeScrape       = "SCRAPE_ERROR"
	ErrCodeParse        = "PARSE_ERROR"
	ErrCodeReadme       = "README_ERROR"
	ErrCodeLLM          = "LLM_ERROR"
	ErrCodeCache        = "CACHE_ERROR"
	ErrCodeDatabase     = "DATABASE_ERROR"
	ErrCodeConfig       = "CONFIG_ERROR"
	ErrCodeOutput       = "OUTPUT_ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
)
