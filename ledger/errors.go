package ledger

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("transaction not found")
	// ErrClosed 会话已结束，账本不可再修改
	ErrClosed = errors.New("ledger closed")
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors 表单校验错误集合，按字段返回给前端就地展示
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid transaction: " + strings.Join(parts, "; ")
}

// Has 是否包含某字段的错误
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Merge 合并两组错误，同一字段只保留先出现的
func (e FieldErrors) Merge(other FieldErrors) FieldErrors {
	out := append(FieldErrors(nil), e...)
	for _, fe := range other {
		if !out.Has(fe.Field) {
			out = append(out, fe)
		}
	}
	return out
}

// AsFieldErrors 从 error 中提取字段错误
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
