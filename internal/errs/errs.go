package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindRemoteSync       Kind = "remote_sync_failure"
	KindPermissionDenied Kind = "permission_denied"
	KindMissingConfig    Kind = "missing_config"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

// Error 携带类别的错误，调用方通过类别分支处理
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建指定类别的错误
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并标记类别
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf 提取错误类别，非本包错误归为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定类别
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}

func IsConflict(err error) bool {
	return Is(err, KindConflict)
}

func IsMissingConfig(err error) bool {
	return Is(err, KindMissingConfig)
}

var errorNotFoundFmt = "%s not found by %s"
var errorInvalidParamFmt = "invalid request params: %s %v"
var errorMissingParamFmt = "missing required param: %s"

// NewRecordNotFoundErr 记录不存在错误
func NewRecordNotFoundErr(name string, value any) error {
	return New(KindNotFound, errorNotFoundFmt, name, value)
}

// NewInvalidParamErr 参数非法错误
func NewInvalidParamErr(name string, value any) error {
	return New(KindInvalidInput, errorInvalidParamFmt, name, value)
}

// NewMissingParamErr 缺少必填参数错误
func NewMissingParamErr(name string) error {
	return New(KindInvalidInput, errorMissingParamFmt, name)
}
