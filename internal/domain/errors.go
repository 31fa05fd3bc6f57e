package domain

import "errors"

var (
	// ErrNotFound 表示引用的工作日、任务或保洁员不存在
	ErrNotFound = errors.New("目标不存在")
	// ErrValidation 表示请求在任何状态被修改之前就被拒绝了，重试是安全的
	ErrValidation = errors.New("校验失败")
	// ErrConflict 表示当前修订号已经被别人改掉了，调用方必须重新拉取后重试
	ErrConflict = errors.New("修订版本冲突")
)
