package domain

import (
	"fmt"
	"time"
)

const WorkDateLayout = "2006-01-02"

// ParseWorkDate 校验并解析 yyyy-mm-dd 格式的工作日
func ParseWorkDate(s string) (time.Time, error) {
	date, err := time.Parse(WorkDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: 工作日格式必须是 yyyy-mm-dd", ErrValidation)
	}
	return date, nil
}
