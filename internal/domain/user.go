package domain

import (
	"time"
)

type Role string

const (
	RoleDispatcher Role = "调度员"
	RoleAdmin      Role = "管理员"
)

// User 是登录系统的排班操作员，不是保洁员本人
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
