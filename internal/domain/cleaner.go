package domain

import "time"

type CleanerRole string

const (
	RoleStandard      CleanerRole = "standard"
	RolePremium       CleanerRole = "premium"
	RoleFormatore     CleanerRole = "formatore"
	RoleStraordinario CleanerRole = "straordinario"
)

var CleanerRoles = []CleanerRole{RoleStandard, RolePremium, RoleFormatore, RoleStraordinario}

func (r CleanerRole) IsValid() bool {
	for _, valid := range CleanerRoles {
		if r == valid {
			return true
		}
	}
	return false
}

// Cleaner 是花名册中的保洁员，由 seed 工具或上游系统维护
type Cleaner struct {
	ID               int64       `json:"id"`
	FullName         string      `json:"fullName"`
	Role             CleanerRole `json:"role"`
	DefaultStartTime string      `json:"defaultStartTime"` // HH:mm
	IsActive         bool        `json:"isActive"`
	CreatedAt        time.Time   `json:"createdAt"`
	Version          int32       `json:"-"`
}

// SelectedCleaner 是某个工作日快照中被选入排班的保洁员
type SelectedCleaner struct {
	CleanerID int64       `json:"cleanerID"`
	FullName  string      `json:"fullName"`
	Role      CleanerRole `json:"role"`
	StartTime string      `json:"startTime"` // HH:mm，当天的上工时间，可以和花名册中的默认值不同
	// Removed 表示该保洁员已经被移出排班，但是名下还有任务没有移走，
	// 在任务全部移走之前必须保留这条记录
	Removed bool `json:"removed"`
}
