package domain

import "time"

type Priority string

const (
	PriorityAlta  Priority = "alta"
	PriorityMedia Priority = "media"
	PriorityBassa Priority = "bassa"
)

var Priorities = []Priority{PriorityAlta, PriorityMedia, PriorityBassa}

func (p Priority) IsValid() bool {
	for _, valid := range Priorities {
		if p == valid {
			return true
		}
	}
	return false
}

type Task struct {
	// 业务属性，由上游抽取流程生成后不再修改
	ID              string   `json:"id"` // 注意 logisticCode 不保证唯一，只有 ID 是唯一的
	LogisticCode    string   `json:"logisticCode"`
	Address         string   `json:"address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	DurationMinutes *int32   `json:"durationMinutes"`
	Priority        Priority `json:"priority"`
	Premium         bool     `json:"premium"`
	Extraordinary   bool     `json:"extraordinary"`
	Confirmed       bool     `json:"confirmed"`

	// 调度属性，只有已分配的任务才会有这些字段
	AssignedCleaner *int64     `json:"assignedCleaner"`
	Sequence        *int32     `json:"sequence"`
	StartTime       *time.Time `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	TravelMinutes   *int32     `json:"travelMinutes"`
}

// ClearSchedule 清空任务的全部调度属性，任务回到未分配状态时必须调用
func (t *Task) ClearSchedule() {
	t.AssignedCleaner = nil
	t.Sequence = nil
	t.StartTime = nil
	t.EndTime = nil
	t.TravelMinutes = nil
}
