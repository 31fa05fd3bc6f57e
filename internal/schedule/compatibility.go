package schedule

import (
	"fmt"

	"github.com/cleanplan-dev/cleaning-planner/backend/internal/domain"
)

// Warning 是兼容性检查的结果注解，只提示不拦截
type Warning struct {
	CleanerID int64  `json:"cleanerID"`
	TaskID    string `json:"taskID"`
	Reason    string `json:"reason"`
}

type capability struct {
	premium       bool
	extraordinary bool
	altaPriority  bool
}

// 角色 × 任务属性的规则表，formatore 可以承接一切任务
var roleCapabilities = map[domain.CleanerRole]capability{
	domain.RoleStandard:      {},
	domain.RolePremium:       {premium: true, altaPriority: true},
	domain.RoleFormatore:     {premium: true, extraordinary: true, altaPriority: true},
	domain.RoleStraordinario: {extraordinary: true, altaPriority: true},
}

// Compatible 判断保洁员角色是否适合承接某个任务。
// 未知角色按没有任何额外能力处理。
func Compatible(role domain.CleanerRole, task *domain.Task) bool {
	caps := roleCapabilities[role]

	if task.Premium && !caps.premium {
		return false
	}
	if task.Extraordinary && !caps.extraordinary {
		return false
	}
	if task.Priority == domain.PriorityAlta && !caps.altaPriority {
		return false
	}
	return true
}

// Annotate 遍历快照中的所有时间线，为每个不兼容的任务生成一条警告。
// 警告只随快照返回给调用方展示，永远不会阻止变更操作。
func Annotate(snapshot *domain.Snapshot) []Warning {
	warnings := []Warning{}

	for i := range snapshot.Timeline {
		entry := &snapshot.Timeline[i]

		sc := snapshot.FindSelectedCleaner(entry.CleanerID)
		if sc == nil {
			continue
		}

		for j := range entry.Tasks {
			task := &entry.Tasks[j]
			if Compatible(sc.Role, task) {
				continue
			}

			warnings = append(warnings, Warning{
				CleanerID: entry.CleanerID,
				TaskID:    task.ID,
				Reason:    incompatibleReason(sc.Role, task),
			})
		}
	}

	return warnings
}

func incompatibleReason(role domain.CleanerRole, task *domain.Task) string {
	caps := roleCapabilities[role]

	switch {
	case task.Premium && !caps.premium:
		return fmt.Sprintf("角色 %s 不能承接 premium 任务", role)
	case task.Extraordinary && !caps.extraordinary:
		return fmt.Sprintf("角色 %s 不能承接特殊任务", role)
	default:
		return fmt.Sprintf("角色 %s 不能承接高优先级任务", role)
	}
}
